package service

import "strconv"

type StatusCode int

func (s StatusCode) String() string {
	return strconv.Itoa(int(s))
}

// HTTP returns the http status code a status maps to.
func (s StatusCode) HTTP() int {
	return int(s) / 10
}

const (
	StatusOK                   StatusCode = 2000 // map to 200 ok
	StatusCreated              StatusCode = 2010 // map to 201 created
	StatusFieldValidationError StatusCode = 4000 // map to 400 bad request
	StatusUnauthorized         StatusCode = 4010 // map to 401 unauthorized
	StatusMonitorNotFound      StatusCode = 4040 // map to 404 not found
	StatusInternalServerError  StatusCode = 5000 // map to 500 internal server error
	StatusDispatchQueueFull    StatusCode = 5030 // map to 503 service unavailable
	StatusShuttingDown         StatusCode = 5031 // map to 503 service unavailable
)
