package service

import "github.com/resonatehq/resmon/pkg/monitor"

type Header struct {
	RequestId string `header:"x-request-id"`
}

type CreateMonitorBody struct {
	ResourceId     string `json:"resourceId" yaml:"resourceId" validate:"required,startswith=/"`
	ApiVersion     string `json:"apiVersion,omitempty" yaml:"apiVersion"`
	CheckFrequency string `json:"checkFrequency,omitempty" yaml:"checkFrequency" validate:"omitempty,interval"`
}

type SearchMonitorsParams struct {
	Cursor string `form:"cursor" json:"cursor"`
	Limit  int    `form:"limit" json:"limit" validate:"omitempty,gte=1,lte=100"`
}

type CreateMonitorResponse struct {
	Status  StatusCode
	Key     string
	Created bool
}

type SearchMonitorsResponse struct {
	Status   StatusCode
	Cursor   string
	Monitors []*monitor.Monitor
}
