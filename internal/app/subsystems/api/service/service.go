package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/resonatehq/resmon/internal/app/fetcher"
	"github.com/resonatehq/resmon/internal/app/subsystems/aio/store"
	"github.com/resonatehq/resmon/internal/util"
	"github.com/resonatehq/resmon/pkg/monitor"
)

const defaultLimit = 100

// Actor is the part of the monitor actor reachable through admission.
type Actor interface {
	Initialize(ctx context.Context, key string, config monitor.Config) (bool, error)
}

// Dispatcher serializes work per monitor key.
type Dispatcher interface {
	Submit(ctx context.Context, kind string, key string, run func(context.Context) error) error
}

type Service struct {
	store      store.Store
	dispatcher Dispatcher
	actor      Actor
	resolver   fetcher.Resolver
	validate   *validator.Validate
	protocol   string
	now        func() int64
}

func New(store store.Store, dispatcher Dispatcher, actor Actor, resolver fetcher.Resolver, protocol string) *Service {
	return &Service{
		store:      store,
		dispatcher: dispatcher,
		actor:      actor,
		resolver:   resolver,
		validate:   newValidator(),
		protocol:   protocol,
		now:        func() int64 { return time.Now().UnixMilli() },
	}
}

func (s *Service) logger(header *Header, name string) *slog.Logger {
	requestId := header.RequestId
	if requestId == "" {
		requestId = uuid.New().String()
	}

	return slog.With("request_id", requestId, "name", name, "protocol", s.protocol)
}

// CREATE

// CreateMonitor admits a monitor. Admitting a resource that is already
// monitored succeeds without changing the existing monitor.
func (s *Service) CreateMonitor(ctx context.Context, header *Header, body *CreateMonitorBody) (*CreateMonitorResponse, *Error) {
	log := s.logger(header, "CreateMonitor")

	if body == nil {
		return nil, RequestValidationError(errors.New("The request body is required."))
	}
	if err := s.validate.Struct(body); err != nil {
		return nil, RequestValidationError(err)
	}

	checkInterval := monitor.DefaultCheckInterval
	if body.CheckFrequency != "" {
		d, err := util.ParseInterval(body.CheckFrequency)
		if err != nil {
			return nil, RequestValidationError(fmt.Errorf("The field checkFrequency is invalid: %w.", err))
		}
		checkInterval = d
	}

	apiVersion := body.ApiVersion
	if apiVersion == "" {
		if s.resolver == nil {
			return nil, RequestValidationError(errors.New("The field apiVersion is required."))
		}

		v, err := s.resolver.ResolveApiVersion(ctx, body.ResourceId)
		if err != nil {
			log.Warn("failed to resolve api version", "resourceId", body.ResourceId, "err", err)
			return nil, RequestValidationError(fmt.Errorf("The field apiVersion is required, it could not be resolved: %w.", err))
		}
		apiVersion = v
	}

	config := monitor.Config{
		ResourceId:    body.ResourceId,
		ApiVersion:    apiVersion,
		CheckInterval: checkInterval,
	}
	key := monitor.Key(body.ResourceId)

	var created bool
	err := s.dispatcher.Submit(ctx, "initialize", key, func(ctx context.Context) error {
		var err error
		created, err = s.actor.Initialize(ctx, key, config)
		return err
	})
	if err != nil {
		if errors.Is(err, monitor.ErrInvalidConfig) {
			return nil, RequestValidationError(err)
		}

		log.Error("failed to initialize monitor", "key", key, "err", err)
		return nil, ServerError(err)
	}

	status := StatusOK
	if created {
		status = StatusCreated
	}

	log.Debug("monitor admitted", "key", key, "created", created)
	return &CreateMonitorResponse{
		Status:  status,
		Key:     key,
		Created: created,
	}, nil
}

// READ

func (s *Service) ReadMonitor(ctx context.Context, key string, header *Header) (*monitor.Monitor, *Error) {
	record, err := s.store.ReadMonitor(ctx, key)
	if err != nil {
		s.logger(header, "ReadMonitor").Error("failed to read monitor", "key", key, "err", err)
		return nil, ServerError(err)
	}
	if record == nil {
		return nil, RequestError(StatusMonitorNotFound, "The monitor was not found.")
	}

	return record.Monitor(), nil
}

// SEARCH

func (s *Service) SearchMonitors(ctx context.Context, header *Header, params *SearchMonitorsParams) (*SearchMonitorsResponse, *Error) {
	if params == nil {
		params = &SearchMonitorsParams{}
	}
	if err := s.validate.Struct(params); err != nil {
		return nil, RequestValidationError(err)
	}

	limit := params.Limit
	if limit == 0 {
		limit = defaultLimit
	}

	records, err := s.store.SearchMonitors(ctx, &store.SearchMonitorsCommand{
		Cursor: params.Cursor,
		Limit:  limit,
	})
	if err != nil {
		s.logger(header, "SearchMonitors").Error("failed to search monitors", "err", err)
		return nil, ServerError(err)
	}

	monitors := make([]*monitor.Monitor, len(records))
	for i, record := range records {
		monitors[i] = record.Monitor()
	}

	var cursor string
	if len(records) == limit {
		cursor = records[len(records)-1].Key
	}

	return &SearchMonitorsResponse{
		Status:   StatusOK,
		Cursor:   cursor,
		Monitors: monitors,
	}, nil
}

// CHECK

// CheckMonitor makes a monitor due immediately. A monitor whose check is
// already in flight is left alone.
func (s *Service) CheckMonitor(ctx context.Context, key string, header *Header) *Error {
	log := s.logger(header, "CheckMonitor")

	record, err := s.store.ReadMonitor(ctx, key)
	if err != nil {
		log.Error("failed to read monitor", "key", key, "err", err)
		return ServerError(err)
	}
	if record == nil {
		return RequestError(StatusMonitorNotFound, "The monitor was not found.")
	}

	ok, err := s.store.ScheduleMonitor(ctx, key, s.now())
	if err != nil {
		log.Error("failed to schedule monitor", "key", key, "err", err)
		return ServerError(err)
	}

	log.Debug("monitor check requested", "key", key, "scheduled", ok)
	return nil
}

// DELETE

func (s *Service) DeleteMonitor(ctx context.Context, key string, header *Header) *Error {
	var deleted bool
	err := s.dispatcher.Submit(ctx, "delete", key, func(ctx context.Context) error {
		var err error
		deleted, err = s.store.DeleteMonitor(ctx, key)
		return err
	})
	if err != nil {
		s.logger(header, "DeleteMonitor").Error("failed to delete monitor", "key", key, "err", err)
		return ServerError(err)
	}
	if !deleted {
		return RequestError(StatusMonitorNotFound, "The monitor was not found.")
	}

	s.logger(header, "DeleteMonitor").Info("monitor deleted", "key", key)
	return nil
}
