package http

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/resonatehq/resmon/internal/app/auth"
	"github.com/resonatehq/resmon/internal/app/subsystems/api/service"
	"github.com/resonatehq/resmon/internal/metrics"
)

type Config struct {
	Addr    string        `flag:"addr" desc:"http server address" default:":8001"`
	Timeout time.Duration `flag:"timeout" desc:"http server graceful shutdown timeout" default:"10s"`
	Cors    CorsConfig    `flag:"cors" desc:"http cors settings"`
	Auth    auth.Config   `flag:"auth" desc:"http authentication settings"`
}

type CorsConfig struct {
	AllowOrigins []string `flag:"allow-origins" desc:"allowed cors origins, empty disables cors"`
}

type Http struct {
	config   *Config
	listener net.Listener
	server   *http.Server
}

func New(service *service.Service, metrics *metrics.Metrics, config *Config) (*Http, error) {
	authenticator, err := auth.New(&config.Auth)
	if err != nil {
		return nil, err
	}

	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery(), requestId(), instrument(metrics))

	if len(config.Cors.AllowOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:  config.Cors.AllowOrigins,
			AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodDelete},
			AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", requestIdHeader},
			ExposeHeaders: []string{requestIdHeader},
			MaxAge:        12 * time.Hour,
		}))
	}

	s := &server{service: service}

	r.GET("/healthz", s.healthz)

	// Monitors API
	monitors := r.Group("/monitors", auth.GinMiddleware(authenticator))
	monitors.POST("", s.createMonitor)
	monitors.GET("", s.searchMonitors)
	monitors.GET("/:key", s.readMonitor)
	monitors.DELETE("/:key", s.deleteMonitor)
	monitors.POST("/:key/check", s.checkMonitor)

	return &Http{
		config: config,
		server: &http.Server{
			Addr:              config.Addr,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

func (h *Http) String() string {
	return "api:http"
}

// Addr returns the address the server listens on, the bound address
// once started.
func (h *Http) Addr() string {
	if h.listener == nil {
		return h.config.Addr
	}
	return h.listener.Addr().String()
}

func (h *Http) Start(errors chan<- error) error {
	listener, err := net.Listen("tcp", h.config.Addr)
	if err != nil {
		return err
	}
	h.listener = listener

	slog.Info("starting http server", "addr", h.Addr())

	go func() {
		if err := h.server.Serve(listener); err != nil && !isClosed(err) {
			errors <- err
		}
	}()

	return nil
}

func (h *Http) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	return h.server.Shutdown(ctx)
}

func (h *Http) Handler() http.Handler {
	return h.server.Handler
}

func isClosed(err error) bool {
	return errors.Is(err, http.ErrServerClosed)
}

type server struct {
	service *service.Service
}

func (s *server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *server) error(c *gin.Context, err *service.Error) {
	c.JSON(err.Code.HTTP(), gin.H{
		"error": err,
	})
}
