package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/NordCoder/Farewatch/internal/clock"
	"github.com/NordCoder/Farewatch/internal/domain/monitor"
	"github.com/NordCoder/Farewatch/internal/domain/notification"
	"github.com/NordCoder/Farewatch/internal/obs"
	"github.com/NordCoder/Farewatch/internal/services/refresh"
)

type MonitorStore interface {
	List() []monitor.Monitor
	Get(id string) (monitor.Monitor, error)
	Create(ctx context.Context, d monitor.Draft) (monitor.Monitor, error)
	Update(ctx context.Context, id string, d monitor.Draft) (monitor.Monitor, error)
	Toggle(ctx context.Context, id string) (monitor.Monitor, error)
	Delete(ctx context.Context, id string) error
}

type Refresher interface {
	RefreshOne(ctx context.Context, id string) (refresh.Result, error)
	RefreshAll(ctx context.Context) (refresh.Report, error)
	RefreshAfter(id string, delay time.Duration)
	Refreshing() bool
}

type Alerts interface {
	Permission() notification.Permission
	RequestPermission() notification.Permission
	Recent(limit int) []notification.Alert
	Sinks() []string
}

type Options struct {
	// EditDelay is how long after a create or edit the monitor is refreshed.
	EditDelay time.Duration
	// TokenHash is a bcrypt hash of the bearer token required on mutating
	// routes. Empty disables auth.
	TokenHash string
	RateRPS   float64
	RateBurst int
	// Health backs /healthz. Nil reports healthy.
	Health func(ctx context.Context) error
	Clock  clock.Clock
	// Background outlives requests; batch refreshes started over HTTP run on it.
	Background context.Context
}

type Server struct {
	store   MonitorStore
	refresh Refresher
	alerts  Alerts
	hub     *Hub
	opts    Options
	clock   clock.Clock
	log     *zap.Logger
}

func NewServer(log *zap.Logger, st MonitorStore, r Refresher, a Alerts, hub *Hub, opts Options) *Server {
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.Background == nil {
		opts.Background = context.Background()
	}
	if opts.EditDelay <= 0 {
		opts.EditDelay = 100 * time.Millisecond
	}
	return &Server{
		store:   st,
		refresh: r,
		alerts:  a,
		hub:     hub,
		opts:    opts,
		clock:   opts.Clock,
		log:     obs.Component(log, "api"),
	}
}

// Router builds the HTTP handler tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)

	r.Handle("/metrics", obs.MetricsHandler())
	r.Handle("/healthz", obs.HealthHandler(s.opts.Health))

	r.Route("/api/v1", func(r chi.Router) {
		if s.opts.RateRPS > 0 {
			r.Use(newRateLimiter(s.opts.RateRPS, s.opts.RateBurst).Handler)
		}
		r.Use(requireToken(s.opts.TokenHash))

		r.Get("/status", s.status)
		r.Post("/refresh", s.refreshAll)
		r.Get("/alerts", s.listAlerts)
		r.Get("/notifications/permission", s.getPermission)
		r.Post("/notifications/permission", s.requestPermission)
		if s.hub != nil {
			r.Get("/ws", s.hub.ServeWS)
		}

		r.Route("/monitors", func(r chi.Router) {
			r.Get("/", s.listMonitors)
			r.Post("/", s.createMonitor)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.getMonitor)
				r.Put("/", s.updateMonitor)
				r.Delete("/", s.deleteMonitor)
				r.Post("/toggle", s.toggleMonitor)
				r.Post("/refresh", s.refreshMonitor)
				r.Get("/history", s.history)
			})
		})
	})

	return obs.HTTPHandler(r, "farewatch.api")
}
