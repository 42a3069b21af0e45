package notifier

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/NordCoder/Farewatch/internal/booking"
	"github.com/NordCoder/Farewatch/internal/clock"
	"github.com/NordCoder/Farewatch/internal/domain/monitor"
	"github.com/NordCoder/Farewatch/internal/domain/notification"
	"github.com/NordCoder/Farewatch/internal/format"
	"github.com/NordCoder/Farewatch/internal/obs"
)

const (
	AlertTitle  = "Target price reached!"
	recentLimit = 100
)

var mAlerts = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "farewatch_alerts_sent_total",
	Help: "Alerts handed to notification sinks",
}, []string{"sink", "status"})

type Options struct {
	Permission notification.Permission
	IconURL    string
	ClickURL   string
	Clock      clock.Clock
}

// Dispatcher raises target-price alerts to every configured sink while
// permission is granted.
type Dispatcher struct {
	mu         sync.Mutex
	permission notification.Permission
	sinks      []notification.Sink
	recent     []notification.Alert

	iconURL  string
	clickURL string
	clock    clock.Clock
	log      *zap.Logger
}

func New(log *zap.Logger, opts Options, sinks ...notification.Sink) *Dispatcher {
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.Permission == "" {
		opts.Permission = notification.PermissionDefault
	}
	return &Dispatcher{
		permission: opts.Permission,
		sinks:      sinks,
		iconURL:    opts.IconURL,
		clickURL:   opts.ClickURL,
		clock:      opts.Clock,
		log:        obs.Component(log, "notifier"),
	}
}

func (d *Dispatcher) AddSink(s notification.Sink) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sinks = append(d.sinks, s)
}

func (d *Dispatcher) Sinks() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.sinks))
	for i, s := range d.sinks {
		out[i] = s.Name()
	}
	return out
}

func (d *Dispatcher) Permission() notification.Permission {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.permission
}

// RequestPermission resolves a default permission: granted when there is
// somewhere to deliver alerts, denied otherwise. A decided permission is
// returned unchanged.
func (d *Dispatcher) RequestPermission() notification.Permission {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.permission == notification.PermissionDefault {
		if len(d.sinks) > 0 {
			d.permission = notification.PermissionGranted
		} else {
			d.permission = notification.PermissionDenied
		}
		d.log.Info("notification permission resolved", zap.String("permission", string(d.permission)))
	}
	return d.permission
}

// Notify raises an alert for q. It reports false without error when
// permission is not granted.
func (d *Dispatcher) Notify(ctx context.Context, m monitor.Monitor, q monitor.Quote) (notification.Alert, bool, error) {
	d.mu.Lock()
	if d.permission != notification.PermissionGranted {
		d.mu.Unlock()
		d.log.Debug("alert suppressed", zap.String("monitor_id", m.ID), zap.String("permission", string(d.permission)))
		return notification.Alert{}, false, nil
	}
	alert := BuildAlert(m, q, d.iconURL, d.clickURL, d.clock.Now())
	d.recent = append(d.recent, alert)
	if len(d.recent) > recentLimit {
		d.recent = append([]notification.Alert(nil), d.recent[len(d.recent)-recentLimit:]...)
	}
	sinks := append([]notification.Sink(nil), d.sinks...)
	d.mu.Unlock()

	log := obs.WithTrace(ctx, d.log).With(zap.String("monitor_id", m.ID), zap.String("airline", q.Airline))
	var errs []error
	for _, s := range sinks {
		if err := s.Send(ctx, alert); err != nil {
			mAlerts.WithLabelValues(s.Name(), "error").Inc()
			log.Warn("sink failed", zap.String("sink", s.Name()), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		mAlerts.WithLabelValues(s.Name(), "ok").Inc()
	}
	return alert, true, errors.Join(errs...)
}

// Recent returns up to limit raised alerts, newest first.
func (d *Dispatcher) Recent(limit int) []notification.Alert {
	d.mu.Lock()
	defer d.mu.Unlock()
	if limit <= 0 || limit > len(d.recent) {
		limit = len(d.recent)
	}
	out := make([]notification.Alert, 0, limit)
	for i := len(d.recent) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, d.recent[i])
	}
	return out
}

func BuildAlert(m monitor.Monitor, q monitor.Quote, icon, click string, now time.Time) notification.Alert {
	stops := "WITH STOPS"
	if q.IsNonStop {
		stops = "NON-STOP"
	}
	route := m.Origin + " → " + m.Destination
	price := format.Price(q.Price, m.CurrencyType)
	return notification.Alert{
		MonitorID:  m.ID,
		Airline:    q.Airline,
		Price:      q.Price,
		Timestamp:  q.Timestamp,
		URL:        booking.Resolve(m, q),
		Title:      AlertTitle,
		Body:       fmt.Sprintf("%s for %s on %s (%s)!", route, price, q.Airline, stops),
		Icon:       icon,
		ClickURL:   click,
		IsNonStop:  q.IsNonStop,
		RaisedAt:   now,
		Synthetic:  q.Synthetic,
		Route:      route,
		PriceLabel: price,
	}
}
