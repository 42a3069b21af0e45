package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/NordCoder/Farewatch/internal/domain/monitor"
	"github.com/NordCoder/Farewatch/internal/domain/notification"
	"github.com/NordCoder/Farewatch/internal/domain/oracle"
	"github.com/NordCoder/Farewatch/internal/obs"
	"github.com/NordCoder/Farewatch/internal/services/refresh"
	"github.com/NordCoder/Farewatch/internal/services/store"
)

const maxBody = 1 << 16

type errorBody struct {
	Error string `json:"error"`
}

type statusView struct {
	Refreshing       bool                    `json:"refreshing"`
	Permission       notification.Permission `json:"permission"`
	Monitors         int                     `json:"monitors"`
	Active           int                     `json:"active"`
	Updating         int                     `json:"updating"`
	Sinks            []string                `json:"sinks"`
	WebsocketClients int                     `json:"websocketClients"`
	Now              int64                   `json:"now"`
}

type permissionView struct {
	Permission notification.Permission `json:"permission"`
}

type refreshView struct {
	Card     CardView    `json:"card"`
	Matching []QuoteView `json:"matching"`
	Alerted  bool        `json:"alerted"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, monitor.ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, refresh.ErrInFlight), errors.Is(err, refresh.ErrBatchInFlight):
		return http.StatusConflict
	case errors.Is(err, oracle.ErrAuthRequired),
		errors.Is(err, oracle.ErrRateLimited),
		errors.Is(err, oracle.ErrTransient),
		errors.Is(err, oracle.ErrBadResponse),
		errors.Is(err, oracle.ErrUnsupported):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		obs.WithTrace(r.Context(), s.log).Error("request failed",
			zap.String("path", r.URL.Path), zap.Error(err))
		if code == http.StatusInternalServerError {
			writeJSON(w, code, errorBody{Error: "internal error"})
			return
		}
	}
	writeJSON(w, code, errorBody{Error: err.Error()})
}

// decodeDraft overlays the request body on base, so omitted fields keep the
// base values.
func decodeDraft(w http.ResponseWriter, r *http.Request, base monitor.Draft) (monitor.Draft, error) {
	d := base
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&d); err != nil {
		return d, fmt.Errorf("%w: malformed body: %v", monitor.ErrInvalid, err)
	}
	return d, nil
}

func (s *Server) listMonitors(w http.ResponseWriter, _ *http.Request) {
	now := s.clock.Now()
	list := s.store.List()
	cards := make([]CardView, 0, len(list))
	for _, m := range list {
		cards = append(cards, Card(m, now))
	}
	writeJSON(w, http.StatusOK, cards)
}

func (s *Server) getMonitor(w http.ResponseWriter, r *http.Request) {
	m, err := s.store.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Card(m, s.clock.Now()))
}

func (s *Server) createMonitor(w http.ResponseWriter, r *http.Request) {
	d, err := decodeDraft(w, r, monitor.NewDraft())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	m, err := s.store.Create(r.Context(), d)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.refresh.RefreshAfter(m.ID, s.opts.EditDelay)
	writeJSON(w, http.StatusCreated, Card(m, s.clock.Now()))
}

func (s *Server) updateMonitor(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	current, err := s.store.Get(id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	d, err := decodeDraft(w, r, monitor.DraftFrom(current))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	m, err := s.store.Update(r.Context(), id, d)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.refresh.RefreshAfter(m.ID, s.opts.EditDelay)
	writeJSON(w, http.StatusOK, Card(m, s.clock.Now()))
}

func (s *Server) deleteMonitor(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) toggleMonitor(w http.ResponseWriter, r *http.Request) {
	m, err := s.store.Toggle(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Card(m, s.clock.Now()))
}

func (s *Server) refreshMonitor(w http.ResponseWriter, r *http.Request) {
	res, err := s.refresh.RefreshOne(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, refreshView{
		Card:     Card(res.Monitor, s.clock.Now()),
		Matching: quoteViews(res.Monitor, res.Matching),
		Alerted:  res.Alerted,
	})
}

// refreshAll starts a batch pass in the background and answers 202. With
// ?wait=true it blocks and returns the pass report.
func (s *Server) refreshAll(w http.ResponseWriter, r *http.Request) {
	if s.refresh.Refreshing() {
		s.fail(w, r, refresh.ErrBatchInFlight)
		return
	}
	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); wait {
		rep, err := s.refresh.RefreshAll(r.Context())
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, rep)
		return
	}
	go func() {
		if _, err := s.refresh.RefreshAll(s.opts.Background); err != nil {
			s.log.Debug("background refresh pass", zap.Error(err))
		}
	}()
	writeJSON(w, http.StatusAccepted, statusView{Refreshing: true, Now: s.clock.Now().UnixMilli()})
}

func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	m, err := s.store.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, History(m))
}

func (s *Server) status(w http.ResponseWriter, _ *http.Request) {
	v := statusView{
		Refreshing: s.refresh.Refreshing(),
		Permission: s.alerts.Permission(),
		Sinks:      s.alerts.Sinks(),
		Now:        s.clock.Now().UnixMilli(),
	}
	for _, m := range s.store.List() {
		v.Monitors++
		if m.IsActive {
			v.Active++
		}
		if m.Updating {
			v.Updating++
			v.Refreshing = true
		}
	}
	if s.hub != nil {
		v.WebsocketClients = s.hub.Clients()
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) getPermission(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, permissionView{Permission: s.alerts.Permission()})
}

func (s *Server) requestPermission(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, permissionView{Permission: s.alerts.RequestPermission()})
}

func (s *Server) listAlerts(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = v
	}
	alerts := s.alerts.Recent(limit)
	if alerts == nil {
		alerts = []notification.Alert{}
	}
	writeJSON(w, http.StatusOK, alerts)
}
