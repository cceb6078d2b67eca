// Package httpapi is the management surface: target CRUD, history and
// uptime queries, manual pings, and admin-list management. Every route
// under a principal's partition requires the caller to be that principal.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"uptimebot/internal/auth"
	"uptimebot/internal/domain"
	mw "uptimebot/internal/httpapi/middleware"
	"uptimebot/internal/repo"
	"uptimebot/internal/scheduler"
)

type Server struct {
	Logger    *zap.Logger
	Targets   repo.TargetStore
	History   repo.HistoryStore
	Incidents repo.IncidentStore
	Sched     *scheduler.Scheduler
	Auth      mw.Authorizer
	Admins    AdminRegistry

	DefaultInterval time.Duration
	RatePerMin      int
	RateBurst       int
}

// AdminRegistry is the mutable slice of the admin list; only the primary
// admin reaches these through the API.
type AdminRegistry interface {
	Add(p domain.PrincipalID) bool
	Remove(p domain.PrincipalID) error
	List() []domain.PrincipalID
}

func NewServer(
	l *zap.Logger,
	targets repo.TargetStore,
	history repo.HistoryStore,
	incidents repo.IncidentStore,
	sched *scheduler.Scheduler,
	auth mw.Authorizer,
	admins AdminRegistry,
	defaultInterval time.Duration,
) *Server {
	return &Server{
		Logger:          l,
		Targets:         targets,
		History:         history,
		Incidents:       incidents,
		Sched:           sched,
		Auth:            auth,
		Admins:          admins,
		DefaultInterval: defaultInterval,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.AllowAll().Handler)
	r.Use(mw.RateLimit(s.RatePerMin, s.RateBurst))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Route("/api/principals/{principal}", func(r chi.Router) {
		r.Use(mw.RequirePrincipal(s.Auth))

		r.Get("/targets", s.handleListTargets)
		r.Post("/targets", s.handleAddTarget)
		r.Delete("/targets/{id}", s.handleRemoveTarget)
		r.Get("/targets/{id}/history", s.handleHistory)
		r.Get("/targets/{id}/uptime", s.handleUptime)
		r.Get("/targets/{id}/incidents", s.handleIncidents)
		r.Get("/status", s.handleStatus)
		r.Post("/ping", s.handlePing)
	})

	r.Route("/api/admins", func(r chi.Router) {
		r.Use(mw.RequirePrimary(s.Auth))

		r.Get("/", s.handleListAdmins)
		r.Post("/", s.handleAddAdmin)
		r.Delete("/{id}", s.handleRemoveAdmin)
	})

	return r
}

func principalParam(r *http.Request) domain.PrincipalID {
	return domain.PrincipalID(chi.URLParam(r, "principal"))
}

func targetParam(r *http.Request) domain.TargetID {
	return domain.TargetID(chi.URLParam(r, "id"))
}

type addPayload struct {
	URL      string `json:"url"`
	Interval string `json:"interval,omitempty"`
}

func (s *Server) handleAddTarget(w http.ResponseWriter, r *http.Request) {
	var p addPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil || p.URL == "" {
		writeError(w, http.StatusBadRequest, "bad payload")
		return
	}

	raw := normalizeHTTPURL(withScheme(p.URL))
	if !isValidHTTPURL(raw) {
		writeError(w, http.StatusBadRequest, domain.ErrInvalidURL.Error())
		return
	}

	interval := s.DefaultInterval
	if p.Interval != "" {
		d, err := time.ParseDuration(p.Interval)
		if err != nil || d <= 0 {
			writeError(w, http.StatusBadRequest, domain.ErrInvalidInterval.Error())
			return
		}
		interval = d
	}

	now := time.Now().UTC()
	t := &domain.Target{
		ID:        domain.TargetID(uuid.NewString()),
		Principal: principalParam(r),
		URL:       raw,
		Interval:  interval,
		CreatedAt: now,
		Status:    domain.StatusUnknown,
	}
	if err := s.Targets.Add(r.Context(), t); err != nil {
		if errors.Is(err, domain.ErrDuplicateTarget) {
			writeError(w, http.StatusConflict, "already tracked")
			return
		}
		writeError(w, http.StatusInternalServerError, "could not add")
		return
	}

	s.Sched.Track(t.Principal, t.ID)

	s.Logger.Info("added_target",
		zap.String("principal_id", string(t.Principal)),
		zap.String("target_id", string(t.ID)),
		zap.String("url", t.URL),
		zap.Duration("interval", t.Interval),
	)

	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleListTargets(w http.ResponseWriter, r *http.Request) {
	ts, err := s.Targets.List(r.Context(), principalParam(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list error")
		return
	}
	writeJSON(w, http.StatusOK, ts)
}

func (s *Server) handleRemoveTarget(w http.ResponseWriter, r *http.Request) {
	p, id := principalParam(r), targetParam(r)
	if err := s.Targets.Remove(r.Context(), p, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "could not remove")
		return
	}
	s.Sched.Forget(id)

	s.Logger.Info("removed_target",
		zap.String("principal_id", string(p)),
		zap.String("target_id", string(id)),
	)

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	p, id := principalParam(r), targetParam(r)
	if _, err := s.Targets.Get(r.Context(), p, id); err != nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	limit := 50
	if q := r.URL.Query().Get("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "bad limit")
			return
		}
		limit = n
	}

	recs, err := s.History.Recent(r.Context(), id, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "history error")
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleUptime(w http.ResponseWriter, r *http.Request) {
	p, id := principalParam(r), targetParam(r)
	if _, err := s.Targets.Get(r.Context(), p, id); err != nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	window := 24 * time.Hour
	if q := r.URL.Query().Get("window"); q != "" {
		d, err := time.ParseDuration(q)
		if err != nil || d <= 0 {
			writeError(w, http.StatusBadRequest, "bad window")
			return
		}
		window = d
	}

	ratio, ok, err := s.History.UptimeRatio(r.Context(), id, window)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "uptime error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"target_id": id,
		"window":    window.String(),
		"ratio":     ratio,
		"sampled":   ok,
	})
}

func (s *Server) handleIncidents(w http.ResponseWriter, r *http.Request) {
	p, id := principalParam(r), targetParam(r)
	if _, err := s.Targets.Get(r.Context(), p, id); err != nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	incs, err := s.Incidents.Incidents(r.Context(), id, 50)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "incidents error")
		return
	}
	writeJSON(w, http.StatusOK, incs)
}

type statusEntry struct {
	Target domain.Target `json:"target"`
	Uptime *float64      `json:"uptime_24h,omitempty"`
}

// handleStatus returns the principal's targets with their live status and
// 24h uptime ratio. Targets with no probes in the window carry no ratio.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ts, err := s.Targets.List(r.Context(), principalParam(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list error")
		return
	}
	out := make([]statusEntry, 0, len(ts))
	for _, t := range ts {
		e := statusEntry{Target: t}
		if ratio, ok, err := s.History.UptimeRatio(r.Context(), t.ID, 24*time.Hour); err == nil && ok {
			e.Uptime = &ratio
		}
		out = append(out, e)
	}
	writeJSON(w, http.StatusOK, out)
}

// handlePing queues an immediate probe for every target in the partition.
// Results land asynchronously through the usual pipeline.
func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	ts, err := s.Targets.List(r.Context(), principalParam(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list error")
		return
	}
	triggered := 0
	for _, t := range ts {
		if s.Sched.TriggerNow(t.ID) {
			triggered++
		}
	}
	writeJSON(w, http.StatusAccepted, map[string]int{"triggered": triggered})
}

type adminPayload struct {
	ID string `json:"id"`
}

func (s *Server) handleListAdmins(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Admins.List())
}

func (s *Server) handleAddAdmin(w http.ResponseWriter, r *http.Request) {
	var p adminPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil || p.ID == "" {
		writeError(w, http.StatusBadRequest, "bad payload")
		return
	}
	if !s.Admins.Add(domain.PrincipalID(p.ID)) {
		writeError(w, http.StatusConflict, "already an admin")
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) handleRemoveAdmin(w http.ResponseWriter, r *http.Request) {
	id := domain.PrincipalID(chi.URLParam(r, "id"))
	if err := s.Admins.Remove(id); err != nil {
		switch {
		case errors.Is(err, auth.ErrPrimaryLocked):
			writeError(w, http.StatusForbidden, err.Error())
		case errors.Is(err, auth.ErrNotAdmin):
			writeError(w, http.StatusNotFound, "not an admin")
		default:
			writeError(w, http.StatusInternalServerError, "could not remove")
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
