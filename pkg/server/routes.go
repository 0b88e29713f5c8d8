package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"mercator-hq/lethe/pkg/retention"
	"mercator-hq/lethe/pkg/telemetry/health"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 500
)

// Handler returns the routed HTTP handler.
//
//	GET  /health, /ready, /version
//	GET  /metrics
//	GET  /v1/policies
//	GET  /v1/jobs?limit=N
//	POST /v1/jobs/{kind}?dry_run=true&category=<category>
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(recoverer(s.logger))
	r.Use(requestID)
	r.Use(logRequests(s.logger))

	r.Get("/health", s.deps.Health.LivenessHandler())
	r.Get("/ready", s.deps.Health.ReadinessHandler())
	r.Get("/version", health.VersionHandler(s.deps.Version.Version, s.deps.Version.Commit, s.deps.Version.BuildTime))
	if s.deps.Metrics != nil {
		r.Method(http.MethodGet, s.deps.MetricsPath, s.deps.Metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/policies", s.handleListPolicies)
		r.Get("/jobs", s.handleListJobs)
		r.Post("/jobs/{kind}", s.handleRunJob)
	})
	return r
}

type policyView struct {
	retention.Policy
	Operation retention.Operation `json:"operation"`
	Table     string              `json:"table"`
}

func (s *Server) handleListPolicies(w http.ResponseWriter, r *http.Request) {
	cat := s.deps.Engine.Catalog()
	policies := cat.Policies()
	out := make([]policyView, 0, len(policies))
	for _, p := range policies {
		v := policyView{Policy: p, Table: cat.Target(p.Category).Table}
		if !p.Indefinite() {
			v.Operation = p.Operation()
		}
		out = append(out, v)
	}
	success(w, r, out)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		fail(w, r, http.StatusNotFound, "history_unavailable", "job history is not recorded by this store")
		return
	}
	limit := defaultRunsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			fail(w, r, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		limit = min(v, maxRunsLimit)
	}

	runs, err := s.deps.History.ListJobRuns(r.Context(), limit)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "list job runs failed", "error", err)
		fail(w, r, http.StatusInternalServerError, "store_error", "failed to list job runs")
		return
	}
	if runs == nil {
		runs = []retention.JobRun{}
	}
	success(w, r, runs)
}

func (s *Server) handleRunJob(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	dryRun := false
	if raw := q.Get("dry_run"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			fail(w, r, http.StatusBadRequest, "invalid_dry_run", "dry_run must be a boolean")
			return
		}
		dryRun = v
	}
	engine := s.deps.Engine.WithDryRun(dryRun)

	var (
		result retention.ScheduledJobResult
		err    error
	)
	kind := retention.JobKind(chi.URLParam(r, "kind"))
	if kind == retention.JobProcessCategory {
		category, perr := retention.ParseCategory(q.Get("category"))
		if perr != nil {
			fail(w, r, http.StatusBadRequest, "invalid_category", perr.Error())
			return
		}
		result, err = engine.ProcessCategory(r.Context(), category)
	} else {
		if _, perr := retention.ParseJobKind(string(kind)); perr != nil {
			fail(w, r, http.StatusNotFound, "unknown_job", perr.Error())
			return
		}
		result, err = engine.Run(r.Context(), kind)
	}

	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, retention.ErrEngineDisabled) {
			status = http.StatusConflict
		}
		fail(w, r, status, "job_not_started", err.Error())
		return
	}

	status := http.StatusOK
	if !result.Success {
		status = http.StatusInternalServerError
	}
	writeJSON(w, r, status, Envelope{Success: result.Success, Data: result})
}
