package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"price-tracker/models"
	"price-tracker/services"
	"price-tracker/storage"
	"price-tracker/utils"
)

const defaultTopN = 20

// Server exposes the engine's outputs read-only over HTTP for the renderer.
type Server struct {
	store    storage.PriceStore
	analyzer *services.Analyzer
	logger   *utils.Logger
	now      func() time.Time
	router   *mux.Router
}

// NewServer builds the router. now may be nil to use the wall clock.
func NewServer(store storage.PriceStore, analyzer *services.Analyzer, logger *utils.Logger, now func() time.Time) *Server {
	if now == nil {
		now = time.Now
	}
	s := &Server{store: store, analyzer: analyzer, logger: logger, now: now, router: mux.NewRouter()}

	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/dates", s.handleDates).Methods(http.MethodGet)
	api.HandleFunc("/report", s.handleReport).Methods(http.MethodGet)
	api.HandleFunc("/charts/{period}", s.handleCharts).Methods(http.MethodGet)
	api.HandleFunc("/variations", s.handleVariations).Methods(http.MethodGet)
	api.HandleFunc("/categories", s.handleCategories).Methods(http.MethodGet)
	api.HandleFunc("/top", s.handleTop).Methods(http.MethodGet)
	return s
}

// ServeHTTP makes Server an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDates(w http.ResponseWriter, r *http.Request) {
	dates, err := s.store.Dates()
	if err != nil {
		s.fail(w, err)
		return
	}
	if dates == nil {
		dates = []string{}
	}
	s.respondJSON(w, http.StatusOK, map[string][]string{"dates": dates})
}

// handleReport handles GET /api/report?date=YYYYMMDD (default: latest date).
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		latest, ok, err := s.latest()
		if err != nil {
			s.fail(w, err)
			return
		}
		if !ok {
			s.respondError(w, http.StatusNotFound, "store is empty")
			return
		}
		date = latest
	}
	if err := storage.ValidateDate(date); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	ref, err := services.ReferenceTime(date, s.now())
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	report, err := s.analyzer.Run(r.Context(), date, ref)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, report)
}

// handleCharts handles GET /api/charts/{period}?scope=total|<category>.
// Without scope it returns the total and every category series.
func (s *Server) handleCharts(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["period"]
	var period *services.Period
	for i := range services.Periods {
		if services.Periods[i].Name == name {
			period = &services.Periods[i]
			break
		}
	}
	if period == nil {
		s.respondError(w, http.StatusNotFound, "unknown period "+name)
		return
	}

	window := services.Window{Now: s.now()}
	if scope := r.URL.Query().Get("scope"); scope != "" {
		points, err := s.analyzer.Index().Build(*period, scope, window)
		if err != nil {
			s.fail(w, err)
			return
		}
		s.respondJSON(w, http.StatusOK, models.CategorySeries{Category: scope, Points: points})
		return
	}

	series, err := s.analyzer.Index().BuildPeriod(*period, window)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, series)
}

// handleVariations handles GET /api/variations?after=&before=.
// after defaults to the latest date, before to the snapshot preceding after.
func (s *Server) handleVariations(w http.ResponseWriter, r *http.Request) {
	vars, ok := s.variations(w, r)
	if !ok {
		return
	}
	s.respondJSON(w, http.StatusOK, vars)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	vars, ok := s.variations(w, r)
	if !ok {
		return
	}
	s.respondJSON(w, http.StatusOK, s.analyzer.Insights().Aggregate(vars))
}

// handleTop handles GET /api/top?after=&before=&n=20&dir=up|down.
func (s *Server) handleTop(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	n := defaultTopN
	if raw := q.Get("n"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			s.respondError(w, http.StatusBadRequest, "n must be a non-negative integer")
			return
		}
		n = v
	}
	dir := services.Descending
	switch q.Get("dir") {
	case "", "up":
	case "down":
		dir = services.Ascending
	default:
		s.respondError(w, http.StatusBadRequest, "dir must be up or down")
		return
	}

	vars, ok := s.variations(w, r)
	if !ok {
		return
	}
	s.respondJSON(w, http.StatusOK, services.Top(vars, n, dir))
}

// variations resolves the after/before query pair and compares the two snapshots.
// It writes the error response itself and reports whether to continue.
func (s *Server) variations(w http.ResponseWriter, r *http.Request) ([]models.VariationRecord, bool) {
	q := r.URL.Query()
	after, before := q.Get("after"), q.Get("before")

	if after == "" {
		latest, ok, err := s.latest()
		if err != nil {
			s.fail(w, err)
			return nil, false
		}
		if !ok {
			s.respondError(w, http.StatusNotFound, "store is empty")
			return nil, false
		}
		after = latest
	}
	for _, d := range []string{after, before} {
		if d == "" {
			continue
		}
		if err := storage.ValidateDate(d); err != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return nil, false
		}
	}

	if before == "" {
		prev, err := s.analyzer.Resolver().Previous(after)
		if err != nil {
			s.fail(w, err)
			return nil, false
		}
		if prev == nil {
			s.respondError(w, http.StatusNotFound, "no snapshot before "+after)
			return nil, false
		}
		before = prev.Date
	}

	vars, err := s.analyzer.Variations(after, before)
	if err != nil {
		s.fail(w, err)
		return nil, false
	}
	return vars, true
}

func (s *Server) latest() (string, bool, error) {
	dates, err := s.store.Dates()
	if err != nil || len(dates) == 0 {
		return "", false, err
	}
	return dates[len(dates)-1], true, nil
}

// fail maps engine errors onto status codes: absence is 404, anything else 500.
func (s *Server) fail(w http.ResponseWriter, err error) {
	if errors.Is(err, services.ErrNoSnapshot) {
		s.respondError(w, http.StatusNotFound, err.Error())
		return
	}
	s.logger.Error("[api] %v", err)
	s.respondError(w, http.StatusInternalServerError, err.Error())
}
