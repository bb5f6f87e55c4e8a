// Package httpapi maps the HTTP endpoints in spec §6 onto ConceptService
// and the payroll aggregator. It mirrors the teacher's hand-rolled
// net/http transport: a stdlib mux, manual CORS headers, manual JSON
// encode/decode, no framework.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/upcn/conceptdeps/internal/apierr"
	"github.com/upcn/conceptdeps/internal/conceptservice"
	"github.com/upcn/conceptdeps/internal/payroll"
)

// Server wraps the concept and payroll services with an HTTP transport.
type Server struct {
	concepts *conceptservice.Service
	payroll  payroll.Aggregator
	cors     string
	logger   *slog.Logger
	now      func() time.Time
}

// New creates an HTTP transport over the given services. corsOrigins is a
// comma-separated allow-list, or "*" for any origin.
func New(concepts *conceptservice.Service, agg payroll.Aggregator, corsOrigins string, logger *slog.Logger) *Server {
	return &Server{
		concepts: concepts,
		payroll:  agg,
		cors:     corsOrigins,
		logger:   logger,
		now:      time.Now,
	}
}

// Handler returns the routed, CORS-wrapped http.Handler for the API
// surface described in spec §6.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/conceptos", s.handleList)
	mux.HandleFunc("GET /api/conceptos/buscar", s.handleSearch)
	mux.HandleFunc("POST /api/conceptos/batch", s.handleBatch)
	mux.HandleFunc("GET /api/conceptos/rango/{lo}/{hi}", s.handleRange)
	mux.HandleFunc("POST /api/conceptos/cache/refresh", s.handleCacheRefresh)
	mux.HandleFunc("GET /api/conceptos/cache/stats", s.handleCacheStats)
	mux.HandleFunc("GET /api/conceptos/{code}/dependencias", s.handleForwardDeps)
	mux.HandleFunc("GET /api/conceptos/{code}/dependientes", s.handleReverseDeps)
	mux.HandleFunc("GET /api/conceptos/{code}", s.handleDetail)
	mux.HandleFunc("GET /api/liquidacion/tipos", s.handleLiquidationTypes)
	mux.HandleFunc("GET /api/liquidacion", s.handleLiquidacion)
	mux.HandleFunc("/health", s.handleHealth)

	return s.withCORS(mux)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.concepts.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	hits, err := s.concepts.Search(r.Context(), q)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, hits)
}

func (s *Server) handleDetail(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	detail, err := s.concepts.Detail(r.Context(), code)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var codes []string
	if err := json.NewDecoder(r.Body).Decode(&codes); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	details := make([]conceptservice.Detail, 0, len(codes))
	for _, code := range codes {
		detail, err := s.concepts.Detail(r.Context(), code)
		if err != nil {
			if apierr.IsNotFound(err) {
				continue // batch semantics: skip unknown codes rather than fail the whole batch
			}
			s.writeError(w, err)
			return
		}
		details = append(details, detail)
	}
	s.writeJSON(w, http.StatusOK, details)
}

func (s *Server) handleRange(w http.ResponseWriter, r *http.Request) {
	lo := r.PathValue("lo")
	hi := r.PathValue("hi")
	prefix := r.URL.Query().Get("tipoRango")

	listing, err := s.concepts.RangeListing(r.Context(), prefix, lo, hi)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, listing)
}

func (s *Server) handleForwardDeps(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	deps, err := s.concepts.ForwardDependencies(r.Context(), code)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, deps)
}

func (s *Server) handleReverseDeps(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	s.writeJSON(w, http.StatusOK, s.concepts.ReverseDependencies(code))
}

func (s *Server) handleCacheRefresh(w http.ResponseWriter, r *http.Request) {
	stats, err := s.concepts.RefreshIndex(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	// Stats never fails: an unbuilt index just reports ready:false.
	s.writeJSON(w, http.StatusOK, s.concepts.IndexStats())
}

func (s *Server) handleLiquidationTypes(w http.ResponseWriter, r *http.Request) {
	types, err := s.concepts.LiquidationTypes(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, types)
}

func (s *Server) handleLiquidacion(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	query := payroll.Query{
		LiquidationType: q.Get("tipo"),
		EmployeeID:      q.Get("legajo"),
	}
	if v := q.Get("anio"); v != "" {
		year, err := strconv.Atoi(v)
		if err != nil {
			s.writeJSONError(w, http.StatusBadRequest, "invalid anio")
			return
		}
		query.Year = year
	}
	if v := q.Get("mes"); v != "" {
		month, err := strconv.Atoi(v)
		if err != nil {
			s.writeJSONError(w, http.StatusBadRequest, "invalid mes")
			return
		}
		query.Month = month
	}
	query = query.WithDefaults(s.now())

	lines, err := s.payroll.Aggregate(r.Context(), query)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, lines)
}

// withCORS sets CORS headers on every response and short-circuits
// preflight requests, matching the teacher's manual CORS handling.
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.setCORSHeaders(w, r)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) setCORSHeaders(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return
	}

	if s.cors == "*" {
		w.Header().Set("Access-Control-Allow-Origin", "*")
	} else {
		for _, allowed := range strings.Split(s.cors, ",") {
			if strings.TrimSpace(allowed) == origin {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				break
			}
		}
	}
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to write JSON response", "error", err)
	}
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// writeError maps an apierr-classified error to the status codes in spec
// §7. Upstream failures become 502; unclassified errors are logged and
// become 500.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case apierr.IsNotFound(err):
		s.writeJSONError(w, http.StatusNotFound, err.Error())
	case apierr.IsBadRequest(err):
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
	case apierr.IsUpstream(err):
		s.logger.Error("upstream failure", "error", err)
		s.writeJSONError(w, http.StatusBadGateway, "upstream failure")
	default:
		s.logger.Error("unclassified error", "error", err)
		s.writeJSONError(w, http.StatusInternalServerError, "internal error")
	}
}
