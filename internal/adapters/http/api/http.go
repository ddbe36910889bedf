// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	service "github.com/okian/lifeboat/internal/app"
	"github.com/okian/lifeboat/internal/domain/schema"
	"github.com/okian/lifeboat/pkg/logger"
)

const (
	// maxBodyBytes bounds request bodies on the prediction routes.
	maxBodyBytes        = 1 << 20
	defaultMaxBatchSize = 256
)

// Predictor scores passengers.
type Predictor interface {
	Predict(ctx context.Context, rec schema.PassengerRecord) (service.Result, error)
	PredictBatch(ctx context.Context, recs []schema.PassengerRecord) ([]service.Outcome, error)
}

// ModelDescriber reports the model being served.
type ModelDescriber interface {
	Describe() service.ModelInfo
}

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	Predictor
	ModelDescriber
	StatsProvider
}

// Server wires HTTP routes for the prediction API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	predictHandler *PredictHandler
	modelHandler   *ModelHandler
	limiter        *RateLimiter
	maxBatchSize   int
	logger         logger.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithRateLimiter throttles the prediction routes per client.
func WithRateLimiter(l *RateLimiter) Option {
	return func(s *Server) {
		s.limiter = l
	}
}

// WithMaxBatchSize caps the number of passengers in one batch request.
func WithMaxBatchSize(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBatchSize = n
		}
	}
}

// WithLogger sets the logger used by handlers.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{maxBatchSize: defaultMaxBatchSize}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.healthHandler = NewHealthHandler(deps)
	s.statsHandler = NewStatsHandler(deps)
	s.predictHandler = NewPredictHandler(deps, s.maxBatchSize, s.logger)
	s.modelHandler = NewModelHandler(deps)
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	predict := func(h http.HandlerFunc, endpoint string) http.HandlerFunc {
		return RequestIDMiddleware(s.limiter.Middleware(MetricsMiddleware(h, endpoint)))
	}
	read := func(h http.HandlerFunc, endpoint string) http.HandlerFunc {
		return RequestIDMiddleware(MetricsMiddleware(h, endpoint))
	}

	mux.HandleFunc("/healthz", read(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/metrics", s.healthHandler.HandleMetrics)
	mux.HandleFunc("/stats", read(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/model", read(s.modelHandler.HandleModel, "model"))
	mux.HandleFunc("/schema", read(s.modelHandler.HandleSchema, "schema"))
	mux.HandleFunc("/predict", predict(s.predictHandler.HandlePredict, "predict"))
	mux.HandleFunc("/predict/batch", predict(s.predictHandler.HandleBatch, "predict_batch"))
}

type errorResponse struct {
	Code       string             `json:"code"`
	Message    string             `json:"message"`
	Violations []schema.Violation `json:"violations,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

func writeViolations(w http.ResponseWriter, violations []schema.Violation) {
	writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
		Code:       codeValidationFailed,
		Message:    "passenger record failed validation",
		Violations: violations,
	})
}

// allowMethod writes 405 and returns false unless r uses one of methods.
func allowMethod(w http.ResponseWriter, r *http.Request, op string, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	w.Header().Set("Allow", strings.Join(methods, ", "))
	writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, NewKind(op, ErrMethodNotAllowed))
	return false
}

// Error codes carried in errorResponse.Code.
const (
	codeBadRequest       = "bad_request"
	codeValidationFailed = "validation_failed"
	codeMethodNotAllowed = "method_not_allowed"
	codeBatchTooLarge    = "batch_too_large"
	codeRateLimited      = "rate_limited"
	codeInternal         = "internal_error"
)
