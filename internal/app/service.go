// Package service provides the prediction service that implements the
// dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/okian/lifeboat/internal/adapters/artifact"
	"github.com/okian/lifeboat/internal/domain/encoder"
	"github.com/okian/lifeboat/internal/domain/schema"
	"github.com/okian/lifeboat/internal/domain/scoring"
	"github.com/okian/lifeboat/pkg/logger"
	"github.com/okian/lifeboat/pkg/metrics"
	"github.com/okian/lifeboat/pkg/tracing"
)

const defaultMaxBatchSize = 256

// Result is the decision for one passenger.
type Result struct {
	Probability float64        `json:"probability"`
	Survived    bool           `json:"survived"`
	LinearScore float64        `json:"linear_score"`
	Features    encoder.Vector `json:"features"`
}

// Outcome pairs a batch item with its result or error.
type Outcome struct {
	Index  int
	Result Result
	Err    error
}

// ModelInfo describes the model being served.
type ModelInfo struct {
	Version     string    `json:"version,omitempty"`
	TrainedAt   string    `json:"trained_at,omitempty"`
	Description string    `json:"description,omitempty"`
	Path        string    `json:"path,omitempty"`
	Features    []string  `json:"features"`
	Weights     []float64 `json:"weights"`
	Bias        float64   `json:"bias"`
	Threshold   float64   `json:"threshold"`
}

// Service runs passenger records through validate -> encode -> score -> decide.
// It holds no per-call state and is safe for concurrent use.
type Service struct {
	model  *scoring.Model
	schema *schema.Schema
	meta   artifact.Metadata

	maxBatchSize int
	startedAt    time.Time

	// Counters feed /stats only; they never influence a prediction.
	predictions atomic.Uint64
	survived    atomic.Uint64
	rejected    atomic.Uint64
	failed      atomic.Uint64
	batches     atomic.Uint64

	logger logger.Logger
	tracer trace.Tracer
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMaxBatchSize caps the number of records accepted by PredictBatch.
func WithMaxBatchSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxBatchSize = n
		}
	}
}

// WithMetadata attaches artifact metadata reported by Describe.
func WithMetadata(meta artifact.Metadata) Option {
	return func(s *Service) {
		s.meta = meta
	}
}

// WithTracer overrides the tracer used for prediction spans.
func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// New builds a Service around model. It fails when the model does not expect
// exactly the features the encoder produces.
func New(model *scoring.Model, opts ...Option) (*Service, error) {
	if model == nil {
		return nil, fmt.Errorf("%w: nil model", ErrModelMismatch)
	}
	if model.Dim() != schema.FeatureCount {
		return nil, fmt.Errorf("%w: model has %d weights, encoder produces %d features",
			ErrModelMismatch, model.Dim(), schema.FeatureCount)
	}

	s := &Service{
		model:        model,
		schema:       schema.New(),
		maxBatchSize: defaultMaxBatchSize,
		startedAt:    time.Now(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}
	if s.tracer == nil {
		s.tracer = tracing.Tracer()
	}

	metrics.SetModelInfo(s.meta.Version, model.Dim())
	return s, nil
}

// Predict validates, encodes and scores one passenger. A rejected record
// returns *schema.ValidationError and no probability is computed.
func (s *Service) Predict(ctx context.Context, rec schema.PassengerRecord) (Result, error) {
	ctx, span := s.tracer.Start(ctx, "service.Predict")
	defer span.End()

	start := time.Now()

	if err := s.schema.Validate(rec); err != nil {
		s.reject(ctx, span, err)
		return Result{}, err
	}
	span.AddEvent("validated")

	x := encoder.Encode(rec)
	span.AddEvent("encoded")

	r, err := s.model.Evaluate(x)
	if err != nil {
		s.fail(ctx, span, err)
		return Result{}, fmt.Errorf("score passenger: %w", err)
	}
	span.AddEvent("scored")

	res := Result{
		Probability: r.Probability,
		Survived:    r.Survived(),
		LinearScore: r.Linear,
		Features:    x,
	}

	s.predictions.Add(1)
	if res.Survived {
		s.survived.Add(1)
	}
	latency := float64(time.Since(start).Microseconds()) / 1000
	metrics.RecordPrediction(res.Survived, res.Probability, latency)

	span.SetAttributes(
		attribute.String("lifeboat.outcome", outcomeLabel(res.Survived)),
		attribute.Float64("lifeboat.probability", res.Probability),
	)
	s.logger.Debug(ctx, "passenger scored",
		logger.Float64("probability", res.Probability),
		logger.Bool("survived", res.Survived),
		logger.Float64("latencyMs", latency),
	)
	return res, nil
}

// PredictBatch runs every record through Predict independently and returns
// outcomes in input order. A rejected record does not affect its neighbours.
func (s *Service) PredictBatch(ctx context.Context, recs []schema.PassengerRecord) ([]Outcome, error) {
	if len(recs) == 0 {
		return nil, ErrEmptyBatch
	}
	if len(recs) > s.maxBatchSize {
		return nil, fmt.Errorf("%w: %d records, limit is %d", ErrBatchTooLarge, len(recs), s.maxBatchSize)
	}

	ctx, span := s.tracer.Start(ctx, "service.PredictBatch",
		trace.WithAttributes(attribute.Int("lifeboat.batch_size", len(recs))))
	defer span.End()

	s.batches.Add(1)
	metrics.RecordBatchSize(len(recs))

	out := make([]Outcome, len(recs))
	for i, rec := range recs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := s.Predict(ctx, rec)
		out[i] = Outcome{Index: i, Result: res, Err: err}
	}
	return out, nil
}

// Describe returns the served model's parameters and metadata.
func (s *Service) Describe() ModelInfo {
	return ModelInfo{
		Version:     s.meta.Version,
		TrainedAt:   s.meta.TrainedAt,
		Description: s.meta.Description,
		Path:        s.meta.Path,
		Features:    s.schema.FeatureOrder(),
		Weights:     s.model.Weights(),
		Bias:        s.model.Bias(),
		Threshold:   scoring.Threshold,
	}
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	predictions := s.predictions.Load()
	survived := s.survived.Load()

	stats := map[string]interface{}{
		"modelVersion":  s.meta.Version,
		"featureCount":  s.model.Dim(),
		"maxBatchSize":  s.maxBatchSize,
		"uptimeSeconds": int64(time.Since(s.startedAt).Seconds()),
		"predictions":   predictions,
		"survived":      survived,
		"perished":      predictions - survived,
		"rejected":      s.rejected.Load(),
		"failed":        s.failed.Load(),
		"batches":       s.batches.Load(),
	}
	if predictions > 0 {
		stats["survivalRate"] = float64(survived) / float64(predictions)
	}

	metrics.UpdateSystemStats()
	return stats
}

func (s *Service) reject(ctx context.Context, span trace.Span, err error) {
	s.rejected.Add(1)

	var fields []string
	var verr *schema.ValidationError
	if errors.As(err, &verr) {
		fields = verr.Fields()
	}
	metrics.RecordRejection(fields)

	span.SetAttributes(attribute.String("lifeboat.outcome", metrics.OutcomeRejected))
	span.SetStatus(codes.Error, "validation failed")
	s.logger.Debug(ctx, "passenger rejected", logger.Any("fields", fields))
}

func (s *Service) fail(ctx context.Context, span trace.Span, err error) {
	s.failed.Add(1)
	if errors.Is(err, scoring.ErrDimensionMismatch) {
		metrics.RecordDimensionMismatch()
	}

	span.RecordError(err)
	span.SetAttributes(attribute.String("lifeboat.outcome", metrics.OutcomeError))
	span.SetStatus(codes.Error, err.Error())
	s.logger.Error(ctx, "scoring failed", logger.Error(err))
}

func outcomeLabel(survived bool) string {
	if survived {
		return metrics.OutcomeSurvived
	}
	return metrics.OutcomePerished
}
