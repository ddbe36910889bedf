package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	service "github.com/okian/lifeboat/internal/app"
	"github.com/okian/lifeboat/internal/domain/schema"
	"github.com/okian/lifeboat/pkg/logger"
)

// PredictHandler handles single and batch prediction requests.
type PredictHandler struct {
	deps         Predictor
	maxBatchSize int
	logger       logger.Logger
}

// NewPredictHandler creates a new prediction handler.
func NewPredictHandler(deps Predictor, maxBatchSize int, l logger.Logger) *PredictHandler {
	return &PredictHandler{deps: deps, maxBatchSize: maxBatchSize, logger: l}
}

type batchItem struct {
	Index int `json:"index"`
	*service.Result
	Error *errorResponse `json:"error,omitempty"`
}

type batchResponse struct {
	Results []batchItem `json:"results"`
}

// HandlePredict handles POST /predict requests.
func (h *PredictHandler) HandlePredict(w http.ResponseWriter, r *http.Request) {
	const op = "api.predict"
	if !allowMethod(w, r, op, http.MethodPost) {
		return
	}

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, WrapKind(op, ErrBadRequest, err))
		return
	}

	rec, violations, err := decodePassenger(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, WrapKind(op, ErrBadRequest, err))
		return
	}
	if len(violations) > 0 {
		writeViolations(w, violations)
		return
	}

	res, err := h.deps.Predict(r.Context(), rec)
	if err != nil {
		h.writePredictError(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleBatch handles POST /predict/batch requests. Items are decided
// independently and returned in input order.
func (h *PredictHandler) HandleBatch(w http.ResponseWriter, r *http.Request) {
	const op = "api.predict_batch"
	if !allowMethod(w, r, op, http.MethodPost) {
		return
	}

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, WrapKind(op, ErrBadRequest, err))
		return
	}
	var req batchRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, WrapKind(op, ErrBadRequest, err))
		return
	}
	if len(req.Passengers) == 0 {
		writeError(w, http.StatusBadRequest, codeBadRequest,
			WrapKind(op, ErrBadRequest, errors.New("passengers must not be empty")))
		return
	}
	if len(req.Passengers) > h.maxBatchSize {
		writeError(w, http.StatusRequestEntityTooLarge, codeBatchTooLarge,
			WrapKind(op, ErrBatchTooLarge, fmt.Errorf("%d passengers, limit is %d", len(req.Passengers), h.maxBatchSize)))
		return
	}

	items := make([]batchItem, len(req.Passengers))
	recs := make([]schema.PassengerRecord, 0, len(req.Passengers))
	// positions maps an index in recs back to its index in the request.
	positions := make([]int, 0, len(req.Passengers))
	for i, p := range req.Passengers {
		items[i].Index = i
		rec, violations, err := decodePassenger(p)
		switch {
		case err != nil:
			items[i].Error = &errorResponse{Code: codeBadRequest, Message: err.Error()}
		case len(violations) > 0:
			items[i].Error = &errorResponse{Code: codeValidationFailed, Message: "passenger record failed validation", Violations: violations}
		default:
			recs = append(recs, rec)
			positions = append(positions, i)
		}
	}

	if len(recs) > 0 {
		outcomes, err := h.deps.PredictBatch(r.Context(), recs)
		if errors.Is(err, service.ErrBatchTooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, codeBatchTooLarge, WrapKind(op, ErrBatchTooLarge, err))
			return
		}
		if err != nil {
			h.writePredictError(w, r, op, err)
			return
		}
		for j, o := range outcomes {
			i := positions[j]
			if o.Err != nil {
				items[i].Error = h.itemError(r, op, o.Err)
				continue
			}
			res := o.Result
			items[i].Result = &res
		}
	}

	writeJSON(w, http.StatusOK, batchResponse{Results: items})
}

func (h *PredictHandler) writePredictError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var verr *schema.ValidationError
	if errors.As(err, &verr) {
		writeViolations(w, verr.Violations)
		return
	}
	h.logger.Error(r.Context(), "prediction failed",
		logger.String("op", op),
		logger.String("request_id", RequestIDFromContext(r.Context())),
		logger.Error(err),
	)
	writeError(w, http.StatusInternalServerError, codeInternal, NewKind(op, ErrInternal))
}

func (h *PredictHandler) itemError(r *http.Request, op string, err error) *errorResponse {
	var verr *schema.ValidationError
	if errors.As(err, &verr) {
		return &errorResponse{Code: codeValidationFailed, Message: "passenger record failed validation", Violations: verr.Violations}
	}
	h.logger.Error(r.Context(), "batch item failed",
		logger.String("op", op),
		logger.String("request_id", RequestIDFromContext(r.Context())),
		logger.Error(err),
	)
	return &errorResponse{Code: codeInternal, Message: NewKind(op, ErrInternal).Error()}
}
