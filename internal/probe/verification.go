package probe

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
)

const (
	decisionThreshold = 0.5
	featureCount      = 8
)

// verifyPrediction checks a response for a valid passenger and returns the
// decoded prediction.
func verifyPrediction(resp response) (Prediction, error) {
	if resp.status != http.StatusOK {
		return Prediction{}, fmt.Errorf("status %d, want %d: %s", resp.status, http.StatusOK, resp.body)
	}
	var p Prediction
	if err := json.Unmarshal(resp.body, &p); err != nil {
		return Prediction{}, fmt.Errorf("decode prediction: %w", err)
	}
	if math.IsNaN(p.Probability) || p.Probability < 0 || p.Probability > 1 {
		return p, fmt.Errorf("probability %v outside [0, 1]", p.Probability)
	}
	if p.Survived != (p.Probability >= decisionThreshold) {
		return p, fmt.Errorf("survived=%t disagrees with probability %v", p.Survived, p.Probability)
	}
	if len(p.Features) != featureCount {
		return p, fmt.Errorf("got %d features, want %d", len(p.Features), featureCount)
	}
	return p, nil
}

// verifyRejection checks that the service refused a passenger and named field.
func verifyRejection(resp response, field string) error {
	if resp.status != http.StatusUnprocessableEntity {
		return fmt.Errorf("status %d, want %d: %s", resp.status, http.StatusUnprocessableEntity, resp.body)
	}
	var e ErrorResponse
	if err := json.Unmarshal(resp.body, &e); err != nil {
		return fmt.Errorf("decode error response: %w", err)
	}
	for _, v := range e.Violations {
		if v.Field == field {
			return nil
		}
	}
	return fmt.Errorf("violations %v do not name %q", e.Violations, field)
}

// verifyRepeat checks that a repeated prediction is bit-identical to the first.
func verifyRepeat(first, again Prediction) error {
	if math.Float64bits(first.Probability) != math.Float64bits(again.Probability) {
		return fmt.Errorf("probability drifted: %v then %v", first.Probability, again.Probability)
	}
	if first.Survived != again.Survived {
		return fmt.Errorf("decision flipped on repeat")
	}
	return nil
}
