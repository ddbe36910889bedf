package api

import (
	"net/http"

	"github.com/okian/lifeboat/internal/domain/schema"
)

// ModelHandler serves model and schema descriptions.
type ModelHandler struct {
	model ModelDescriber
}

// NewModelHandler creates a new model handler.
func NewModelHandler(model ModelDescriber) *ModelHandler {
	return &ModelHandler{model: model}
}

type schemaResponse struct {
	Fields       []schema.FieldSpec `json:"fields"`
	FeatureOrder []string           `json:"feature_order"`
}

// HandleModel handles GET /model requests.
func (h *ModelHandler) HandleModel(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, "api.model", http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, h.model.Describe())
}

// HandleSchema handles GET /schema requests.
func (h *ModelHandler) HandleSchema(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, "api.schema", http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, schemaResponse{
		Fields:       schema.Fields(),
		FeatureOrder: schema.FeatureOrder(),
	})
}
