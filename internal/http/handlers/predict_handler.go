// README: Predictor API handler; serves POST /predict for the leave-time predictor client.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"commute/internal/prediction"
)

type PredictHandler struct {
	model    prediction.Predictor
	validate *validator.Validate
}

func NewPredictHandler(model prediction.Predictor) *PredictHandler {
	return &PredictHandler{model: model, validate: validator.New()}
}

// Predict handles POST /predict.
func (h *PredictHandler) Predict(c *gin.Context) {
	var in prediction.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validate.Struct(in); err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	p, err := h.model.Predict(c.Request.Context(), in)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, p)
}
