package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/fleetclock/fleetclock/internal/api/middleware"
	"github.com/fleetclock/fleetclock/internal/api/models"
	"github.com/fleetclock/fleetclock/internal/api/response"
	"github.com/fleetclock/fleetclock/internal/itinerary"
)

// MaxBatchBodyBytes is the largest accepted route batch body.
const MaxBatchBodyBytes = 10 << 20

// BatchAnnotator annotates a route batch with ETAs and ETDs.
type BatchAnnotator interface {
	AnnotateBatch(ctx context.Context, batch itinerary.RouteBatch) itinerary.BatchResult
}

// DirectionsHandler handles the route directions endpoint.
type DirectionsHandler struct {
	annotator BatchAnnotator
	logger    zerolog.Logger
}

// NewDirectionsHandler creates a new DirectionsHandler.
func NewDirectionsHandler(annotator BatchAnnotator, logger zerolog.Logger) *DirectionsHandler {
	return &DirectionsHandler{
		annotator: annotator,
		logger:    logger.With().Str("handler", "directions").Logger(),
	}
}

// AnnotateBatch handles POST /v1/route-directions.
//
// The response status mirrors the batch status: 200 when every route was
// processed (failed routes come back unannotated), 500 when the batch itself
// could not be assembled.
func (h *DirectionsHandler) AnnotateBatch(w http.ResponseWriter, r *http.Request) {
	batch, err := decodeBatch(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.PayloadTooLarge(w, r, fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
			return
		}
		response.BadRequest(w, r, "invalid route batch", []models.FieldError{fieldError(err)})
		return
	}

	result := h.annotator.AnnotateBatch(r.Context(), batch)

	h.logger.Info().
		Str("request_id", middleware.GetRequestID(r.Context())).
		Int("planned_routes", len(batch.PlannedRoutes)).
		Int("other_planned_routes", len(batch.OtherPlannedRoutes)).
		Int("degraded", result.Degraded).
		Int("status", result.Status).
		Msg("route batch annotated")

	w.Header().Set("X-Degraded-Routes", strconv.Itoa(result.Degraded))
	response.JSON(w, r, result.Status, models.DirectionsResponse{
		Status: result.Status,
		Data:   result.Batch,
	})
}

func decodeBatch(body io.Reader) (itinerary.RouteBatch, error) {
	var batch itinerary.RouteBatch

	dec := json.NewDecoder(body)
	if err := dec.Decode(&batch); err != nil {
		if errors.Is(err, io.EOF) {
			return batch, errors.New("request body is empty")
		}
		return batch, err
	}
	if dec.More() {
		return batch, errors.New("request body must contain a single JSON object")
	}
	return batch, nil
}

func fieldError(err error) models.FieldError {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError

	switch {
	case errors.As(err, &syntaxErr):
		return models.FieldError{
			Field:   "body",
			Message: fmt.Sprintf("malformed JSON at offset %d", syntaxErr.Offset),
			Code:    "MALFORMED_JSON",
		}
	case errors.As(err, &typeErr):
		field := typeErr.Field
		if field == "" {
			field = "body"
		}
		return models.FieldError{
			Field:   field,
			Message: err.Error(),
			Code:    "INVALID_TYPE",
		}
	default:
		return models.FieldError{Field: "body", Message: err.Error(), Code: "INVALID"}
	}
}
