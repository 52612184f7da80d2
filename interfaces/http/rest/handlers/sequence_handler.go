package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"phenotag-backend/application/sequence"
	"phenotag-backend/domain/core/entities"
	"phenotag-backend/domain/core/valueobjects"
	"phenotag-backend/pkg/common"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// SequenceHandler exposes sequence initialization, saves and reads
type SequenceHandler struct {
	sequencer *sequence.Sequencer
	validate  *validator.Validate
	logger    *zap.Logger
}

// NewSequenceHandler creates a sequence handler
func NewSequenceHandler(sequencer *sequence.Sequencer, logger *zap.Logger) *SequenceHandler {
	return &SequenceHandler{
		sequencer: sequencer,
		validate:  validator.New(),
		logger:    logger,
	}
}

type imageRequest struct {
	ID          string    `json:"id" validate:"required"`
	CaptureTime time.Time `json:"captureTime" validate:"required"`
}

type initializeRequest struct {
	Images []imageRequest `json:"images" validate:"required,min=1,dive"`
}

type saveRequest struct {
	Annotations        []entities.Annotation `json:"annotations" validate:"required"`
	IsManualAdjustment bool                  `json:"isManualAdjustment"`
}

// normalizeAnnotation defaults an omitted annotationType to regular so key
// matching stays consistent across clients
func normalizeAnnotation(a entities.Annotation) entities.Annotation {
	if a.Type == "" {
		a.Type = valueobjects.AnnotationTypeRegular
	}
	return a
}

// Initialize handles POST /plants/{plantID}/views/{viewAngle}/sequence
func (h *SequenceHandler) Initialize(w http.ResponseWriter, r *http.Request) {
	plantID := chi.URLParam(r, "plantID")
	viewAngle := chi.URLParam(r, "viewAngle")

	var req initializeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondError(w, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		common.RespondError(w, http.StatusBadRequest, "VALIDATION", err.Error())
		return
	}

	images := make([]entities.Image, len(req.Images))
	for i, img := range req.Images {
		images[i] = entities.Image{ID: img.ID, CaptureTime: img.CaptureTime}
	}

	info, err := h.sequencer.Initialize(plantID, viewAngle, images)
	if err != nil {
		common.RespondAppError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusCreated, info)
}

// Save handles POST /plants/{plantID}/views/{viewAngle}/images/{imageID}/annotations
func (h *SequenceHandler) Save(w http.ResponseWriter, r *http.Request) {
	plantID := chi.URLParam(r, "plantID")
	viewAngle := chi.URLParam(r, "viewAngle")
	imageID := chi.URLParam(r, "imageID")

	var req saveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondError(w, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		common.RespondError(w, http.StatusBadRequest, "VALIDATION", err.Error())
		return
	}

	annotations := make([]entities.Annotation, len(req.Annotations))
	for i, a := range req.Annotations {
		annotations[i] = normalizeAnnotation(a)
	}

	result, err := h.sequencer.Save(r.Context(), plantID, viewAngle, imageID, annotations, req.IsManualAdjustment)
	if err != nil {
		common.RespondAppError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, result)
}

// GetAnnotations handles GET .../images/{imageID}/annotations
func (h *SequenceHandler) GetAnnotations(w http.ResponseWriter, r *http.Request) {
	plantID := chi.URLParam(r, "plantID")
	viewAngle := chi.URLParam(r, "viewAngle")
	imageID := chi.URLParam(r, "imageID")

	annotations := h.sequencer.GetAnnotations(plantID, viewAngle, imageID)
	common.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"imageId":     imageID,
		"annotations": annotations,
	})
}

// GetMetadata handles GET .../images/{imageID}/metadata
func (h *SequenceHandler) GetMetadata(w http.ResponseWriter, r *http.Request) {
	plantID := chi.URLParam(r, "plantID")
	viewAngle := chi.URLParam(r, "viewAngle")
	imageID := chi.URLParam(r, "imageID")

	meta := h.sequencer.GetMetadata(plantID, viewAngle, imageID)
	if meta == nil {
		common.RespondError(w, http.StatusNotFound, "NOT_FOUND", "image not found in sequence")
		return
	}
	common.RespondJSON(w, http.StatusOK, meta)
}

// GetStats handles GET /plants/{plantID}/views/{viewAngle}/stats
func (h *SequenceHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	plantID := chi.URLParam(r, "plantID")
	viewAngle := chi.URLParam(r, "viewAngle")

	stats, err := h.sequencer.GetStats(plantID, viewAngle)
	if err != nil {
		common.RespondAppError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, stats)
}
