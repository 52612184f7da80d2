package handlers

import (
	"encoding/json"
	"net/http"

	"phenotag-backend/application/sync"
	"phenotag-backend/domain/core/entities"
	"phenotag-backend/domain/core/valueobjects"
	"phenotag-backend/pkg/common"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// SyncHandler exposes the real-time sync switch and edit triggers
type SyncHandler struct {
	engine   *sync.Engine
	validate *validator.Validate
	logger   *zap.Logger
}

// NewSyncHandler creates a sync handler
func NewSyncHandler(engine *sync.Engine, logger *zap.Logger) *SyncHandler {
	return &SyncHandler{
		engine:   engine,
		validate: validator.New(),
		logger:   logger,
	}
}

type toggleRequest struct {
	Enabled bool `json:"enabled"`
}

type contextRequest struct {
	PlantID   string `json:"plantId" validate:"required"`
	ViewAngle string `json:"viewAngle" validate:"required"`
	ImageID   string `json:"imageId" validate:"required"`
}

type operationRequest struct {
	Kind             string               `json:"kind" validate:"required,oneof=add_keypoint move_keypoint delete_keypoint edit_direction custom_create custom_update custom_delete"`
	Annotation       entities.Annotation  `json:"annotation" validate:"required"`
	Context          contextRequest       `json:"context" validate:"required"`
	PreviousPosition *valueobjects.Point  `json:"previousPosition,omitempty"`
}

// Toggle handles POST /sync/toggle
func (h *SyncHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondError(w, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
		return
	}

	h.engine.SetEnabled(req.Enabled)

	userID, _ := common.GetUserID(r.Context())
	h.logger.Info("sync toggled",
		zap.Bool("enabled", req.Enabled),
		zap.String("userId", userID),
	)

	common.RespondJSON(w, http.StatusOK, map[string]bool{"enabled": h.engine.Enabled()})
}

// Trigger handles POST /sync/operations
func (h *SyncHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	var req operationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondError(w, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		common.RespondError(w, http.StatusBadRequest, "VALIDATION", err.Error())
		return
	}

	annotation := normalizeAnnotation(req.Annotation)
	source := sync.SourceContext{
		PlantID:   req.Context.PlantID,
		ViewAngle: req.Context.ViewAngle,
		ImageID:   req.Context.ImageID,
	}

	switch req.Kind {
	case "add_keypoint":
		h.engine.TriggerAddKeypoint(annotation, source)
	case "move_keypoint":
		h.engine.TriggerMoveKeypoint(annotation, req.PreviousPosition, source)
	case "delete_keypoint":
		h.engine.TriggerDeleteKeypoint(annotation, source)
	case "edit_direction":
		h.engine.TriggerEditDirection(annotation, source)
	case "custom_create":
		h.engine.TriggerCustomCreate(annotation, source)
	case "custom_update":
		h.engine.TriggerCustomUpdate(annotation, source)
	case "custom_delete":
		h.engine.TriggerCustomDelete(annotation, source)
	}

	common.RespondJSON(w, http.StatusAccepted, map[string]interface{}{
		"queued":      h.engine.Enabled(),
		"queueLength": h.engine.QueueLength(),
	})
}

// Status handles GET /sync/status
func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	common.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"enabled":     h.engine.Enabled(),
		"queueLength": h.engine.QueueLength(),
		"lastResult":  h.engine.LastResult(),
	})
}
