package tracker

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/wolfman30/discovery-widget/internal/protocol"
	"github.com/wolfman30/discovery-widget/pkg/logging"
)

const maxBodyBytes = 2 << 20

// Handler serves POST /api/conversation-complete.
type Handler struct {
	service  *Service
	validate *validator.Validate
	logger   *logging.Logger
}

func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, validate: validator.New(), logger: logger}
}

// Complete accepts a finished transcript and emails the summary.
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	var req protocol.CompleteRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, protocol.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if len(req.Messages) == 0 {
		writeJSON(w, http.StatusBadRequest, protocol.ErrorResponse{Error: "Messages array is required"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, protocol.ErrorResponse{Error: validationMessage(err)})
		return
	}

	res, err := h.service.Process(r.Context(), req)
	switch {
	case errors.Is(err, ErrTooShort):
		writeJSON(w, http.StatusBadRequest, protocol.ErrorResponse{Error: fmt.Sprintf("Minimum %d messages required", h.service.opts.MinMessages)})
		return
	case err != nil:
		h.logger.Error("tracker: process failed", "conversation_id", req.Metadata.ConversationID, "error", err)
		writeJSON(w, http.StatusInternalServerError, protocol.ErrorResponse{Error: "Failed to process conversation"})
		return
	}

	writeJSON(w, http.StatusOK, protocol.CompleteResponse{
		Success:   true,
		Message:   "Conversation processed and email sent",
		SummaryID: res.SummaryID,
	})
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return "Invalid field: " + verrs[0].Namespace()
	}
	return "Invalid request body"
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
