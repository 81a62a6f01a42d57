package chat

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/wolfman30/discovery-widget/internal/protocol"
	"github.com/wolfman30/discovery-widget/pkg/logging"
)

const maxBodyBytes = 256 << 10

// Recorder receives per-turn outcomes.
type Recorder interface {
	ObserveChatTurn(outcome string, d time.Duration)
}

// Handler serves POST /api/chat.
type Handler struct {
	service  *Service
	validate *validator.Validate
	metrics  Recorder
	logger   *logging.Logger
}

func NewHandler(service *Service, metrics Recorder, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		service:  service,
		validate: validator.New(),
		metrics:  metrics,
		logger:   logger,
	}
}

// Chat answers one widget turn.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req protocol.ChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.observe("bad_request", start)
		writeJSON(w, http.StatusBadRequest, protocol.ErrorResponse{Error: "Invalid request body"})
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if err := h.validate.Struct(req); err != nil {
		h.observe("bad_request", start)
		writeJSON(w, http.StatusBadRequest, protocol.ErrorResponse{Error: validationMessage(err)})
		return
	}

	resp, err := h.service.Reply(r.Context(), req)
	if err != nil {
		outcome := "llm_error"
		if errors.Is(err, ErrEmptyResponse) {
			outcome = "empty_response"
		}
		h.observe(outcome, start)
		h.logger.Error("chat: reply failed", "conversation_id", req.ConversationID, "error", err)
		writeJSON(w, http.StatusInternalServerError, protocol.ErrorResponse{Error: "Failed to get response from AI"})
		return
	}

	h.observe("ok", start)
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) observe(outcome string, start time.Time) {
	if h.metrics != nil {
		h.metrics.ObserveChatTurn(outcome, time.Since(start))
	}
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		if verrs[0].StructField() == "Message" {
			return "Message is required"
		}
		return "Invalid field: " + verrs[0].Namespace()
	}
	return "Invalid request body"
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
