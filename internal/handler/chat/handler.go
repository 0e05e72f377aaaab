package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/zhouzirui/chatwidget/internal/model/chat"
	chatService "github.com/zhouzirui/chatwidget/internal/service/chat"
	"github.com/zhouzirui/chatwidget/pkg/utils"
)

var (
	errNoModel   = errors.New("chat model unavailable")
	errModelCall = errors.New("chat model failed to answer")
)

// Responder produces the bot reply for one turn.
type Responder interface {
	Reply(ctx context.Context, sessionID string, history []chat.Entry, text string) (string, error)
}

// Handler serves the chat endpoints.
type Handler struct {
	chatSvc   *chatService.Service
	responder Responder
	timeout   time.Duration
	validate  *validator.Validate
	logger    *zap.Logger
}

// New creates the chat handler. A nil responder makes every turn answer 503.
func New(chatSvc *chatService.Service, responder Responder, timeout time.Duration, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		chatSvc:   chatSvc,
		responder: responder,
		timeout:   timeout,
		validate:  newValidator(),
		logger:    logger.Named("chat"),
	}
}

// RegisterRoutes mounts /chat, /chat-form and /chat/ws.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.handleChat)
	r.Post("/chat-form", h.handleChatForm)
	r.Get("/chat/ws", h.handleWebSocket)
}

type turnRequest struct {
	Text      string `json:"text" validate:"required,max=8000"`
	SessionID string `json:"session_id" validate:"max=256"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	return v
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var payload chat.Request
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.serveTurn(w, r, payload.Text, payload.SessionID)
}

func (h *Handler) handleChatForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid form body")
		return
	}
	h.serveTurn(w, r, r.PostForm.Get("text"), r.PostForm.Get("session_id"))
}

func (h *Handler) serveTurn(w http.ResponseWriter, r *http.Request, text, sessionID string) {
	reply, err := h.answer(r.Context(), text, sessionID)
	if err != nil {
		utils.RespondError(w, statusFor(err), err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, chat.Response{Reply: reply})
}

// answer runs one turn against the session memory and the model.
func (h *Handler) answer(ctx context.Context, text, sessionID string) (string, error) {
	req := turnRequest{
		Text:      strings.TrimSpace(text),
		SessionID: strings.TrimSpace(sessionID),
	}
	if err := h.validate.Struct(req); err != nil {
		return "", &validationError{err: err}
	}
	if h.responder == nil {
		return "", errNoModel
	}

	session := h.chatSvc.EnsureSession(ctx, req.SessionID)
	history, err := h.chatSvc.LoadTranscript(ctx, session.ID)
	if err != nil {
		return "", err
	}
	if _, err := h.chatSvc.SaveMessage(ctx, chat.Entry{
		SessionID: session.ID,
		Sender:    chat.User,
		Content:   req.Text,
	}); err != nil {
		return "", err
	}

	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	reply, err := h.responder.Reply(ctx, session.ID, history, req.Text)
	if err != nil {
		h.logger.Warn("model call failed", zap.String("session_id", session.ID), zap.Error(err))
		return "", errModelCall
	}

	// An empty reply is still a valid answer; it is just not remembered.
	if reply != "" {
		if _, err := h.chatSvc.SaveMessage(ctx, chat.Entry{
			SessionID: session.ID,
			Sender:    chat.Bot,
			Content:   reply,
		}); err != nil {
			h.logger.Warn("failed to store reply", zap.String("session_id", session.ID), zap.Error(err))
		}
	}
	return reply, nil
}

type validationError struct {
	err error
}

func (e *validationError) Error() string {
	var fields validator.ValidationErrors
	if errors.As(e.err, &fields) && len(fields) > 0 {
		f := fields[0]
		switch f.Tag() {
		case "required":
			return f.Field() + " is required"
		case "max":
			return f.Field() + " is too long"
		}
	}
	return "invalid request"
}

func (e *validationError) Unwrap() error { return e.err }

func statusFor(err error) int {
	var invalid *validationError
	switch {
	case errors.As(err, &invalid):
		return http.StatusBadRequest
	case errors.Is(err, errNoModel):
		return http.StatusServiceUnavailable
	case errors.Is(err, errModelCall):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
