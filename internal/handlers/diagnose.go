package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/veydev/autocare/internal/db"
	"github.com/veydev/autocare/internal/diagnose"
	"github.com/veydev/autocare/internal/middleware"
	"github.com/veydev/autocare/internal/models"
)

// Diagnoser answers one diagnostic question.
type Diagnoser interface {
	Diagnose(ctx context.Context, req models.DiagnoseRequest) (*models.DiagnoseResponse, error)
}

// DiagnoseHandler proxies diagnostic questions to the AI backend and keeps
// the chat transcript.
type DiagnoseHandler struct {
	client Diagnoser
	chats  db.ChatCollection
}

// NewDiagnoseHandler creates a new diagnosis handler
func NewDiagnoseHandler(client Diagnoser, chats db.ChatCollection) *DiagnoseHandler {
	return &DiagnoseHandler{
		client: client,
		chats:  chats,
	}
}

// Diagnose handles POST /api/diagnose
func (h *DiagnoseHandler) Diagnose(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "User context not found", http.StatusUnauthorized)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	var req models.DiagnoseRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if req.Text == "" && req.Image == "" {
		http.Error(w, "Text or image is required", http.StatusBadRequest)
		return
	}

	h.saveMessage(r.Context(), models.ChatMessage{
		UserID:   claims.UserID,
		Role:     "user",
		Text:     req.Text,
		HasImage: req.Image != "",
	})

	resp, err := h.client.Diagnose(r.Context(), req)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		if errors.Is(err, diagnose.ErrQuotaExceeded) {
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(models.DiagnoseError{
				Error:        "AI quota exceeded, try again later",
				IsQuotaError: true,
			})
			return
		}
		log.WithError(err).Error("Diagnosis request failed")
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(models.DiagnoseError{
			Error:   "Diagnosis service unavailable",
			Details: err.Error(),
		})
		return
	}

	h.saveMessage(r.Context(), models.ChatMessage{
		UserID: claims.UserID,
		Role:   "assistant",
		Text:   answerText(resp),
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// HandleHistory dispatches /api/diagnose/history by method
func (h *DiagnoseHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "User context not found", http.StatusUnauthorized)
		return
	}

	switch r.Method {
	case http.MethodGet:
		messages, err := h.chats.FindMessages(r.Context(), claims.UserID, 50)
		if err != nil {
			http.Error(w, "Failed to fetch chat history", http.StatusInternalServerError)
			return
		}
		if messages == nil {
			messages = []models.ChatMessage{}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(messages)
	case http.MethodDelete:
		if err := h.chats.DeleteMessages(r.Context(), claims.UserID); err != nil {
			http.Error(w, "Failed to clear chat history", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"message": "Chat history cleared"})
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// saveMessage appends to the transcript; failures are logged, not surfaced.
func (h *DiagnoseHandler) saveMessage(ctx context.Context, msg models.ChatMessage) {
	if h.chats == nil {
		return
	}
	msg.CreatedAt = time.Now()
	if err := h.chats.InsertMessage(ctx, msg); err != nil {
		log.WithError(err).Warn("Failed to persist chat message")
	}
}

func answerText(resp *models.DiagnoseResponse) string {
	if resp.Message != "" {
		return resp.Message
	}
	if len(resp.Results) > 0 {
		return resp.Results[0].Diagnosis
	}
	return ""
}
