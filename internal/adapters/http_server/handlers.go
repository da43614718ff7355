// internal/adapters/http_server/handlers.go
package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"hotelbot/internal/app"
)

// Bot is the conversation entry point the webhook routes feed.
type Bot interface {
	ProcessCommand(ctx context.Context, chatID int64, text string) app.Outcome
	ProcessUserMessage(ctx context.Context, chatID int64, text string) app.Outcome
	ProcessCallback(ctx context.Context, chatID int64, payload string) app.Outcome
}

type Handlers struct {
	Bot      Bot
	validate *validator.Validate
}

func NewHandlers(b Bot) *Handlers {
	return &Handlers{Bot: b, validate: validator.New()}
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

type textRequest struct {
	Text string `json:"text" validate:"required,max=4096"`
}

type callbackRequest struct {
	Data string `json:"data" validate:"required,max=64"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Route("/v1/chats/{chatID}", func(r chi.Router) {
		r.Post("/commands", h.command)
		r.Post("/messages", h.message)
		r.Post("/callbacks", h.callback)
	})
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

func writeOutcome(w http.ResponseWriter, out app.Outcome) {
	body, err := json.Marshal(out)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal outcome")
		writeProblem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write outcome body")
	}
}

func chatID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "chatID"), 10, 64)
	return id, err == nil && id != 0
}

// decode reads a JSON body into dst and validates it, writing the problem on failure.
func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, 64<<10))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid body", err.Error())
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		detail := err.Error()
		if errors.As(err, &verrs) && len(verrs) > 0 {
			detail = verrs[0].Field() + " failed " + verrs[0].Tag()
		}
		writeProblem(w, http.StatusUnprocessableEntity, "Invalid body", detail)
		return false
	}
	return true
}

func (h *Handlers) command(w http.ResponseWriter, r *http.Request) {
	id, ok := chatID(r)
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Invalid chat", "chatID must be a non-zero integer")
		return
	}
	var req textRequest
	if !h.decode(w, r, &req) {
		return
	}
	writeOutcome(w, h.Bot.ProcessCommand(r.Context(), id, req.Text))
}

func (h *Handlers) message(w http.ResponseWriter, r *http.Request) {
	id, ok := chatID(r)
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Invalid chat", "chatID must be a non-zero integer")
		return
	}
	var req textRequest
	if !h.decode(w, r, &req) {
		return
	}
	writeOutcome(w, h.Bot.ProcessUserMessage(r.Context(), id, req.Text))
}

func (h *Handlers) callback(w http.ResponseWriter, r *http.Request) {
	id, ok := chatID(r)
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Invalid chat", "chatID must be a non-zero integer")
		return
	}
	var req callbackRequest
	if !h.decode(w, r, &req) {
		return
	}
	writeOutcome(w, h.Bot.ProcessCallback(r.Context(), id, req.Data))
}
