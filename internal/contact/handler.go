package contact

import (
	"context"
	"errors"
	"net/http"

	"github.com/dalemusser/contactrelay/httputil"
	"github.com/dalemusser/contactrelay/internal/mailer"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Client-facing response texts.
const (
	MsgSent          = "Message sent successfully!"
	MsgFailed        = "Something went wrong, please try again later."
	MsgInvalidBody   = "Invalid request body."
	MsgBodyTooLarge  = "Request body too large."
	DefaultRoutePath = "/api/contact"
)

// Outcome classifies a handled submission for metrics.
type Outcome string

const (
	OutcomeSent    Outcome = "sent"
	OutcomeInvalid Outcome = "invalid"
	OutcomeFailed  Outcome = "failed"
)

// Handler serves POST /api/contact.
type Handler struct {
	composer  *Composer
	transport mailer.Transport
	logger    *zap.Logger
	observe   func(Outcome)
}

// Option configures a Handler.
type Option func(*Handler)

// WithObserver registers a callback invoked once per request with its outcome.
func WithObserver(fn func(Outcome)) Option {
	return func(h *Handler) {
		if fn != nil {
			h.observe = fn
		}
	}
}

// NewHandler wires the composer and transport. Both are required.
func NewHandler(composer *Composer, transport mailer.Transport, logger *zap.Logger, opts ...Option) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{
		composer:  composer,
		transport: transport,
		logger:    logger,
		observe:   func(Outcome) {},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Mount registers the handler at DefaultRoutePath, wrapped in mw.
func (h *Handler) Mount(r chi.Router, mw ...func(http.Handler) http.Handler) {
	r.With(mw...).Method(http.MethodPost, DefaultRoutePath, h)
}

// ServeHTTP runs decode → validate → compose → send and writes the response.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID := chimw.GetReqID(r.Context())

	var sub Submission
	if err := httputil.DecodeJSON(r, &sub); err != nil {
		h.observe(OutcomeInvalid)
		if errors.Is(err, httputil.ErrBodyTooLarge) {
			httputil.WriteError(w, http.StatusRequestEntityTooLarge, MsgBodyTooLarge)
			return
		}
		h.logger.Debug("contact body rejected", zap.String("request_id", reqID), zap.Error(err))
		httputil.WriteError(w, http.StatusBadRequest, MsgInvalidBody)
		return
	}

	if err := Validate(sub); err != nil {
		h.observe(OutcomeInvalid)
		h.logger.Debug("contact submission invalid", zap.String("request_id", reqID), zap.Error(err))
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	msg, err := h.composer.Compose(sub)
	if err != nil {
		h.observe(OutcomeFailed)
		h.logger.Error("contact email compose failed", zap.String("request_id", reqID), zap.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, MsgFailed)
		return
	}

	if msg.ReplyTo == "" {
		h.logger.Warn("submitter address is not a valid header address; sending without Reply-To",
			zap.String("request_id", reqID),
			zap.String("email", sub.Email))
	}

	// A client that goes away mid-send must not cancel delivery; the
	// transport's own timeout bounds the call.
	receipt, err := h.transport.Send(context.WithoutCancel(r.Context()), msg)
	if err != nil {
		h.observe(OutcomeFailed)
		h.logger.Error("email sending failed",
			zap.String("request_id", reqID),
			zap.String("transport", h.transport.Name()),
			zap.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, MsgFailed)
		return
	}

	h.observe(OutcomeSent)
	h.logger.Info("contact form email sent",
		zap.String("request_id", reqID),
		zap.String("transport", receipt.Transport),
		zap.String("message_id", receipt.MessageID))
	httputil.WriteMessage(w, http.StatusOK, MsgSent)
}
