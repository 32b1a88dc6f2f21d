// Package handler implements the HTTP handlers of the delivery surface.
package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/creamcroissant/marzgo/internal/auth/token"
	"github.com/creamcroissant/marzgo/internal/repository"
	"github.com/creamcroissant/marzgo/internal/service"
	"github.com/creamcroissant/marzgo/internal/subscription"
)

// Subscription serves subscription payloads keyed by signed token.
type Subscription struct {
	tokens  *token.Manager
	service *service.SubscriptionService
	logger  *slog.Logger
}

// NewSubscription assembles the handler.
func NewSubscription(tokens *token.Manager, svc *service.SubscriptionService, logger *slog.Logger) *Subscription {
	if logger == nil {
		logger = slog.Default()
	}
	return &Subscription{tokens: tokens, service: svc, logger: logger}
}

// Get handles GET /sub/{token}. The optional "format" query parameter
// overrides User-Agent detection; "base64=true" wraps the payload.
func (h *Subscription) Get(w http.ResponseWriter, r *http.Request) {
	username, err := h.tokens.Verify(chi.URLParam(r, "token"))
	if err != nil {
		http.Error(w, "invalid subscription token", http.StatusUnauthorized)
		return
	}

	asBase64, _ := strconv.ParseBool(r.URL.Query().Get("base64"))

	result, err := h.service.Generate(r.Context(), service.GenerateRequest{
		Username:  username,
		Format:    subscription.Format(r.URL.Query().Get("format")),
		UserAgent: r.Header.Get("User-Agent"),
		AsBase64:  asBase64,
	})
	if err != nil {
		h.writeError(w, username, err)
		return
	}

	w.Header().Set("ETag", result.ETag)
	if r.Header.Get("If-None-Match") == result.ETag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	contentType := result.ContentType
	if asBase64 {
		contentType = "text/plain; charset=utf-8"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Subscription-Userinfo", result.UserInfo)
	w.Header().Set("Profile-Title", result.ProfileTitle)
	w.Header().Set("Profile-Update-Interval", strconv.Itoa(result.UpdateIntervalHours))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))

	_, _ = w.Write([]byte(result.Payload))
}

func (h *Subscription) writeError(w http.ResponseWriter, username string, err error) {
	var unsupported *subscription.UnsupportedFormatError
	switch {
	case errors.Is(err, repository.ErrUserNotFound):
		http.Error(w, "user not found", http.StatusNotFound)
	case errors.As(err, &unsupported):
		http.Error(w, unsupported.Error(), http.StatusBadRequest)
	default:
		h.logger.Error("subscription generation failed",
			slog.String("username", username),
			slog.String("error", err.Error()),
		)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
