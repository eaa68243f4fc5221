// Package handler exposes the profile service's HTTP surface.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"mentora/internal/profile"
	dErrors "mentora/pkg/domain-errors"
	"mentora/pkg/platform/httputil"
)

// Service is the slice of the profile layer the handler needs.
type Service interface {
	PromoteEducator(ctx context.Context, userID uuid.UUID) error
	FindProfile(ctx context.Context, userID uuid.UUID) (*profile.UserProfile, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts profile endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/profiles/{userID}", h.HandleGetProfile)
	r.Post("/profiles/{userID}/educator", h.HandlePromoteEducator)
}

type profileResponse struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	BirthDate string `json:"birthDate"`
	Educator  bool   `json:"educator"`
}

// HandleGetProfile handles GET /profiles/{userID} requests.
func (h *Handler) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid user id"))
		return
	}

	p, err := h.service.FindProfile(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, profileResponse{
		ID:        p.ID.String(),
		FirstName: p.FirstName,
		LastName:  p.LastName,
		BirthDate: p.BirthDate.Format("2006-01-02"),
		Educator:  p.Educator,
	})
}

// HandlePromoteEducator handles POST /profiles/{userID}/educator requests.
func (h *Handler) HandlePromoteEducator(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid user id"))
		return
	}

	if err := h.service.PromoteEducator(r.Context(), userID); err != nil {
		h.logger.Error("educator promotion failed", "user_id", userID, "error", err)
		httputil.WriteError(w, err)
		return
	}

	h.logger.Info("educator promotion accepted", "user_id", userID)
	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}
