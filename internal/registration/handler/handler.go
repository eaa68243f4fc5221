// Package handler exposes the auth service's registration endpoints.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"mentora/internal/registration"
	dErrors "mentora/pkg/domain-errors"
	"mentora/pkg/platform/httputil"
)

// Service defines the registration operations the transport needs.
type Service interface {
	Register(ctx context.Context, req registration.RegisterRequest) (*registration.RegisterResult, error)
	Status(ctx context.Context, token string) (registration.Status, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts registration endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/auth/register", h.HandleRegister)
	r.Post("/auth/register/status", h.HandleStatus)
}

type registerRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	BirthDate string `json:"birthDate"`
}

func (r registerRequest) validate() (time.Time, error) {
	switch {
	case r.Username == "":
		return time.Time{}, dErrors.New(dErrors.CodeBadRequest, "username is required")
	case r.Email == "":
		return time.Time{}, dErrors.New(dErrors.CodeBadRequest, "email is required")
	case len(r.Password) < 8:
		return time.Time{}, dErrors.New(dErrors.CodeBadRequest, "password must be at least 8 characters")
	case r.FirstName == "" || r.LastName == "":
		return time.Time{}, dErrors.New(dErrors.CodeBadRequest, "first and last name are required")
	}

	birthDate, err := time.Parse("2006-01-02", r.BirthDate)
	if err != nil {
		return time.Time{}, dErrors.New(dErrors.CodeBadRequest, "birthDate must be YYYY-MM-DD")
	}
	return birthDate, nil
}

type registerResponse struct {
	UserID      string `json:"userId"`
	Username    string `json:"username"`
	StatusToken string `json:"statusToken"`
}

// HandleRegister handles POST /auth/register requests.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[registerRequest](w, r, h.logger)
	if !ok {
		return
	}

	birthDate, err := req.validate()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.service.Register(r.Context(), registration.RegisterRequest{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		BirthDate: birthDate,
	})
	if err != nil {
		h.logger.Error("registration rejected", "username", req.Username, "error", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusAccepted, registerResponse{
		UserID:      result.UserID.String(),
		Username:    req.Username,
		StatusToken: result.StatusToken,
	})
}

type statusRequest struct {
	Token string `json:"token"`
}

type statusResponse struct {
	Status string `json:"status"`
}

// HandleStatus handles POST /auth/register/status requests. The token goes
// in the body rather than the URL so it never lands in access logs.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[statusRequest](w, r, h.logger)
	if !ok {
		return
	}
	if req.Token == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "token is required"))
		return
	}

	status, err := h.service.Status(r.Context(), req.Token)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, statusResponse{Status: string(status)})
}
