package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"mentora/internal/registration"
	dErrors "mentora/pkg/domain-errors"
)

type fakeService struct {
	registerResult *registration.RegisterResult
	registerErr    error
	status         registration.Status
	statusErr      error
	lastRequest    *registration.RegisterRequest
}

func (f *fakeService) Register(_ context.Context, req registration.RegisterRequest) (*registration.RegisterResult, error) {
	f.lastRequest = &req
	return f.registerResult, f.registerErr
}

func (f *fakeService) Status(context.Context, string) (registration.Status, error) {
	return f.status, f.statusErr
}

func newTestRouter(service Service) chi.Router {
	r := chi.NewRouter()
	New(service, slog.New(slog.DiscardHandler)).Register(r)
	return r
}

func post(router chi.Router, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

const validRegisterBody = `{
	"username": "ada",
	"email": "ada@example.com",
	"password": "s3cret-pass",
	"firstName": "Ada",
	"lastName": "Lovelace",
	"birthDate": "1815-12-10"
}`

func TestRegisterAccepted(t *testing.T) {
	service := &fakeService{registerResult: &registration.RegisterResult{
		UserID:      uuid.New(),
		StatusToken: "token-123",
	}}
	router := newTestRouter(service)

	w := post(router, "/auth/register", validRegisterBody)

	require.Equal(t, http.StatusAccepted, w.Code)
	require.Contains(t, w.Body.String(), `"statusToken":"token-123"`)
	require.Equal(t, 1815, service.lastRequest.BirthDate.Year())
}

func TestRegisterValidation(t *testing.T) {
	router := newTestRouter(&fakeService{})

	cases := map[string]string{
		"missing username": `{"email":"a@b.c","password":"s3cret-pass","firstName":"A","lastName":"B","birthDate":"1990-01-01"}`,
		"short password":   `{"username":"ada","email":"a@b.c","password":"short","firstName":"A","lastName":"B","birthDate":"1990-01-01"}`,
		"bad birth date":   `{"username":"ada","email":"a@b.c","password":"s3cret-pass","firstName":"A","lastName":"B","birthDate":"10/12/1990"}`,
		"malformed json":   `{not json`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			w := post(router, "/auth/register", body)
			require.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestRegisterConflict(t *testing.T) {
	service := &fakeService{registerErr: dErrors.New(dErrors.CodeConflict, "email already registered")}
	router := newTestRouter(service)

	w := post(router, "/auth/register", validRegisterBody)

	require.Equal(t, http.StatusConflict, w.Code)
	require.Contains(t, w.Body.String(), "email already registered")
}

func TestStatus(t *testing.T) {
	service := &fakeService{status: registration.StatusPending}
	router := newTestRouter(service)

	w := post(router, "/auth/register/status", `{"token":"some-token"}`)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"status":"PENDING"`)
}

func TestStatusRequiresToken(t *testing.T) {
	router := newTestRouter(&fakeService{})
	w := post(router, "/auth/register/status", `{}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatusUnauthorized(t *testing.T) {
	service := &fakeService{statusErr: dErrors.New(dErrors.CodeUnauthorized, "invalid status token")}
	router := newTestRouter(service)

	w := post(router, "/auth/register/status", `{"token":"expired"}`)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}
