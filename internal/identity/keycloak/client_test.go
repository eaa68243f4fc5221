package keycloak

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"mentora/internal/identity"
	"mentora/internal/platform/config"
	dErrors "mentora/pkg/domain-errors"
)

// fakeRealm is a minimal stand-in for the Keycloak admin API covering the
// endpoints the client touches.
type fakeRealm struct {
	mu          sync.Mutex
	users       map[uuid.UUID]*userRepresentation
	tokenIssued int
}

func newFakeRealm() *fakeRealm {
	return &fakeRealm{users: make(map[uuid.UUID]*userRepresentation)}
}

func (f *fakeRealm) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /realms/test/protocol/openid-connect/token", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.tokenIssued++
		f.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]any{"access_token": "fake-token", "expires_in": 300})
	})

	mux.HandleFunc("GET /admin/realms/test/users", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		matches := []userRepresentation{}
		for _, u := range f.users {
			if q := r.URL.Query().Get("email"); q != "" && u.Email == q {
				matches = append(matches, *u)
			}
			if q := r.URL.Query().Get("username"); q != "" && u.Username == q {
				matches = append(matches, *u)
			}
		}
		json.NewEncoder(w).Encode(matches)
	})

	mux.HandleFunc("POST /admin/realms/test/users", func(w http.ResponseWriter, r *http.Request) {
		var rep userRepresentation
		if err := json.NewDecoder(r.Body).Decode(&rep); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		id := uuid.New()
		rep.ID = id.String()
		f.users[id] = &rep
		w.Header().Set("Location", r.Host+"/admin/realms/test/users/"+id.String())
		w.WriteHeader(http.StatusCreated)
	})

	mux.HandleFunc("GET /admin/realms/test/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		u, ok := f.lookup(r.PathValue("id"))
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(u)
	})

	mux.HandleFunc("PUT /admin/realms/test/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		var rep userRepresentation
		if err := json.NewDecoder(r.Body).Decode(&rep); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		u, ok := f.lookup(r.PathValue("id"))
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		u.Enabled = rep.Enabled
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("DELETE /admin/realms/test/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		id, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if _, ok := f.users[id]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		delete(f.users, id)
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET /admin/realms/test/roles/{role}", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"id": uuid.NewString(), "name": r.PathValue("role")})
	})

	mux.HandleFunc("POST /admin/realms/test/users/{id}/role-mappings/realm", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if _, ok := f.lookup(r.PathValue("id")); !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	return mux
}

func (f *fakeRealm) lookup(raw string) (*userRepresentation, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, false
	}
	u, ok := f.users[id]
	return u, ok
}

func newTestClient(t *testing.T) (*Client, *fakeRealm) {
	t.Helper()
	realm := newFakeRealm()
	srv := httptest.NewServer(realm.handler())
	t.Cleanup(srv.Close)

	cfg := config.KeycloakConfig{
		BaseURL:      srv.URL,
		Realm:        "test",
		ClientID:     "admin-api",
		ClientSecret: "secret",
		Timeout:      2 * time.Second,
	}
	return New(cfg, slog.New(slog.DiscardHandler)), realm
}

func TestClientLifecycle(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestClient(t)

	id, err := client.CreateDisabled(ctx, "alice", "alice@example.com", "s3cret-pass")
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, id)

	state, err := client.Enablement(ctx, id)
	require.NoError(t, err)
	require.Equal(t, identity.EnablementDisabled, state)

	require.NoError(t, client.Enable(ctx, id))

	state, err = client.Enablement(ctx, id)
	require.NoError(t, err)
	require.Equal(t, identity.EnablementEnabled, state)

	require.NoError(t, client.AssignRole(ctx, id, identity.RoleEducator))

	require.NoError(t, client.Delete(ctx, id))

	state, err = client.Enablement(ctx, id)
	require.NoError(t, err)
	require.Equal(t, identity.EnablementAbsent, state)
}

func TestClientConflictOnDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestClient(t)

	_, err := client.CreateDisabled(ctx, "alice", "alice@example.com", "s3cret-pass")
	require.NoError(t, err)

	_, err = client.CreateDisabled(ctx, "bob", "alice@example.com", "other-pass")
	require.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
}

func TestClientNotFoundMapping(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestClient(t)

	err := client.Delete(ctx, uuid.New())
	require.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))

	err = client.Enable(ctx, uuid.New())
	require.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestClientCachesServiceToken(t *testing.T) {
	ctx := context.Background()
	client, realm := newTestClient(t)

	_, err := client.CreateDisabled(ctx, "alice", "alice@example.com", "s3cret-pass")
	require.NoError(t, err)
	_, err = client.Enablement(ctx, uuid.New())
	require.NoError(t, err)

	realm.mu.Lock()
	defer realm.mu.Unlock()
	require.Equal(t, 1, realm.tokenIssued)
}
