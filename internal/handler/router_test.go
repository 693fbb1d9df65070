package handler

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/eventorg/internal/apiclient"
	"github.com/hitoshi/eventorg/internal/backend"
	"github.com/hitoshi/eventorg/internal/client"
	"github.com/hitoshi/eventorg/internal/docstore"
	"github.com/hitoshi/eventorg/internal/identity"
	"github.com/hitoshi/eventorg/internal/metrics"
	"github.com/hitoshi/eventorg/internal/middleware"
	"github.com/hitoshi/eventorg/internal/model"
	"github.com/hitoshi/eventorg/internal/repository"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/crypto/bcrypt"
)

type failingPinger struct{ err error }

func (p failingPinger) PingContext(ctx context.Context) error { return p.err }

// newTestServer はインメモリバックエンドでAPIサーバーを起動する。
func newTestServer(t *testing.T, checker HealthChecker) *httptest.Server {
	t.Helper()

	reg := prometheus.NewRegistry()
	mc := metrics.NewCollector(reg)
	accounts := backend.NewAccounts(
		repository.NewMemoryAccountRepo(),
		repository.NewMemorySessionRepo(),
		backend.AccountsConfig{TokenSecret: []byte("test-secret"), BcryptCost: bcrypt.MinCost},
		mc,
	)
	rl := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(600, 60))
	t.Cleanup(rl.Stop)

	router := NewRouter(&RouterDeps{
		Accounts:          accounts,
		Documents:         backend.NewDocuments(repository.NewMemoryDocumentRepo(), mc),
		Verifier:          accounts,
		HealthChecker:     checker,
		CORSAllowedOrigin: "http://localhost:3000",
		RateLimiter:       rl,
		Metrics:           mc,
		Gatherer:          reg,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

// newRemoteClient はHTTP経由でサーバーに接続するクライアントを生成する。
func newRemoteClient(t *testing.T, srv *httptest.Server) *client.Client {
	t.Helper()

	var ids *identity.Client
	api := apiclient.New(srv.URL, srv.Client(), func() string { return ids.Token() })
	ids = identity.NewClient(identity.NewHTTPAuthenticator(api))

	c := client.New(client.Config{RemoteTimeout: 5 * time.Second}, docstore.NewHTTPStore(api), ids)
	c.Start()
	t.Cleanup(c.Close)
	return c
}

func strPtr(s string) *string { return &s }

func TestRouter_Health(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if resp.Header.Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers should be applied to every route")
	}
}

func TestRouter_HealthUnavailable(t *testing.T) {
	srv := newTestServer(t, failingPinger{err: context.DeadlineExceeded})

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusServiceUnavailable)
	}
}

func TestRouter_ProtectedRoutesRequireToken(t *testing.T) {
	srv := newTestServer(t, nil)

	for _, path := range []string{"/v1/accounts/me", "/v1/collections/events/documents"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("GET %s status = %d, want %d", path, resp.StatusCode, http.StatusUnauthorized)
		}
	}
}

func TestRouter_SignOutWithoutTokenSucceeds(t *testing.T) {
	srv := newTestServer(t, nil)

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/v1/sessions/current", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)

	// 1件記録させてから取得する
	if resp, err := http.Get(srv.URL + "/health"); err == nil {
		resp.Body.Close()
	}

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "eventorg_http_status_total") {
		t.Errorf("metrics output missing eventorg_http_status_total:\n%s", body)
	}
}

func TestRouter_RemoteClientRoundTrip(t *testing.T) {
	srv := newTestServer(t, nil)
	ctx := context.Background()

	alice := newRemoteClient(t, srv)
	user, err := alice.SignUp(ctx, "alice@example.com", "secret1", "secret1", "Alice")
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if user.DisplayName != "Alice" {
		t.Errorf("display name = %q, want Alice", user.DisplayName)
	}

	created, err := alice.CreateEvent(ctx, model.EventInput{
		Title:       "Launch party",
		Description: "Celebrate the release",
		Date:        strPtr("2026-06-01T10:00:00Z"),
		Location:    "Tokyo",
	})
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	if created.UserID != user.ID {
		t.Errorf("owner = %q, want %q", created.UserID, user.ID)
	}

	if err := alice.LoadEvents(ctx); err != nil {
		t.Fatalf("LoadEvents: %v", err)
	}
	events := alice.Store().Snapshot().Events.Events
	if len(events) != 1 || events[0].Title != "Launch party" {
		t.Fatalf("events = %+v", events)
	}
	if events[0].CreatedAt.IsZero() {
		t.Error("createdAt should be set by the server")
	}

	status, err := alice.ToggleFavorite(ctx, created.ID)
	if err != nil || !status.IsFavorite {
		t.Fatalf("ToggleFavorite = %+v, %v", status, err)
	}
	if err := alice.LoadFavorites(ctx); err != nil {
		t.Fatalf("LoadFavorites: %v", err)
	}
	favs := alice.Store().Snapshot().Favorites.Favorites
	if len(favs) != 1 || favs[0].Event.ID != created.ID {
		t.Fatalf("favorites = %+v", favs)
	}

	// 他ユーザーは編集できない
	bob := newRemoteClient(t, srv)
	if _, err := bob.SignUp(ctx, "bob@example.com", "secret2", "secret2", "Bob"); err != nil {
		t.Fatalf("SignUp(bob): %v", err)
	}
	if err := bob.DeleteEvent(ctx, created.ID); model.KindOf(err) != model.KindForbidden {
		t.Errorf("bob DeleteEvent kind = %q, want forbidden", model.KindOf(err))
	}

	if err := alice.DeleteEvent(ctx, created.ID); err != nil {
		t.Fatalf("DeleteEvent: %v", err)
	}
	if _, _, err := alice.OpenEvent(ctx, created.ID); model.KindOf(err) != model.KindNotFound {
		t.Errorf("OpenEvent after delete kind = %q, want not found", model.KindOf(err))
	}

	if err := alice.SignOut(ctx); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if alice.Store().Snapshot().Auth.IsAuthenticated {
		t.Error("expected signed out state")
	}

	if _, err := alice.SignIn(ctx, "alice@example.com", "wrong-pass"); model.KindOf(err) != model.KindRemote {
		t.Errorf("SignIn wrong password kind = %q, want remote", model.KindOf(err))
	}
}

func TestRouter_RemoteClientEmptyEventIDIsNotFound(t *testing.T) {
	srv := newTestServer(t, nil)
	ctx := context.Background()

	alice := newRemoteClient(t, srv)
	if _, err := alice.SignUp(ctx, "alice@example.com", "secret1", "secret1", "Alice"); err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	// 空IDが一覧ルートに解決されないことを確認するため、イベントを1件作っておく
	if _, err := alice.CreateEvent(ctx, model.EventInput{
		Title:       "Launch party",
		Description: "Celebrate the release",
		Date:        strPtr("2026-06-01T10:00:00Z"),
		Location:    "Tokyo",
	}); err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}

	ev, _, err := alice.OpenEvent(ctx, "")
	if model.KindOf(err) != model.KindNotFound {
		t.Errorf("OpenEvent(\"\") kind = %q, want not found (event = %+v)", model.KindOf(err), ev)
	}
	if cur := alice.Store().Snapshot().Events.CurrentEvent; cur != nil {
		t.Errorf("current event = %+v, want nil", cur)
	}

	_, err = alice.UpdateEvent(ctx, "", model.EventInput{
		Title:       "Renamed",
		Description: "Celebrate the release",
		Date:        strPtr("2026-06-01T10:00:00Z"),
		Location:    "Tokyo",
	})
	if model.KindOf(err) != model.KindNotFound {
		t.Errorf("UpdateEvent(\"\") kind = %q, want not found", model.KindOf(err))
	}
}

func TestRouter_RemoteClientSignOutWhileOffline(t *testing.T) {
	srv := newTestServer(t, nil)
	ctx := context.Background()

	alice := newRemoteClient(t, srv)
	if _, err := alice.SignUp(ctx, "alice@example.com", "secret1", "secret1", "Alice"); err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	srv.Close()

	err := alice.SignOut(ctx)
	if model.KindOf(err) != model.KindRemote {
		t.Errorf("SignOut kind = %q, want remote (err = %v)", model.KindOf(err), err)
	}
	if st := alice.Store().Snapshot(); st.Auth.IsAuthenticated || st.Auth.User != nil {
		t.Errorf("auth = %+v, want signed out", st.Auth)
	}
}
