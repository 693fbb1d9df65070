package identity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hitoshi/eventorg/internal/model"
)

// mockAuthenticator はAuthenticatorのモック。
type mockAuthenticator struct {
	registerFn      func(ctx context.Context, email, password string) (*Credential, error)
	signInFn        func(ctx context.Context, email, password string) (*Credential, error)
	updateProfileFn func(ctx context.Context, token, displayName string) (*model.User, error)
	signOutFn       func(ctx context.Context, token string) error
	lookupFn        func(ctx context.Context, token string) (*model.User, error)
}

func (m *mockAuthenticator) Register(ctx context.Context, email, password string) (*Credential, error) {
	return m.registerFn(ctx, email, password)
}

func (m *mockAuthenticator) SignIn(ctx context.Context, email, password string) (*Credential, error) {
	return m.signInFn(ctx, email, password)
}

func (m *mockAuthenticator) UpdateProfile(ctx context.Context, token, displayName string) (*model.User, error) {
	return m.updateProfileFn(ctx, token, displayName)
}

func (m *mockAuthenticator) SignOut(ctx context.Context, token string) error {
	if m.signOutFn == nil {
		return nil
	}
	return m.signOutFn(ctx, token)
}

func (m *mockAuthenticator) Lookup(ctx context.Context, token string) (*model.User, error) {
	return m.lookupFn(ctx, token)
}

// signedToken はexpクレーム付きのテスト用トークンを生成する。
func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	s, err := token.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return s
}

// recorder はリスナーへの通知を記録する。
type recorder struct {
	mu     sync.Mutex
	events []*model.User
	ch     chan *model.User
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan *model.User, 16)}
}

func (r *recorder) listen(u *model.User) {
	r.mu.Lock()
	r.events = append(r.events, u)
	r.mu.Unlock()
	r.ch <- u
}

func (r *recorder) next(t *testing.T) *model.User {
	t.Helper()
	select {
	case u := <-r.ch:
		return u
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for identity change")
		return nil
	}
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

var alice = model.User{ID: "user-1", Email: "alice@example.com", DisplayName: "Alice"}

func TestClient_SignIn_NotifiesListeners(t *testing.T) {
	auth := &mockAuthenticator{
		signInFn: func(ctx context.Context, email, password string) (*Credential, error) {
			return &Credential{User: alice, Token: signedToken(t, time.Now().Add(time.Hour))}, nil
		},
	}
	c := NewClient(auth)

	rec := newRecorder()
	unsubscribe := c.OnIdentityChanged(rec.listen)
	defer unsubscribe()

	if u := rec.next(t); u != nil {
		t.Fatalf("initial notification = %+v, want nil", u)
	}

	user, err := c.SignIn(context.Background(), "alice@example.com", "secret1")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if user.ID != alice.ID {
		t.Errorf("user.ID = %q, want %q", user.ID, alice.ID)
	}

	got := rec.next(t)
	if got == nil || got.ID != alice.ID {
		t.Errorf("notification = %+v, want %+v", got, alice)
	}
	if cur := c.CurrentIdentity(); cur == nil || cur.Email != alice.Email {
		t.Errorf("CurrentIdentity = %+v, want %+v", cur, alice)
	}
	if c.Token() == "" {
		t.Error("expected token to be kept after sign-in")
	}
}

func TestClient_SignIn_ErrorKeepsSignedOut(t *testing.T) {
	wantErr := model.NewInvalidCredentialsError()
	auth := &mockAuthenticator{
		signInFn: func(ctx context.Context, email, password string) (*Credential, error) {
			return nil, wantErr
		},
	}
	c := NewClient(auth)

	_, err := c.SignIn(context.Background(), "alice@example.com", "wrong")
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
	if c.CurrentIdentity() != nil {
		t.Error("expected no identity after failed sign-in")
	}
}

func TestClient_SignOut_NotifiesNil(t *testing.T) {
	var signedOutToken string
	auth := &mockAuthenticator{
		signInFn: func(ctx context.Context, email, password string) (*Credential, error) {
			return &Credential{User: alice, Token: "opaque-token"}, nil
		},
		signOutFn: func(ctx context.Context, token string) error {
			signedOutToken = token
			return nil
		},
	}
	c := NewClient(auth)
	if _, err := c.SignIn(context.Background(), "a@b.co", "secret1"); err != nil {
		t.Fatalf("SignIn: %v", err)
	}

	rec := newRecorder()
	defer c.OnIdentityChanged(rec.listen)()
	if u := rec.next(t); u == nil {
		t.Fatal("initial notification should carry the signed-in user")
	}

	if err := c.SignOut(context.Background()); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if u := rec.next(t); u != nil {
		t.Errorf("notification after sign-out = %+v, want nil", u)
	}
	if signedOutToken != "opaque-token" {
		t.Errorf("backend sign-out token = %q, want %q", signedOutToken, "opaque-token")
	}
	if c.CurrentIdentity() != nil {
		t.Error("expected no identity after sign-out")
	}
}

func TestClient_SignOut_BackendErrorStillClearsIdentity(t *testing.T) {
	auth := &mockAuthenticator{
		signInFn: func(ctx context.Context, email, password string) (*Credential, error) {
			return &Credential{User: alice, Token: "opaque-token"}, nil
		},
		signOutFn: func(ctx context.Context, token string) error {
			return errors.New("network down")
		},
	}
	c := NewClient(auth)
	if _, err := c.SignIn(context.Background(), "a@b.co", "secret1"); err != nil {
		t.Fatalf("SignIn: %v", err)
	}

	rec := newRecorder()
	defer c.OnIdentityChanged(rec.listen)()
	if u := rec.next(t); u == nil {
		t.Fatal("initial notification should carry the signed-in user")
	}

	if err := c.SignOut(context.Background()); err == nil {
		t.Fatal("expected error from SignOut")
	}
	if u := rec.next(t); u != nil {
		t.Errorf("notification after failed sign-out = %+v, want nil", u)
	}
	if c.CurrentIdentity() != nil {
		t.Error("identity should be cleared even when the backend sign-out fails")
	}
	if c.Token() != "" {
		t.Errorf("Token() = %q, want empty", c.Token())
	}
}

func TestClient_Unsubscribe_StopsNotifications(t *testing.T) {
	auth := &mockAuthenticator{
		signInFn: func(ctx context.Context, email, password string) (*Credential, error) {
			return &Credential{User: alice, Token: "opaque-token"}, nil
		},
	}
	c := NewClient(auth)

	rec := newRecorder()
	unsubscribe := c.OnIdentityChanged(rec.listen)
	rec.next(t)
	unsubscribe()
	unsubscribe()

	if _, err := c.SignIn(context.Background(), "a@b.co", "secret1"); err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if n := rec.count(); n != 1 {
		t.Errorf("notifications = %d, want only the initial one", n)
	}
}

func TestClient_TokenExpiry_SignsOut(t *testing.T) {
	auth := &mockAuthenticator{
		signInFn: func(ctx context.Context, email, password string) (*Credential, error) {
			return &Credential{User: alice, Token: signedToken(t, time.Now().Add(-time.Second))}, nil
		},
	}
	c := NewClient(auth)

	rec := newRecorder()
	defer c.OnIdentityChanged(rec.listen)()
	rec.next(t)

	if _, err := c.SignIn(context.Background(), "a@b.co", "secret1"); err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if u := rec.next(t); u == nil || u.ID != alice.ID {
		t.Fatalf("sign-in notification = %+v, want %+v", u, alice)
	}
	if u := rec.next(t); u != nil {
		t.Errorf("expiry notification = %+v, want nil", u)
	}
	if c.CurrentIdentity() != nil {
		t.Error("expected identity to be cleared after token expiry")
	}
}

func TestClient_ExpiryTimerOfPreviousSessionIsIgnored(t *testing.T) {
	tokens := []string{
		signedToken(t, time.Now().Add(150*time.Millisecond)),
		signedToken(t, time.Now().Add(time.Hour)),
	}
	calls := 0
	auth := &mockAuthenticator{
		signInFn: func(ctx context.Context, email, password string) (*Credential, error) {
			tok := tokens[calls]
			calls++
			return &Credential{User: alice, Token: tok}, nil
		},
	}
	c := NewClient(auth)
	for i := 0; i < 2; i++ {
		if _, err := c.SignIn(context.Background(), "a@b.co", "secret1"); err != nil {
			t.Fatalf("SignIn #%d: %v", i+1, err)
		}
	}

	time.Sleep(1100 * time.Millisecond)
	if c.CurrentIdentity() == nil {
		t.Error("second session should survive the first token's expiry")
	}
}

func TestClient_SetDisplayName(t *testing.T) {
	auth := &mockAuthenticator{
		registerFn: func(ctx context.Context, email, password string) (*Credential, error) {
			return &Credential{User: model.User{ID: "user-1", Email: email}, Token: "opaque-token"}, nil
		},
		updateProfileFn: func(ctx context.Context, token, displayName string) (*model.User, error) {
			if token != "opaque-token" {
				t.Errorf("token = %q, want %q", token, "opaque-token")
			}
			return &model.User{ID: "user-1", Email: "a@b.co", DisplayName: displayName}, nil
		},
	}
	c := NewClient(auth)

	user, err := c.CreateAccount(context.Background(), "a@b.co", "secret1")
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	rec := newRecorder()
	defer c.OnIdentityChanged(rec.listen)()
	rec.next(t)

	updated, err := c.SetDisplayName(context.Background(), user, "Alice")
	if err != nil {
		t.Fatalf("SetDisplayName: %v", err)
	}
	if updated.DisplayName != "Alice" {
		t.Errorf("DisplayName = %q, want %q", updated.DisplayName, "Alice")
	}
	if u := rec.next(t); u == nil || u.DisplayName != "Alice" {
		t.Errorf("notification = %+v, want display name Alice", u)
	}
	if cur := c.CurrentIdentity(); cur.DisplayName != "Alice" {
		t.Errorf("CurrentIdentity().DisplayName = %q, want %q", cur.DisplayName, "Alice")
	}
}

func TestClient_SetDisplayName_RequiresIdentity(t *testing.T) {
	c := NewClient(&mockAuthenticator{})
	_, err := c.SetDisplayName(context.Background(), &alice, "Alice")
	if !errors.Is(err, ErrNoIdentity) {
		t.Errorf("err = %v, want ErrNoIdentity", err)
	}
}

func TestClient_Restore(t *testing.T) {
	auth := &mockAuthenticator{
		lookupFn: func(ctx context.Context, token string) (*model.User, error) {
			if token != "saved-token" {
				return nil, model.NewUnauthorizedError()
			}
			return &alice, nil
		},
	}
	c := NewClient(auth)

	if _, err := c.Restore(context.Background(), "stale"); err == nil {
		t.Fatal("expected error for unknown token")
	}
	user, err := c.Restore(context.Background(), "saved-token")
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if user.ID != alice.ID || c.Token() != "saved-token" {
		t.Errorf("Restore = %+v token=%q", user, c.Token())
	}
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	tests := []struct {
		name   string
		token  string
		wantOK bool
	}{
		{"signed token", signedToken(t, exp), true},
		{"empty", "", false},
		{"not a jwt", "opaque-token", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tokenExpiry(tt.token)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && !got.Equal(exp) {
				t.Errorf("exp = %v, want %v", got, exp)
			}
		})
	}
}
