package backend

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hitoshi/eventorg/internal/model"
	"github.com/hitoshi/eventorg/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

func newTestAccounts(t *testing.T) *Accounts {
	t.Helper()
	return NewAccounts(
		repository.NewMemoryAccountRepo(),
		repository.NewMemorySessionRepo(),
		AccountsConfig{
			TokenSecret: []byte("test-secret"),
			TokenTTL:    time.Hour,
			BcryptCost:  bcrypt.MinCost,
		},
		nil,
	)
}

func TestAccounts_RegisterAndSignIn(t *testing.T) {
	a := newTestAccounts(t)
	ctx := context.Background()

	cred, err := a.Register(ctx, "alice@example.com", "secret1")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if cred.User.Email != "alice@example.com" || cred.User.ID == "" {
		t.Errorf("user = %+v", cred.User)
	}
	if cred.Token == "" {
		t.Fatal("expected identity token")
	}

	signedIn, err := a.SignIn(ctx, "ALICE@example.com", "secret1")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if signedIn.User.ID != cred.User.ID {
		t.Errorf("SignIn user = %q, want %q", signedIn.User.ID, cred.User.ID)
	}
}

func TestAccounts_RegisterDuplicateEmail(t *testing.T) {
	a := newTestAccounts(t)
	ctx := context.Background()
	if _, err := a.Register(ctx, "alice@example.com", "secret1"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	_, err := a.Register(ctx, "alice@example.com", "another1")
	assertAPIErrorCode(t, err, model.ErrCodeEmailInUse)
}

func TestAccounts_RegisterRejectsWeakInput(t *testing.T) {
	a := newTestAccounts(t)
	tests := []struct {
		name     string
		email    string
		password string
	}{
		{"short password", "alice@example.com", "12345"},
		{"missing email", "", "secret1"},
		{"email without at", "alice.example.com", "secret1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.Register(context.Background(), tt.email, tt.password)
			assertAPIErrorCode(t, err, model.ErrCodeInvalidRequest)
		})
	}
}

func TestAccounts_SignInWrongCredentials(t *testing.T) {
	a := newTestAccounts(t)
	ctx := context.Background()
	if _, err := a.Register(ctx, "alice@example.com", "secret1"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	_, err := a.SignIn(ctx, "alice@example.com", "wrong-password")
	assertAPIErrorCode(t, err, model.ErrCodeInvalidCredentials)

	_, err = a.SignIn(ctx, "nobody@example.com", "secret1")
	assertAPIErrorCode(t, err, model.ErrCodeInvalidCredentials)
}

func TestAccounts_VerifyAndSignOut(t *testing.T) {
	a := newTestAccounts(t)
	ctx := context.Background()
	cred, err := a.Register(ctx, "alice@example.com", "secret1")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	p, err := a.Verify(ctx, cred.Token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if p.User.ID != cred.User.ID || p.SessionID == "" {
		t.Errorf("principal = %+v", p)
	}

	if err := a.SignOut(ctx, cred.Token); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	_, err = a.Verify(ctx, cred.Token)
	assertAPIErrorCode(t, err, model.ErrCodeUnauthorized)

	// 失効済みトークンでのサインアウトも成功する
	if err := a.SignOut(ctx, cred.Token); err != nil {
		t.Errorf("second SignOut: %v", err)
	}
}

func TestAccounts_VerifyRejectsBadTokens(t *testing.T) {
	a := newTestAccounts(t)
	ctx := context.Background()
	cred, err := a.Register(ctx, "alice@example.com", "secret1")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		SessionID: "sid",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   cred.User.ID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("other-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not-a-token"},
		{"wrong secret", forged},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.Verify(ctx, tt.token)
			assertAPIErrorCode(t, err, model.ErrCodeUnauthorized)
		})
	}
}

func TestAccounts_VerifyRejectsExpiredToken(t *testing.T) {
	a := newTestAccounts(t)
	ctx := context.Background()
	cred, err := a.Register(ctx, "alice@example.com", "secret1")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	a.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = a.Verify(ctx, cred.Token)
	assertAPIErrorCode(t, err, model.ErrCodeUnauthorized)
}

func TestAccounts_UpdateProfileAndLookup(t *testing.T) {
	a := newTestAccounts(t)
	ctx := context.Background()
	cred, err := a.Register(ctx, "alice@example.com", "secret1")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	user, err := a.UpdateProfile(ctx, cred.Token, "Alice")
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if user.DisplayName != "Alice" {
		t.Errorf("DisplayName = %q, want %q", user.DisplayName, "Alice")
	}

	looked, err := a.Lookup(ctx, cred.Token)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if looked.DisplayName != "Alice" {
		t.Errorf("Lookup DisplayName = %q, want %q", looked.DisplayName, "Alice")
	}
}
