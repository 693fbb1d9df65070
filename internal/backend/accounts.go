package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/hitoshi/eventorg/internal/identity"
	"github.com/hitoshi/eventorg/internal/metrics"
	"github.com/hitoshi/eventorg/internal/model"
	"github.com/hitoshi/eventorg/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

// minPasswordLength はバックエンドが受け付けるパスワードの最小文字数。
const minPasswordLength = 6

// AccountsConfig はIDサービスの設定。
type AccountsConfig struct {
	TokenSecret []byte        // IDトークンのHS256署名鍵
	TokenTTL    time.Duration // セッションとIDトークンの有効期間
	BcryptCost  int           // 0の場合はbcrypt.DefaultCost
}

// Principal は検証済みIDトークンの持ち主。
type Principal struct {
	User      model.User
	SessionID string
}

// tokenClaims はIDトークンのクレーム。sidはセッションIDで、サインアウトで失効する。
type tokenClaims struct {
	SessionID string `json:"sid"`
	Email     string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Accounts はアカウント・セッションリポジトリ上にIDサービスを実装する。
type Accounts struct {
	accounts repository.AccountRepository
	sessions repository.SessionRepository
	config   AccountsConfig
	metrics  metrics.MetricsCollector
	now      func() time.Time
}

// NewAccounts はAccountsを生成する。mcがnilの場合はメトリクスを記録しない。
func NewAccounts(
	accounts repository.AccountRepository,
	sessions repository.SessionRepository,
	config AccountsConfig,
	mc metrics.MetricsCollector,
) *Accounts {
	if config.BcryptCost == 0 {
		config.BcryptCost = bcrypt.DefaultCost
	}
	if config.TokenTTL <= 0 {
		config.TokenTTL = time.Hour
	}
	return &Accounts{
		accounts: accounts,
		sessions: sessions,
		config:   config,
		metrics:  mc,
		now:      time.Now,
	}
}

// Register はアカウントを作成し、セッションを発行する。
func (a *Accounts) Register(ctx context.Context, email, password string) (cred *identity.Credential, err error) {
	defer func() { a.record("register", err) }()

	email = strings.TrimSpace(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, model.NewInvalidRequestError("a valid email address is required")
	}
	if len([]rune(password)) < minPasswordLength {
		return nil, model.NewInvalidRequestError(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	existing, err := a.accounts.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find account by email: %w", err)
	}
	if existing != nil {
		return nil, model.NewEmailInUseError()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.config.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := a.now()
	account := &model.Account{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, model.NewEmailInUseError()
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	slog.Info("account registered",
		slog.String("user_id", account.ID),
	)
	return a.issue(ctx, account)
}

// SignIn はメールアドレスとパスワードを検証し、セッションを発行する。
func (a *Accounts) SignIn(ctx context.Context, email, password string) (cred *identity.Credential, err error) {
	defer func() { a.record("sign_in", err) }()

	account, err := a.accounts.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, fmt.Errorf("failed to find account by email: %w", err)
	}
	if account == nil {
		return nil, model.NewInvalidCredentialsError()
	}
	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)) != nil {
		return nil, model.NewInvalidCredentialsError()
	}
	return a.issue(ctx, account)
}

// UpdateProfile はトークンの持ち主の表示名を更新する。
func (a *Accounts) UpdateProfile(ctx context.Context, token, displayName string) (*model.User, error) {
	p, err := a.Verify(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := a.accounts.UpdateDisplayName(ctx, p.User.ID, displayName, a.now()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewAccountNotFoundError()
		}
		return nil, fmt.Errorf("failed to update display name: %w", err)
	}
	user := p.User
	user.DisplayName = displayName
	return &user, nil
}

// SignOut はトークンのセッションを破棄する。既に無効なトークンでも成功とする。
func (a *Accounts) SignOut(ctx context.Context, token string) error {
	claims, err := a.parse(token)
	if err != nil {
		return nil
	}
	if err := a.sessions.DeleteByID(ctx, claims.SessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	slog.Info("signed out",
		slog.String("user_id", claims.Subject),
	)
	return nil
}

// Lookup はトークンの持ち主を返す。
func (a *Accounts) Lookup(ctx context.Context, token string) (*model.User, error) {
	p, err := a.Verify(ctx, token)
	if err != nil {
		return nil, err
	}
	return &p.User, nil
}

// Verify はIDトークンの署名・期限・セッションの有効性を検証する。
// 無効な場合はUNAUTHORIZEDを返す。
func (a *Accounts) Verify(ctx context.Context, token string) (p *Principal, err error) {
	defer func() {
		if err != nil {
			a.record("verify", err)
		}
	}()

	claims, err := a.parse(token)
	if err != nil {
		slog.Debug("identity token rejected",
			slog.String("error", err.Error()),
		)
		return nil, model.NewUnauthorizedError()
	}

	session, err := a.sessions.FindByID(ctx, claims.SessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil || session.UserID != claims.Subject {
		return nil, model.NewUnauthorizedError()
	}

	account, err := a.accounts.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	if account == nil {
		return nil, model.NewUnauthorizedError()
	}

	return &Principal{User: account.User(), SessionID: session.ID}, nil
}

// issue はセッションを作成し、そのIDを埋め込んだIDトークンを返す。
func (a *Accounts) issue(ctx context.Context, account *model.Account) (*identity.Credential, error) {
	now := a.now()
	session := &model.Session{
		ID:        uuid.NewString(),
		UserID:    account.ID,
		ExpiresAt: now.Add(a.config.TokenTTL),
		CreatedAt: now,
	}
	if err := a.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	claims := tokenClaims{
		SessionID: session.ID,
		Email:     account.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.config.TokenSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign identity token: %w", err)
	}

	return &identity.Credential{User: account.User(), Token: token}, nil
}

func (a *Accounts) parse(token string) (*tokenClaims, error) {
	claims := &tokenClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return a.config.TokenSecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return nil, err
	}
	if claims.SessionID == "" || claims.Subject == "" {
		return nil, errors.New("identity token is missing sid or sub")
	}
	return claims, nil
}

func (a *Accounts) record(kind string, err error) {
	if a.metrics == nil {
		return
	}
	a.metrics.RecordAuthAttempt(kind, metrics.Result(err))
}

// compile-time interface check
var _ identity.Authenticator = (*Accounts)(nil)
