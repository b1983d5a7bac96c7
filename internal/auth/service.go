// Package auth はアカウントの登録・有効化・ログイン・ログアウトのライフサイクルと、
// リクエストの認証情報からのユーザー解決を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/inkpost/internal/activation"
	"github.com/hitoshi/inkpost/internal/credential"
	"github.com/hitoshi/inkpost/internal/mailer"
	"github.com/hitoshi/inkpost/internal/metrics"
	"github.com/hitoshi/inkpost/internal/model"
	"github.com/hitoshi/inkpost/internal/repository"
)

// CredentialStore はユーザー登録とパスワード照合のインターフェース。
type CredentialStore interface {
	Register(ctx context.Context, in credential.RegisterInput) (*model.User, error)
	Authenticate(ctx context.Context, username, password string) (*model.User, error)
}

// ActivationStore は確認トークンの発行と消費のインターフェース。
type ActivationStore interface {
	Issue(ctx context.Context, user *model.User) (*model.ActivationToken, error)
	ValidateAndConsume(ctx context.Context, userID, token string) error
	TTL() time.Duration
}

// TokenIssuer は認証トークンの発行・失効・解決のインターフェース。
type TokenIssuer interface {
	IssueOrGet(ctx context.Context, userID string) (*model.AuthToken, error)
	Revoke(ctx context.Context, userID string) error
	Resolve(ctx context.Context, key string) (*model.AuthToken, error)
}

// UserFinder はユーザー検索のインターフェース。
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// LoginResult はログイン成功時に発行された資格情報。
type LoginResult struct {
	User    *model.User
	Session *model.Session
	Token   *model.AuthToken
}

// AuthMethod はリクエストの認証方式。
type AuthMethod string

const (
	AuthMethodToken   AuthMethod = "token"
	AuthMethodSession AuthMethod = "session"
)

// Credentials はリクエストから取り出した認証情報。
type Credentials struct {
	TokenKey  string // Authorizationヘッダーのトークン
	SessionID string // session_id Cookie
}

// Principal は認証済みのリクエスト主体。
type Principal struct {
	User   *model.User
	Method AuthMethod
}

// Service は認証ライフサイクルのビジネスロジックを提供する。
type Service struct {
	credentials CredentialStore
	activations ActivationStore
	tokens      TokenIssuer
	notifier    mailer.Notifier
	users       UserFinder
	sessionRepo repository.SessionRepository
	metrics     metrics.MetricsCollector
	config      ServiceConfig
	logger      *slog.Logger
	now         func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	credentials CredentialStore,
	activations ActivationStore,
	tokens TokenIssuer,
	notifier mailer.Notifier,
	users UserFinder,
	sessionRepo repository.SessionRepository,
	collector metrics.MetricsCollector,
	config ServiceConfig,
	logger *slog.Logger,
) *Service {
	if collector == nil {
		collector = metrics.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		credentials: credentials,
		activations: activations,
		tokens:      tokens,
		notifier:    notifier,
		users:       users,
		sessionRepo: sessionRepo,
		metrics:     collector,
		config:      config,
		logger:      logger,
		now:         time.Now,
	}
}

// Register はユーザーを作成し、確認トークンを発行して確認メールを送信する。
// メール送信の失敗はログとメトリクスに記録するのみで、登録自体は成功として扱う。
func (s *Service) Register(ctx context.Context, in credential.RegisterInput, baseURL string) (*model.User, error) {
	// 1. ユーザー作成
	user, err := s.credentials.Register(ctx, in)
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			s.metrics.RecordRegistration(metrics.ResultInvalid)
			return nil, apiErr
		}
		return nil, fmt.Errorf("failed to register user: %w", err)
	}

	// 2. 確認トークン発行
	token, err := s.activations.Issue(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("failed to issue activation token: %w", err)
	}
	s.metrics.RecordRegistration(metrics.ResultSuccess)

	// 3. 確認メール送信
	s.sendActivationEmail(ctx, baseURL, user, token)

	return user, nil
}

func (s *Service) sendActivationEmail(ctx context.Context, baseURL string, user *model.User, token *model.ActivationToken) {
	data, err := mailer.NewActivationEmailData(baseURL, user, token, s.activations.TTL())
	if err == nil {
		var body string
		body, err = mailer.RenderActivationEmail(data)
		if err == nil {
			err = s.notifier.Send(ctx, user, mailer.ActivationSubject, body)
		}
	}

	if err != nil {
		s.metrics.RecordEmail(metrics.ResultFailed)
		s.logger.Error("failed to send activation email",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	s.metrics.RecordEmail(metrics.ResultSent)
}

// Activate は確認リンクを検証し、ユーザーを確認済みにする。
// 失敗理由（形式不正、ユーザー不在、トークン不在、期限切れ、確認済み）は区別せず
// INVALID_ACTIVATION_LINKを返す。
func (s *Service) Activate(ctx context.Context, encodedUserID, token string) error {
	userID, err := activation.DecodeUserID(encodedUserID)
	if err != nil {
		s.metrics.RecordActivation(metrics.ResultInvalid)
		return model.NewInvalidActivationLinkError()
	}

	if err := s.activations.ValidateAndConsume(ctx, userID, token); err != nil {
		if errors.Is(err, activation.ErrTokenNotFound) || errors.Is(err, activation.ErrTokenExpired) {
			s.metrics.RecordActivation(metrics.ResultInvalid)
			s.logger.Info("activation rejected",
				slog.String("user_id", userID),
				slog.String("reason", err.Error()),
			)
			return model.NewInvalidActivationLinkError()
		}
		return fmt.Errorf("failed to activate user: %w", err)
	}

	s.metrics.RecordActivation(metrics.ResultSuccess)
	s.logger.Info("user activated", slog.String("user_id", userID))
	return nil
}

// Login はユーザー名とパスワードで認証し、セッションとトークンを発行する。
// 判定順序: ログイン済み → 資格情報不一致 → メール未確認。
func (s *Service) Login(ctx context.Context, currentUserID, username, password string) (*LoginResult, error) {
	// 1. ログイン済みの確認
	if currentUserID != "" {
		s.metrics.RecordLogin(metrics.ResultAlreadyAuthenticated)
		return nil, model.NewAlreadyAuthenticatedError()
	}

	// 2. 資格情報の照合
	user, err := s.credentials.Authenticate(ctx, username, password)
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}
	if user == nil {
		s.metrics.RecordLogin(metrics.ResultInvalidCredentials)
		return nil, model.NewInvalidCredentialsError()
	}

	// 3. メール確認済みか
	if !user.IsEmailVerified {
		s.metrics.RecordLogin(metrics.ResultNotVerified)
		return nil, model.NewEmailNotVerifiedError()
	}

	// 4. トークンとセッションの発行
	// トークンはユーザーごとに1件で再取得されるため先に発行し、失敗時にセッション行を残さない
	token, err := s.tokens.IssueOrGet(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.metrics.RecordLogin(metrics.ResultSuccess)
	s.logger.Info("user logged in", slog.String("user_id", user.ID))

	return &LoginResult{User: user, Session: session, Token: token}, nil
}

// Logout はセッションを破棄し、認証済みであればトークンを失効させる。
// 認証情報がなくてもエラーにしない。
func (s *Service) Logout(ctx context.Context, currentUserID, sessionID string) error {
	if sessionID != "" {
		if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
			return fmt.Errorf("failed to delete session: %w", err)
		}
	}

	if currentUserID != "" {
		if err := s.tokens.Revoke(ctx, currentUserID); err != nil {
			return fmt.Errorf("failed to revoke token: %w", err)
		}
		s.logger.Info("user logged out", slog.String("user_id", currentUserID))
	}

	return nil
}

// CurrentUser は認証情報からユーザーを解決する。
// Authorizationヘッダーのトークンを優先し、次にセッションCookieを参照する。
// いずれでも解決できない場合はnilを返す。
func (s *Service) CurrentUser(ctx context.Context, creds Credentials) (*Principal, error) {
	if creds.TokenKey != "" {
		token, err := s.tokens.Resolve(ctx, creds.TokenKey)
		if err != nil {
			return nil, err
		}
		if token != nil {
			return s.principal(ctx, token.UserID, AuthMethodToken)
		}
	}

	if creds.SessionID != "" {
		session, err := s.sessionRepo.FindByID(ctx, creds.SessionID)
		if err != nil {
			return nil, fmt.Errorf("failed to find session: %w", err)
		}
		if session != nil {
			return s.principal(ctx, session.UserID, AuthMethodSession)
		}
	}

	return nil, nil
}

func (s *Service) principal(ctx context.Context, userID string, method AuthMethod) (*Principal, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, nil
	}
	return &Principal{User: user, Method: method}, nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := s.now()
	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
