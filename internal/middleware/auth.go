package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/shinyyama/herald-backend/internal/config"
	"github.com/shinyyama/herald-backend/internal/reqctx"
	"google.golang.org/api/option"
)

var ErrInvalidToken = errors.New("invalid token")

// TokenVerifier resolves a bearer token to a user id and ends sessions.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (string, error)
	Revoke(ctx context.Context, uid string) error
}

type FirebaseVerifier struct {
	client *auth.Client
}

func NewFirebaseVerifier(ctx context.Context, projectID, credentialsFile string) (*FirebaseVerifier, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, err
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, err
	}
	return &FirebaseVerifier{client: client}, nil
}

// Verify also rejects tokens issued before the user's last sign-out.
func (v *FirebaseVerifier) Verify(ctx context.Context, token string) (string, error) {
	t, err := v.client.VerifyIDTokenAndCheckRevoked(ctx, token)
	if err != nil {
		return "", err
	}
	return t.UID, nil
}

func (v *FirebaseVerifier) Revoke(ctx context.Context, uid string) error {
	return v.client.RevokeRefreshTokens(ctx, uid)
}

// JWTVerifier accepts HS256 tokens whose subject is the user id. Used for
// local development without a firebase project.
type JWTVerifier struct {
	secret []byte
	now    func() time.Time

	mu      sync.Mutex
	revoked map[string]time.Time
}

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret), now: time.Now, revoked: map[string]time.Time{}}
}

func (v *JWTVerifier) Issue(uid string, ttl time.Duration) (string, error) {
	now := v.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   uid,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})
	return token.SignedString(v.secret)
}

func (v *JWTVerifier) Verify(_ context.Context, tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(v.now))
	if err != nil {
		return "", err
	}
	if !token.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	v.mu.Lock()
	at, ok := v.revoked[claims.Subject]
	v.mu.Unlock()
	// iat has whole-second precision, so tokens are revoked per second, as
	// firebase does with tokensValidAfterTime.
	if ok && claims.IssuedAt != nil && claims.IssuedAt.Time.Before(at) {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

func (v *JWTVerifier) Revoke(_ context.Context, uid string) error {
	v.mu.Lock()
	v.revoked[uid] = v.now().Truncate(time.Second)
	v.mu.Unlock()
	return nil
}

// NewVerifier picks firebase when a project is configured and HS256 otherwise.
func NewVerifier(ctx context.Context, cfg *config.Config) (TokenVerifier, error) {
	if cfg.FirebaseProjectID != "" {
		return NewFirebaseVerifier(ctx, cfg.FirebaseProjectID, cfg.FirebaseCredentialsFile)
	}
	return NewJWTVerifier(cfg.JWTSecret), nil
}

type AuthMiddleware struct {
	verifier TokenVerifier
}

func NewAuthMiddleware(verifier TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier}
}

// RequireAuth reads a bearer token, or the access_token query parameter for
// websocket upgrades, and stores the uid on the echo and request contexts.
func (m *AuthMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		tokenStr := ""
		authz := c.Request().Header.Get("Authorization")
		if strings.HasPrefix(authz, "Bearer ") {
			tokenStr = strings.TrimPrefix(authz, "Bearer ")
		} else if q := c.QueryParam("access_token"); q != "" {
			tokenStr = q
		}
		if tokenStr == "" {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		}
		uid, err := m.verifier.Verify(c.Request().Context(), tokenStr)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid_token"})
		}
		c.Set("uid", uid)
		c.SetRequest(c.Request().WithContext(reqctx.WithUID(c.Request().Context(), uid)))
		return next(c)
	}
}

func (m *AuthMiddleware) Verifier() TokenVerifier {
	return m.verifier
}
