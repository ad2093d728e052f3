// ABOUTME: Authentication for engineers: HS256 JWTs plus optional "user:NAME" development tokens.
// ABOUTME: Resolves the bearer token (header, cookie or query) into a user id on the request context.

package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	apierrors "github.com/2389/sitewalk/internal/errors"
)

type contextKey string

const (
	userContextKey contextKey = "user"
	slotContextKey contextKey = "user_slot"
)

// CookieName is the cookie browsers carry the token in.
const CookieName = "sitewalk_token"

// DefaultUser is the identity of unauthenticated requests when dev tokens are allowed.
const DefaultUser = "default"

var (
	ErrTokenInvalid = errors.New("invalid token")
	ErrNoToken      = errors.New("no token")
)

// Claims is the JWT payload. Subject is the engineer id.
type Claims struct {
	jwt.RegisteredClaims
	Name string `json:"name,omitempty"`
}

type Authenticator struct {
	secret   []byte
	ttl      time.Duration
	allowDev bool
	now      func() time.Time
}

func NewAuthenticator(secret string, ttl time.Duration, allowDevTokens bool) *Authenticator {
	return &Authenticator{
		secret:   []byte(secret),
		ttl:      ttl,
		allowDev: allowDevTokens,
		now:      time.Now,
	}
}

// IssueToken signs a token for userID.
func (a *Authenticator) IssueToken(userID, name string) (string, error) {
	if len(a.secret) == 0 {
		return "", fmt.Errorf("issuing token: no signing secret configured")
	}
	if userID == "" {
		return "", fmt.Errorf("issuing token: empty user id")
	}

	now := a.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    "sitewalk",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
			ID:        uuid.NewString(),
		},
		Name: name,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// ParseToken validates a signed token and returns its claims.
func (a *Authenticator) ParseToken(tokenString string) (*Claims, error) {
	if len(a.secret) == 0 {
		return nil, fmt.Errorf("%w: no signing secret configured", ErrTokenInvalid)
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(a.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}
	return claims, nil
}

// Resolve maps a raw token to a user id.
func (a *Authenticator) Resolve(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		if a.allowDev {
			return DefaultUser, nil
		}
		return "", ErrNoToken
	}

	if strings.HasPrefix(token, "user:") {
		if !a.allowDev {
			return "", fmt.Errorf("%w: development tokens are disabled", ErrTokenInvalid)
		}
		user := strings.TrimPrefix(token, "user:")
		if user == "" {
			return DefaultUser, nil
		}
		return user, nil
	}

	claims, err := a.ParseToken(token)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// Middleware rejects requests without a valid token and stores the user id
// on the context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := a.Resolve(tokenFromRequest(r))
		if err != nil {
			apierrors.WriteError(w, http.StatusUnauthorized, apierrors.ErrUnauthorized, err.Error())
			return
		}
		if slot, ok := r.Context().Value(slotContextKey).(*userSlot); ok {
			slot.set(user)
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if c, err := r.Cookie(CookieName); err == nil {
		return c.Value
	}
	// Browsers cannot set headers on websocket upgrades.
	return r.URL.Query().Get("token")
}

type userSlot struct {
	mu   sync.Mutex
	user string
}

func (s *userSlot) set(user string) {
	s.mu.Lock()
	s.user = user
	s.mu.Unlock()
}

func (s *userSlot) get() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// WithUserSlot lets middleware that runs outside Middleware learn the user
// it resolves. The returned func reports that user once the inner handler
// has run, or the user already on ctx.
func WithUserSlot(ctx context.Context) (context.Context, func() string) {
	slot := &userSlot{}
	ctx = context.WithValue(ctx, slotContextKey, slot)
	return ctx, func() string {
		if user := slot.get(); user != "" {
			return user
		}
		return UserFromContext(ctx)
	}
}

func WithUser(ctx context.Context, user string) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

func UserFromContext(ctx context.Context) string {
	user, ok := ctx.Value(userContextKey).(string)
	if !ok || user == "" {
		return DefaultUser
	}
	return user
}
