package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	firebaseauth "firebase.google.com/go/v4/auth"

	"github.com/RANAPRINCE06/Watch/internal/platform/httpx"
	"github.com/RANAPRINCE06/Watch/internal/platform/requestctx"
)

const (
	defaultRoleClaim     = "role"
	defaultVerifyTimeout = 5 * time.Second
)

var (
	// ErrTokenExpired marks an expired bearer token.
	ErrTokenExpired = errors.New("auth: token expired")
	// ErrTokenInvalid marks a bearer token that failed verification.
	ErrTokenInvalid = errors.New("auth: token invalid")
)

// TokenVerifier verifies bearer tokens. Both the Firebase and the HS256 verifier
// return the Firebase token shape so the middleware handles them uniformly.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error)
}

// Authenticator turns bearer tokens into an Identity on the request context.
type Authenticator struct {
	verifier  TokenVerifier
	roleClaim string
	admins    map[string]struct{}
	timeout   time.Duration
}

// Option customises an Authenticator.
type Option func(*Authenticator)

// WithRoleClaim overrides the claim holding roles.
func WithRoleClaim(claim string) Option {
	return func(a *Authenticator) {
		if claim = strings.TrimSpace(claim); claim != "" {
			a.roleClaim = claim
		}
	}
}

// WithAdminUIDs grants the admin role to the listed user ids regardless of claims.
func WithAdminUIDs(uids ...string) Option {
	return func(a *Authenticator) {
		for _, uid := range uids {
			if uid = strings.TrimSpace(uid); uid != "" {
				a.admins[uid] = struct{}{}
			}
		}
	}
}

// WithVerificationTimeout bounds token verification.
func WithVerificationTimeout(d time.Duration) Option {
	return func(a *Authenticator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// NewAuthenticator builds an Authenticator around verifier.
func NewAuthenticator(verifier TokenVerifier, opts ...Option) *Authenticator {
	a := &Authenticator{
		verifier:  verifier,
		roleClaim: defaultRoleClaim,
		admins:    map[string]struct{}{},
		timeout:   defaultVerifyTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// RequireAuth rejects requests without a valid bearer token. When roles are
// given the identity must hold at least one of them.
func (a *Authenticator) RequireAuth(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := extractBearerToken(r.Header.Get("Authorization"))
			if !ok {
				writeAuthError(r.Context(), w, http.StatusUnauthorized, "unauthenticated", "Not authorized, no token")
				return
			}
			if a == nil || a.verifier == nil {
				writeAuthError(r.Context(), w, http.StatusUnauthorized, "unauthenticated", "Authorization unavailable")
				return
			}

			ctx, cancel := context.WithTimeout(r.Context(), a.timeout)
			token, err := a.verifier.VerifyIDToken(ctx, raw)
			cancel()
			if err != nil {
				if errors.Is(err, ErrTokenExpired) {
					writeAuthError(r.Context(), w, http.StatusUnauthorized, "token_expired", "Token expired")
					return
				}
				writeAuthError(r.Context(), w, http.StatusUnauthorized, "invalid_token", "Not authorized, token failed")
				return
			}

			identity := a.identityFromToken(token)
			if len(roles) > 0 && !hasAnyRole(identity, roles) {
				writeAuthError(r.Context(), w, http.StatusForbidden, "forbidden", "Admin access required")
				return
			}

			ctx = WithIdentity(r.Context(), identity)
			ctx = requestctx.WithActor(ctx, identity.UID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (a *Authenticator) identityFromToken(token *firebaseauth.Token) *Identity {
	identity := &Identity{
		UID:   token.UID,
		Email: stringClaim(token.Claims, "email"),
		Name:  stringClaim(token.Claims, "name"),
		Roles: rolesFromClaim(token.Claims[a.roleClaim]),
	}
	if admin, _ := token.Claims["admin"].(bool); admin && !identity.IsAdmin() {
		identity.Roles = append(identity.Roles, RoleAdmin)
	}
	if _, ok := a.admins[token.UID]; ok && !identity.IsAdmin() {
		identity.Roles = append(identity.Roles, RoleAdmin)
	}
	if !identity.HasRole(RoleUser) {
		identity.Roles = append(identity.Roles, RoleUser)
	}
	return identity
}

func hasAnyRole(identity *Identity, roles []string) bool {
	for _, role := range roles {
		if identity.HasRole(role) {
			return true
		}
	}
	return false
}

func rolesFromClaim(raw any) []string {
	var out []string
	add := func(v string) {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			out = append(out, v)
		}
	}
	switch v := raw.(type) {
	case string:
		add(v)
	case []string:
		for _, s := range v {
			add(s)
		}
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				add(s)
			}
		}
	}
	return out
}

func stringClaim(claims map[string]any, key string) string {
	s, _ := claims[key].(string)
	return strings.TrimSpace(s)
}

func extractBearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func writeAuthError(ctx context.Context, w http.ResponseWriter, status int, code, message string) {
	httpx.WriteError(ctx, w, httpx.NewError(code, message, status))
}
