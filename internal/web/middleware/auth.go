// Package middleware holds the HTTP middleware chain: Cognito JWT
// authentication, request logging, and Prometheus metrics.
package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"github.com/rpdevelops/data-ingestion-api/internal/config"
	"github.com/rpdevelops/data-ingestion-api/internal/logging"
)

type contextKey string

const principalKey contextKey = "auth_principal"

// Group names assigned in the Cognito user pool.
const (
	// GroupUploader may submit and reprocess files.
	GroupUploader = "uploader"
	// GroupEditor may delete jobs and correct staging rows.
	GroupEditor = "editor"
)

// Principal is the authenticated caller extracted from a verified token.
type Principal struct {
	// UserID is the Cognito sub claim. All data ownership keys off it.
	UserID   string
	Username string
	Groups   []string
}

// HasGroup reports whether the principal belongs to the named pool group.
func (p *Principal) HasGroup(group string) bool {
	return slices.Contains(p.Groups, group)
}

// PrincipalFromContext returns the authenticated principal, or nil when
// the request did not pass through the auth middleware.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey).(*Principal)
	return p
}

// ContextWithPrincipal injects a principal directly. Handler tests use it
// to skip token verification.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// cognitoClaims are the raw token claims this service reads.
type cognitoClaims struct {
	jwt.RegisteredClaims
	CognitoGroups []string `json:"cognito:groups"`
	Username      string   `json:"cognito:username"`
	TokenUse      string   `json:"token_use"`
	ClientID      string   `json:"client_id"`
}

// CognitoAuth verifies Cognito-issued JWTs against the pool's JWKS.
type CognitoAuth struct {
	jwks     keyfunc.Keyfunc
	issuer   string
	clientID string
	leeway   time.Duration
}

// NewCognitoAuth builds the middleware with a background-refreshing JWKS
// cache. Startup succeeds even when the JWKS endpoint is briefly down.
func NewCognitoAuth(ctx context.Context, cfg config.AuthConfig) (*CognitoAuth, error) {
	storage, err := jwkset.NewStorageFromHTTP(cfg.JWKSURL(), jwkset.HTTPClientStorageOptions{
		Client:                    &http.Client{Timeout: 10 * time.Second},
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           cfg.RefreshInterval,
		RefreshErrorHandler: func(ctx context.Context, err error) {
			logging.FromContext(ctx).Error("jwks refresh failed",
				"url", cfg.JWKSURL(), "error", err)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create jwks storage: %w", err)
	}

	k, err := keyfunc.New(keyfunc.Options{Storage: storage})
	if err != nil {
		return nil, fmt.Errorf("create keyfunc: %w", err)
	}

	return &CognitoAuth{
		jwks:     k,
		issuer:   cfg.IssuerURL(),
		clientID: cfg.ClientID,
		leeway:   cfg.Leeway,
	}, nil
}

// NewCognitoAuthWithKeyfunc builds the middleware around a supplied
// keyfunc. Tests use it with a local signing key.
func NewCognitoAuthWithKeyfunc(kf keyfunc.Keyfunc, issuer, clientID string, leeway time.Duration) *CognitoAuth {
	return &CognitoAuth{jwks: kf, issuer: issuer, clientID: clientID, leeway: leeway}
}

// Middleware authenticates the request and stores the Principal in the
// request context. Requests without a valid token get 401.
func (a *CognitoAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				authError(w, http.StatusUnauthorized, "missing Authorization header")
				return
			}

			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
				authError(w, http.StatusUnauthorized, "expected Bearer token")
				return
			}

			claims := &cognitoClaims{}
			opts := []jwt.ParserOption{
				jwt.WithValidMethods([]string{"RS256"}),
				jwt.WithExpirationRequired(),
				jwt.WithLeeway(a.leeway),
				jwt.WithIssuer(a.issuer),
			}

			token, err := jwt.ParseWithClaims(parts[1], claims, a.jwks.KeyfuncCtx(r.Context()), opts...)
			if err != nil || !token.Valid {
				logging.FromContext(r.Context()).Debug("token rejected",
					"remote_addr", r.RemoteAddr, "error", err)
				authError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			// Cognito puts the app client in aud for id tokens and in
			// client_id for access tokens.
			if !a.clientMatches(claims) {
				authError(w, http.StatusUnauthorized, "token issued for a different client")
				return
			}

			sub, err := claims.GetSubject()
			if err != nil || sub == "" {
				authError(w, http.StatusUnauthorized, "token missing subject")
				return
			}

			principal := &Principal{
				UserID:   sub,
				Username: claims.Username,
				Groups:   claims.CognitoGroups,
			}
			next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), principal)))
		})
	}
}

func (a *CognitoAuth) clientMatches(claims *cognitoClaims) bool {
	if a.clientID == "" {
		return true
	}
	if claims.TokenUse == "access" {
		return claims.ClientID == a.clientID
	}
	aud, err := claims.GetAudience()
	if err != nil {
		return false
	}
	return slices.Contains(aud, a.clientID)
}

// RequireGroup gates a route on pool group membership. Runs after the
// auth middleware; an absent principal is a server wiring bug and reads
// as unauthorized.
func RequireGroup(group string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := PrincipalFromContext(r.Context())
			if p == nil {
				authError(w, http.StatusUnauthorized, "not authenticated")
				return
			}
			if !p.HasGroup(group) {
				authError(w, http.StatusForbidden,
					fmt.Sprintf("requires membership in the %q group", group))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// authError writes the same JSON error shape the handlers use. Kept local
// so the middleware package does not import the handlers.
func authError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
