package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shaj13/go-guardian/auth"
	"github.com/shaj13/go-guardian/auth/strategies/bearer"
	"github.com/shaj13/go-guardian/store"
	"go.uber.org/zap"

	"github.com/minhng-dev/social-moderation-api/models"
)

// TokenTTL is how long issued bearer tokens stay valid
const TokenTTL = 24 * time.Hour

type contextKey string

const principalKey contextKey = "principal"

// Principal is the authenticated caller attached to the request context
type Principal struct {
	UserID string
	Email  string
	Role   string
}

// IsModerator reports whether the caller may hit moderation routes
func (p Principal) IsModerator() bool {
	return p.Role == models.RoleModerator || p.Role == models.RoleAdmin
}

// Auth wires token issuance and verification. Secret signs HS256 bearer
// tokens.
type Auth struct {
	Secret string
}

var authenticator auth.Authenticator
var cache store.Cache

// SetupGoGuardian sets up the go-guardian middleware with a bearer strategy
// that verifies our signed tokens
func (a Auth) SetupGoGuardian() {
	authenticator = auth.New()
	cache = store.NewFIFO(context.Background(), TokenTTL)
	tokenStrategy := bearer.New(a.verifyToken, cache)
	authenticator.EnableStrategy(bearer.CachedStrategyKey, tokenStrategy)
}

// IssueToken mints a signed bearer token for the user
func (a Auth) IssueToken(user *models.User) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   user.ID.Hex(),
		"email": user.Email,
		"role":  user.Role,
		"jti":   uuid.New().String(),
		"iat":   now.Unix(),
		"exp":   now.Add(TokenTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(a.Secret))
}

func (a Auth) verifyToken(ctx context.Context, r *http.Request, tokenString string) (auth.Info, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(a.Secret), nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid token, %v", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}
	sub, _ := claims["sub"].(string)
	email, _ := claims["email"].(string)
	role, _ := claims["role"].(string)
	if sub == "" || role == "" {
		return nil, fmt.Errorf("token missing identity claims")
	}

	extensions := map[string][]string{"role": {role}}
	return auth.NewDefaultUser(email, sub, nil, extensions), nil
}

// Middleware authenticates the bearer token and attaches the caller to the
// request context
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		user, err := authenticator.Authenticate(r)
		if err != nil {
			zap.S().Errorw("unauthorized",
				"url", r.URL)
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error": "unauthorized"}`))
			return
		}

		role := ""
		if ext := user.Extensions(); ext != nil && len(ext["role"]) > 0 {
			role = ext["role"][0]
		}
		p := Principal{UserID: user.ID(), Email: user.UserName(), Role: role}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}

// RequireModerator allows only moderator and admin callers through. Must be
// wrapped by Middleware.
func RequireModerator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFrom(r.Context())
		if !ok || !p.IsModerator() {
			zap.S().Warnw("forbidden", "url", r.URL, "role", p.Role)
			w.WriteHeader(http.StatusForbidden)
			body, _ := json.Marshal(models.ErrorResponse{Error: "moderator access required", Code: "FORBIDDEN"})
			w.Write(body)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WithPrincipal attaches the caller to ctx
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFrom extracts the caller from ctx
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}

// RevokeToken revokes a token
func RevokeToken(w http.ResponseWriter, r *http.Request) {
	reqToken := r.Header.Get("Authorization")
	splitToken := strings.Split(reqToken, "Bearer ")
	if len(splitToken) < 2 {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": "missing bearer token"}`))
		return
	}
	reqToken = splitToken[1]

	tokenStrategy := authenticator.Strategy(bearer.CachedStrategyKey)
	auth.Revoke(tokenStrategy, reqToken, r)
	body := fmt.Sprintf(`{"revoked token": "%s"}`, reqToken)
	w.Write([]byte(body))
}
