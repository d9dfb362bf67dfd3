package api

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shaj13/go-guardian/auth"
	"github.com/shaj13/go-guardian/auth/strategies/basic"
	"github.com/shaj13/go-guardian/auth/strategies/bearer"
	"github.com/shaj13/go-guardian/store"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// tokenTTL is how long a bearer token issued by /auth/token stays cached
const tokenTTL = 24 * time.Hour

// Guard authenticates callers of the API. The frontend holds a service account:
// it authenticates with basic auth once, exchanges that for a bearer token and
// uses the token afterwards.
type Guard struct {
	User         string
	PasswordHash string

	authenticator auth.Authenticator
	cache         store.Cache
}

// NewGuard sets up go-guardian with the basic and cached bearer strategies. With
// no service user configured the guard lets every request through.
func NewGuard(user, passwordHash string) *Guard {
	g := &Guard{User: user, PasswordHash: passwordHash}
	if !g.Enabled() {
		zap.S().Warn("SERVICE_USER is not set, API authentication is disabled")
		return g
	}

	g.authenticator = auth.New()
	g.cache = store.NewFIFO(context.Background(), tokenTTL)
	basicStrategy := basic.New(g.ValidateUser, g.cache)
	tokenStrategy := bearer.New(bearer.NoOpAuthenticate, g.cache)

	g.authenticator.EnableStrategy(basic.StrategyKey, basicStrategy)
	g.authenticator.EnableStrategy(bearer.CachedStrategyKey, tokenStrategy)
	return g
}

// Enabled reports whether requests are authenticated
func (g *Guard) Enabled() bool {
	return g != nil && g.User != ""
}

// Middleware rejects requests that carry neither valid basic credentials nor a
// bearer token issued by CreateToken
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !g.Enabled() {
			next.ServeHTTP(w, r)
			return
		}
		user, err := g.authenticator.Authenticate(r)
		if err != nil {
			zap.S().Errorw("unauthorized",
				"url", r.URL,
				"requestId", RequestID(r.Context()))
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error": "unauthorized"}`))
			return
		}
		zap.S().Debugw("user authenticated", "user", user.UserName())
		next.ServeHTTP(w, r)
	})
}

// CreateToken returns a bearer token for a caller that passed basic auth
func (g *Guard) CreateToken(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if !g.Enabled() {
		http.Error(w, "authentication is disabled", http.StatusNotFound)
		return
	}
	name, _, ok := r.BasicAuth()
	if !ok {
		http.Error(w, "basic auth failed", http.StatusUnauthorized)
		return
	}

	token := uuid.New().String()
	authUser := auth.NewDefaultUser(name, name, nil, nil)
	tokenStrategy := g.authenticator.Strategy(bearer.CachedStrategyKey)
	if err := auth.Append(tokenStrategy, token, authUser, r); err != nil {
		http.Error(w, "failed to store token", http.StatusInternalServerError)
		return
	}

	responseBody, err := json.Marshal(map[string]string{"token": token})
	if err != nil {
		http.Error(w, "failed to marshal response", http.StatusInternalServerError)
		return
	}
	_, _ = w.Write(responseBody)
}

// ValidateUser checks basic credentials against the configured service account
func (g *Guard) ValidateUser(_ context.Context, _ *http.Request, userName, password string) (auth.Info, error) {
	usernameHash := sha256.Sum256([]byte(userName))
	expectedUsernameHash := sha256.Sum256([]byte(g.User))
	usernameMatch := subtle.ConstantTimeCompare(usernameHash[:], expectedUsernameHash[:]) == 1

	if err := bcrypt.CompareHashAndPassword([]byte(g.PasswordHash), []byte(password)); err != nil {
		return nil, fmt.Errorf("failed to compare password")
	}
	if !usernameMatch {
		return nil, errors.New("invalid credentials")
	}
	return auth.NewDefaultUser(userName, userName, nil, nil), nil
}

// RevokeToken revokes the bearer token the request was made with
func (g *Guard) RevokeToken(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	reqToken, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !g.Enabled() || !ok || reqToken == "" {
		http.Error(w, "no bearer token", http.StatusBadRequest)
		return
	}

	tokenStrategy := g.authenticator.Strategy(bearer.CachedStrategyKey)
	if err := auth.Revoke(tokenStrategy, reqToken, r); err != nil {
		http.Error(w, "failed to revoke token", http.StatusInternalServerError)
		return
	}
	body, _ := json.Marshal(map[string]string{"revoked token": reqToken})
	_, _ = w.Write(body)
}
