package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"learning-platform-core/internal/domain/model"
	"learning-platform-core/internal/domain/ports/repository"
	"learning-platform-core/internal/infra/logging"
)

type ctxKeyUser struct{}

// UserFrom returns the authenticated user, or nil for anonymous requests.
func UserFrom(ctx context.Context) *model.User {
	u, _ := ctx.Value(ctxKeyUser{}).(*model.User)
	return u
}

func withUser(ctx context.Context, u *model.User) context.Context {
	return context.WithValue(ctx, ctxKeyUser{}, u)
}

// Authenticator resolves bearer tokens to users. Tokens are HS256 JWTs whose
// subject is the user id.
type Authenticator struct {
	secret []byte
	users  repository.UserRepository
	log    *zerolog.Logger
}

func NewAuthenticator(secret string, users repository.UserRepository, logger *zerolog.Logger) *Authenticator {
	return &Authenticator{secret: []byte(secret), users: users, log: logger}
}

func (a *Authenticator) resolve(r *http.Request) (*model.User, error) {
	h := r.Header.Get("Authorization")
	if h == "" || !strings.HasPrefix(h, "Bearer ") {
		return nil, nil
	}
	raw := strings.TrimPrefix(h, "Bearer ")

	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !tok.Valid {
		return nil, err
	}
	sub, err := tok.Claims.GetSubject()
	if err != nil || sub == "" {
		return nil, err
	}
	return a.users.FindByID(r.Context(), nil, sub)
}

// Require rejects requests without a valid token.
func (a *Authenticator) Require() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, err := a.resolve(r)
			if err != nil || u == nil {
				if err != nil {
					logging.With(r.Context(), a.log).Warn().Err(err).Msg("auth token rejected")
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthenticated"}`))
				return
			}
			ctx := withUser(r.Context(), u)
			ctx = logging.WithUserID(ctx, u.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Optional resolves a token when present but lets anonymous requests through.
// Free-preview topic routes need this.
func (a *Authenticator) Optional() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, err := a.resolve(r)
			if err != nil || u == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := withUser(r.Context(), u)
			ctx = logging.WithUserID(ctx, u.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
