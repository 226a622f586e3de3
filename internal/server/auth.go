package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hyperjump/biznesinfo/internal/models"
	"go.uber.org/zap"
)

// Identity is the authenticated caller.
type Identity struct {
	UserID string
	Email  string
	Name   string
}

// Claims are the accepted bearer token claims. The subject is the user id.
type Claims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

type identityKey struct{}

func withIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the caller identity stored by the identify middleware.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok && id.UserID != ""
}

// identify resolves the caller from a bearer token when a JWT secret is
// configured, otherwise from the trusted user header. An invalid token is
// rejected; a missing one leaves the request anonymous.
func (s *Server) identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := s.identityOf(r)
		if err != nil {
			s.logger.Debug("rejected credentials", zap.Error(err))
			s.respondError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		if id.UserID != "" {
			r = r.WithContext(withIdentity(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) identityOf(r *http.Request) (Identity, error) {
	secret := s.config.Auth.JWTSecret
	if secret == "" {
		return Identity{UserID: strings.TrimSpace(r.Header.Get(s.config.Auth.UserHeader))}, nil
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return Identity{}, nil
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return Identity{}, errors.New("authorization header is not a bearer token")
	}
	return ParseToken(strings.TrimSpace(token), secret)
}

// ParseToken validates an HS256 token and returns its identity.
func ParseToken(tokenString, secret string) (Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return Identity{}, err
	}
	if !token.Valid || claims.Subject == "" {
		return Identity{}, errors.New("token has no subject")
	}
	return Identity{UserID: claims.Subject, Email: claims.Email, Name: claims.Name}, nil
}

func requireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := IdentityFrom(r.Context()); !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": models.ErrUnauthorized.Error()})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// userKey keys rate limits by user id.
func userKey(r *http.Request) (string, error) {
	id, ok := IdentityFrom(r.Context())
	if !ok {
		return "", models.ErrUnauthorized
	}
	return "user:" + id.UserID, nil
}
