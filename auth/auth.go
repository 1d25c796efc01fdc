package auth

import (
	"context"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/noisersup/filesmanager/logger"
	"github.com/noisersup/filesmanager/models"
	satori "github.com/satori/go.uuid"
)

const tokenPrefix = "auth_"

// Auth issues and revokes session tokens kept in the cache as
// auth_<token> -> user id.
type Auth struct {
	db    models.Database
	cache models.Cache
	jobs  models.Publisher
	ttl   time.Duration
	l     *logger.Logger
}

func NewAuth(db models.Database, cache models.Cache, jobs models.Publisher, ttl time.Duration, l *logger.Logger) *Auth {
	return &Auth{db: db, cache: cache, jobs: jobs, ttl: ttl, l: l}
}

// HashPassword is the unsalted SHA-1 hex digest users are stored with
func HashPassword(password string) string {
	sum := sha1.Sum([]byte(password))
	return hex.EncodeToString(sum[:])
}

/*
	Takes the Authorization header (Basic email:password) and returns
	a fresh session token if the credentials are valid
*/
func (a *Auth) Connect(ctx context.Context, authorization string) (string, error) {
	email, password, ok := parseBasic(authorization)
	if !ok || email == "" || password == "" {
		return "", models.ErrUnauthorized
	}

	user, err := a.db.GetUserByEmail(ctx, email)
	if errors.Is(err, models.ErrUserNotFound) {
		return "", models.ErrUnauthorized
	}
	if err != nil {
		return "", fmt.Errorf("connect: %w", err)
	}

	if subtle.ConstantTimeCompare([]byte(user.PasswordHash), []byte(HashPassword(password))) != 1 {
		return "", models.ErrUnauthorized
	}

	sessionToken := satori.NewV4().String()
	if err := a.cache.Set(ctx, tokenPrefix+sessionToken, user.Id.String(), a.ttl); err != nil {
		return "", fmt.Errorf("connect: %w", err)
	}
	a.l.LogV("session opened for %s", user.Id)
	return sessionToken, nil
}

// Disconnect revokes token. Revoking twice fails the second time.
func (a *Auth) Disconnect(ctx context.Context, token string) error {
	if _, err := a.ResolveUser(ctx, token); err != nil {
		return err
	}
	removed, err := a.cache.Del(ctx, tokenPrefix+token)
	if err != nil {
		return fmt.Errorf("disconnect: %w", err)
	}
	if !removed {
		// revoked by a concurrent disconnect since the lookup
		return models.ErrUnauthorized
	}
	return nil
}

// ResolveUser maps a token to its user id without touching its expiry
func (a *Auth) ResolveUser(ctx context.Context, token string) (uuid.UUID, error) {
	if token == "" {
		return uuid.Nil, models.ErrUnauthorized
	}
	v, err := a.cache.Get(ctx, tokenPrefix+token)
	if errors.Is(err, models.ErrCacheMiss) {
		return uuid.Nil, models.ErrUnauthorized
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("resolve session: %w", err)
	}
	id, err := uuid.Parse(v)
	if err != nil {
		a.l.Warn("session %s... holds a malformed user id", token[:min(len(token), 8)])
		return uuid.Nil, models.ErrUnauthorized
	}
	return id, nil
}

func parseBasic(header string) (email, password string, ok bool) {
	scheme, cred, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Basic") {
		return "", "", false
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(cred))
	if err != nil {
		return "", "", false
	}
	return strings.Cut(string(decoded), ":")
}
