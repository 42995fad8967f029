package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ericfisherdev/runpanel/internal/domain/model"
	"github.com/ericfisherdev/runpanel/internal/domain/port/driven"
)

// sessionKeyPrefix namespaces session records inside the key-value table.
const sessionKeyPrefix = "github_user:"

// Compile-time interface satisfaction check.
var _ driven.SessionStore = (*SessionRepo)(nil)

// sessionRecord is the at-rest JSON shape of a session. Timestamps are
// serialized as RFC 3339 strings.
type sessionRecord struct {
	Login       string      `json:"login"`
	AccessToken tokenRecord `json:"accessToken"`
}

type tokenRecord struct {
	AccessToken           string    `json:"access_token"`
	ExpiresAt             time.Time `json:"expires_at"`
	RefreshToken          string    `json:"refresh_token"`
	RefreshTokenExpiresAt time.Time `json:"refresh_token_expires_at"`
	TokenType             string    `json:"token_type"`
}

// SessionRepo is the SQLite implementation of the SessionStore port interface.
// When constructed with a key, records are sealed with AES-256-GCM before write.
type SessionRepo struct {
	kv     *KVStore
	sealer *sealer // nil stores plain JSON.
}

// NewSessionRepo creates a SessionRepo. key must be 32 bytes for AES-256-GCM,
// or nil to store records as plain JSON.
func NewSessionRepo(db *DB, key []byte) (*SessionRepo, error) {
	repo := &SessionRepo{kv: NewKVStore(db)}
	if key != nil {
		s, err := newSealer(key)
		if err != nil {
			return nil, fmt.Errorf("session encryption: %w", err)
		}
		repo.sealer = s
	}
	return repo, nil
}

// Get retrieves the session for identity. Returns nil, nil if none exists.
func (r *SessionRepo) Get(ctx context.Context, identity string) (*model.Session, error) {
	raw, ok, err := r.kv.Get(ctx, sessionKey(identity))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	data := []byte(raw)
	if r.sealer != nil {
		data, err = r.sealer.open(raw)
		if err != nil {
			return nil, fmt.Errorf("decrypt session %q: %w", identity, err)
		}
	}

	var rec sessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode session %q: %w", identity, err)
	}

	return &model.Session{
		Identity: rec.Login,
		Token: model.UpstreamToken{
			AccessToken:           rec.AccessToken.AccessToken,
			AccessTokenExpiresAt:  rec.AccessToken.ExpiresAt,
			RefreshToken:          rec.AccessToken.RefreshToken,
			RefreshTokenExpiresAt: rec.AccessToken.RefreshTokenExpiresAt,
			TokenType:             rec.AccessToken.TokenType,
		},
	}, nil
}

// Put writes the whole session record, replacing any previous one.
func (r *SessionRepo) Put(ctx context.Context, session model.Session) error {
	if session.Identity == "" {
		return fmt.Errorf("put session: empty identity")
	}

	data, err := json.Marshal(sessionRecord{
		Login: session.Identity,
		AccessToken: tokenRecord{
			AccessToken:           session.Token.AccessToken,
			ExpiresAt:             session.Token.AccessTokenExpiresAt.UTC(),
			RefreshToken:          session.Token.RefreshToken,
			RefreshTokenExpiresAt: session.Token.RefreshTokenExpiresAt.UTC(),
			TokenType:             session.Token.TokenType,
		},
	})
	if err != nil {
		return fmt.Errorf("encode session %q: %w", session.Identity, err)
	}

	value := string(data)
	if r.sealer != nil {
		value, err = r.sealer.seal(data)
		if err != nil {
			return fmt.Errorf("encrypt session %q: %w", session.Identity, err)
		}
	}

	return r.kv.Set(ctx, sessionKey(session.Identity), value)
}

// Delete removes the session for identity.
func (r *SessionRepo) Delete(ctx context.Context, identity string) error {
	return r.kv.Delete(ctx, sessionKey(identity))
}

func sessionKey(identity string) string {
	return sessionKeyPrefix + identity
}
