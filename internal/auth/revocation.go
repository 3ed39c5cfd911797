package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/erazemk/popis/internal/backend"
)

// RevokedKey holds the revoked token ids, each with the time its token expires.
const RevokedKey = "auth_revoked_tokens"

// revokeMu serializes the read-modify-write of RevokedKey within the process.
var revokeMu sync.Mutex

// RevokeToken adds a token's JTI to the revocation list.
func RevokeToken(ctx context.Context, b backend.Backend, jti string, expiresAt time.Time) error {
	revokeMu.Lock()
	defer revokeMu.Unlock()

	revoked, err := loadRevoked(ctx, b)
	if err != nil {
		return err
	}

	// Expired tokens fail validation anyway.
	now := time.Now()
	for id, exp := range revoked {
		if exp.Before(now) {
			delete(revoked, id)
		}
	}
	revoked[jti] = expiresAt

	data, err := json.Marshal(revoked)
	if err != nil {
		return fmt.Errorf("encoding revoked tokens: %w", err)
	}
	if err := b.Set(ctx, RevokedKey, string(data)); err != nil {
		return fmt.Errorf("revoking token: %w", err)
	}
	return nil
}

// IsTokenRevoked checks if a token's JTI has been revoked.
func IsTokenRevoked(ctx context.Context, b backend.Backend, jti string) (bool, error) {
	revoked, err := loadRevoked(ctx, b)
	if err != nil {
		return false, err
	}
	_, ok := revoked[jti]
	return ok, nil
}

func loadRevoked(ctx context.Context, b backend.Backend) (map[string]time.Time, error) {
	raw, ok, err := b.Get(ctx, RevokedKey)
	if err != nil {
		return nil, fmt.Errorf("checking token revocation: %w", err)
	}

	revoked := make(map[string]time.Time)
	if !ok {
		return revoked, nil
	}
	if err := json.Unmarshal([]byte(raw), &revoked); err != nil {
		return nil, fmt.Errorf("decoding revoked tokens: %w", err)
	}
	return revoked, nil
}
