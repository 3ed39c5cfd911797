package auth

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/erazemk/popis/internal/backend"
)

func TestRevokeToken(t *testing.T) {
	ctx := context.Background()
	b := backend.NewMemory(0)

	revoked, err := IsTokenRevoked(ctx, b, "jti-1")
	if err != nil {
		t.Fatalf("IsTokenRevoked: %v", err)
	}
	if revoked {
		t.Error("token should not be revoked yet")
	}

	if err := RevokeToken(ctx, b, "jti-1", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("RevokeToken: %v", err)
	}

	revoked, err = IsTokenRevoked(ctx, b, "jti-1")
	if err != nil {
		t.Fatalf("IsTokenRevoked: %v", err)
	}
	if !revoked {
		t.Error("token should be revoked")
	}

	revoked, _ = IsTokenRevoked(ctx, b, "jti-2")
	if revoked {
		t.Error("other tokens should not be revoked")
	}
}

func TestRevokeTokenPrunesExpired(t *testing.T) {
	ctx := context.Background()
	b := backend.NewMemory(0)

	if err := RevokeToken(ctx, b, "old", time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("RevokeToken: %v", err)
	}
	if err := RevokeToken(ctx, b, "new", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("RevokeToken: %v", err)
	}

	raw, _, _ := b.Get(ctx, RevokedKey)
	var stored map[string]time.Time
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if _, ok := stored["old"]; ok {
		t.Error("expired revocation should have been pruned")
	}
	if _, ok := stored["new"]; !ok {
		t.Error("live revocation should be kept")
	}
}
