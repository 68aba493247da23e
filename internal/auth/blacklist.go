package auth

import (
	"context"
	"time"

	"github.com/jacobwhite/taskdeck/internal/cache"
)

// Blacklist records revoked token JTIs in the auth cache namespace. Entries
// carry a TTL matching the token's remaining lifetime, so revocations expire
// exactly when the token itself would have.
type Blacklist struct {
	cache *cache.Cache
}

func NewBlacklist(c *cache.Cache) *Blacklist {
	return &Blacklist{cache: c}
}

func (b *Blacklist) RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil // already expired, nothing to revoke
	}
	return b.cache.Set(ctx, cache.NamespaceAuth, "blacklist:"+jti, true, ttl)
}

func (b *Blacklist) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	return b.cache.Exists(ctx, cache.NamespaceAuth, "blacklist:"+jti)
}
