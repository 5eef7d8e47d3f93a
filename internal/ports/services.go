package ports

import (
	"context"
	"time"

	"pos-shopify-sync/internal/domain"
)

// EncryptionService encrypts secrets at rest.
type EncryptionService interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// ImageFetcher downloads a remote image and returns a stored reference
// (path or URL). Failures are non-fatal to sync; callers log and continue.
type ImageFetcher interface {
	Fetch(ctx context.Context, imageURL string) (string, error)
}

// SessionStore holds pending OAuth sessions keyed by state token.
type SessionStore interface {
	Put(ctx context.Context, session *domain.Session, ttl time.Duration) error
	Get(ctx context.Context, state string) (*domain.Session, error)
	Delete(ctx context.Context, state string) error
}

// Locker grants exclusive per-key locks so only one sync job runs per tenant
// at a time across replicas.
type Locker interface {
	// TryLock returns a release func, or ErrLockHeld when the key is taken.
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}
