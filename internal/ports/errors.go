package ports

import "errors"

// ErrLockHeld is returned by Locker.TryLock when another holder owns the key.
var ErrLockHeld = errors.New("lock already held")

// ErrSessionNotFound is returned by SessionStore.Get for unknown or expired
// state tokens.
var ErrSessionNotFound = errors.New("oauth session not found")

// ErrDuplicate is returned by repository Save when a uniqueness constraint
// rejects the write, such as two concurrent inserts for the same external
// order id.
var ErrDuplicate = errors.New("duplicate record")
