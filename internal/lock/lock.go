// Package lock serializes terminal sessions per device. The local locker
// covers a single process; the redis locker extends the guarantee across
// replicas sharing one fleet.
package lock

import "context"

// Locker grants exclusive use of a key. Lock blocks until the key is free
// or ctx is done; the returned func releases it and is safe to call twice.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}
