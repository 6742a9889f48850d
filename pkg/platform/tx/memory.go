package tx

import (
	"context"
	"sync"
	"time"

	dErrors "lifenavigator/pkg/domain-errors"
)

// numShards spreads keys over independent mutexes so unrelated keys do not contend.
const numShards = 128

// InMemory serializes units of work with sharded mutexes. It gives in-memory
// stores the same ordering guarantees as the Postgres runner; atomicity of
// multi-row writes is the store's responsibility.
type InMemory struct {
	shards  [numShards]sync.Mutex
	timeout time.Duration
}

func NewInMemory() *InMemory {
	return &InMemory{}
}

type heldShardsKey struct{}

func (m *InMemory) RunInTx(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := m.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if key == "" {
		return fn(ctx)
	}

	shard := shardFor(key)
	held, _ := ctx.Value(heldShardsKey{}).(map[uint32]bool)
	if held[shard] {
		// Nested unit of work on a shard this call chain already owns.
		return fn(ctx)
	}

	m.shards[shard].Lock()
	defer m.shards[shard].Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	next := make(map[uint32]bool, len(held)+1)
	for k := range held {
		next[k] = true
	}
	next[shard] = true
	return fn(context.WithValue(ctx, heldShardsKey{}, next))
}

func shardFor(key string) uint32 {
	return hashString(key) % numShards
}

// hashString is FNV-1a.
func hashString(s string) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}
