package tx

import (
	"context"
	"sync"
	"time"
)

// numShards spreads lock keys over a fixed set of mutexes. Keys that collide
// on a shard serialize with each other, which is safe because runners never nest.
const numShards = 128

// Sharded is the in-memory Runner. Exclusivity comes from FNV-sharded
// mutexes; atomicity comes from the undo log stores populate via OnRollback.
// Writes a concurrent reader must never see before commit are deferred
// with OnCommit instead.
//
// Every transaction and keyed view holds gate shared. A view over all keys
// holds it exclusively, so it waits for in-flight transactions to finish.
type Sharded struct {
	gate    sync.RWMutex
	shards  [numShards]sync.RWMutex
	timeout time.Duration
}

// ShardedOption configures a Sharded runner.
type ShardedOption func(*Sharded)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) ShardedOption {
	return func(s *Sharded) {
		s.timeout = d
	}
}

// NewSharded builds an in-memory runner.
func NewSharded(opts ...ShardedOption) *Sharded {
	s := &Sharded{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Sharded) RunInTx(ctx context.Context, key string, fn func(ctx context.Context) error) (err error) {
	if err := checkContext(ctx); err != nil {
		return err
	}
	ctx, cancel := withDeadline(ctx, s.timeout)
	defer cancel()

	s.gate.RLock()
	defer s.gate.RUnlock()
	shard := s.shard(key)
	shard.Lock()
	defer shard.Unlock()

	if err := checkContext(ctx); err != nil {
		return err
	}

	log := &txLog{}
	defer func() {
		if p := recover(); p != nil {
			log.rollback()
			panic(p)
		}
	}()

	if err = fn(context.WithValue(ctx, txLogKey{}, log)); err != nil {
		log.rollback()
		return err
	}
	log.commit()
	return nil
}

// View runs fn while no transaction on key is in flight. An empty key waits
// for transactions on every key. Inside a transaction or another view fn
// runs directly.
func (s *Sharded) View(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if joined(ctx) {
		return fn(ctx)
	}
	if err := checkContext(ctx); err != nil {
		return err
	}
	if key == AllKeys {
		s.gate.Lock()
		defer s.gate.Unlock()
	} else {
		s.gate.RLock()
		defer s.gate.RUnlock()
		shard := s.shard(key)
		shard.RLock()
		defer shard.RUnlock()
	}
	return fn(context.WithValue(ctx, viewKey{}, struct{}{}))
}

func (s *Sharded) shard(key string) *sync.RWMutex {
	return &s.shards[hashKey(key)%numShards]
}

type (
	txLogKey struct{}
	viewKey  struct{}
)

type txLog struct {
	undo    []func()
	commits []func()
}

func (l *txLog) rollback() {
	for i := len(l.undo) - 1; i >= 0; i-- {
		l.undo[i]()
	}
	l.undo = nil
	l.commits = nil
}

func (l *txLog) commit() {
	for _, fn := range l.commits {
		fn()
	}
	l.undo = nil
	l.commits = nil
}

func joined(ctx context.Context) bool {
	if _, ok := ctx.Value(txLogKey{}).(*txLog); ok {
		return true
	}
	return ctx.Value(viewKey{}) != nil
}

// OnRollback registers a compensation for the in-memory transaction in ctx.
// Outside a Sharded transaction it is a no-op and the write stands.
func OnRollback(ctx context.Context, undo func()) {
	if log, ok := ctx.Value(txLogKey{}).(*txLog); ok {
		log.undo = append(log.undo, undo)
	}
}

// OnCommit defers apply until the in-memory transaction in ctx commits,
// still under its lock and in registration order. A rolled back transaction
// drops it. Outside a Sharded transaction apply runs immediately.
func OnCommit(ctx context.Context, apply func()) {
	if log, ok := ctx.Value(txLogKey{}).(*txLog); ok {
		log.commits = append(log.commits, apply)
		return
	}
	apply()
}

// hashKey uses FNV-1a.
func hashKey(s string) uint32 {
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
