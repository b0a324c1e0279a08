package registry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"sync"
	"time"

	"github.com/MahdiBaghbani/confsync-go/internal/platform/cache"
)

// NonceSource hands out the nonces that sign registry requests. Values must
// be strictly increasing for everyone sharing the registry secret.
type NonceSource interface {
	Next(ctx context.Context) (int64, error)
}

// timeNonce is milliseconds times 60. Other tools signing against the same
// registry account use this scale, so ours must not fall behind theirs.
func timeNonce(t time.Time) int64 {
	return t.UnixNano() / int64(time.Millisecond) * 60
}

// passhash signs a nonce with the shared secret.
func passhash(nonce int64, secret string) string {
	sum := sha256.Sum256([]byte(strconv.FormatInt(nonce, 10) + secret))
	return hex.EncodeToString(sum[:])
}

// LocalNonces is an in-process nonce sequence.
type LocalNonces struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

// NewLocalNonces returns a process-local nonce source.
func NewLocalNonces() *LocalNonces {
	return &LocalNonces{now: time.Now}
}

// Next returns max(clock nonce, previous+1).
func (n *LocalNonces) Next(context.Context) (int64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	next := timeNonce(n.now())
	if next <= n.last {
		next = n.last + 1
	}
	n.last = next
	return next, nil
}

// SequenceNonces keeps the sequence in a cache so replicas sharing the
// secret (and a redis cache) never reuse or reorder nonces.
type SequenceNonces struct {
	seq cache.Sequence
	key string
	now func() time.Time
}

// NewSequenceNonces returns a nonce source backed by seq under key.
func NewSequenceNonces(seq cache.Sequence, key string) *SequenceNonces {
	return &SequenceNonces{seq: seq, key: key, now: time.Now}
}

func (n *SequenceNonces) Next(ctx context.Context) (int64, error) {
	return n.seq.Advance(ctx, n.key, timeNonce(n.now()))
}
