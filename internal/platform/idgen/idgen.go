package idgen

import (
	"crypto/rand"
	"sync"
	"time"

	ulid "github.com/oklog/ulid/v2"
)

type IDGen interface{ NewULID(t time.Time) string }

// ULID は単調増加する ULID を払い出す。同一ミリ秒内でも順序が保たれる。
type ULID struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func New() *ULID {
	return &ULID{entropy: ulid.Monotonic(rand.Reader, 0)}
}

func (g *ULID) NewULID(t time.Time) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), g.entropy).String()
}
