package id

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Generator hands out ULID strings (time-sortable identifiers).
//
// ULIDs are lexicographically sortable by generation time, which makes them
// ideal for order ids and SQLite indexes. A backtest stamps them with the
// simulated clock, so ids sort in simulation order rather than wall-clock order.
type Generator struct {
	mu   sync.Mutex
	mono io.Reader
}

// NewGenerator returns a generator whose entropy is seeded from seed. The same
// seed and the same sequence of timestamps always produce the same ids.
func NewGenerator(seed int64) *Generator {
	// ulid.Monotonic keeps ids generated within the same millisecond
	// lexicographically increasing.
	return &Generator{mono: ulid.Monotonic(rand.New(rand.NewSource(seed)), 0)}
}

// NewRandomGenerator seeds a generator from crypto/rand so ids are unpredictable.
func NewRandomGenerator() *Generator {
	var seed int64
	_ = binary.Read(cryptoRand.Reader, binary.LittleEndian, &seed)
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return NewGenerator(seed)
}

// New returns a ULID string for time t.
func (g *Generator) New(t time.Time) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	id, err := ulid.New(ulid.Timestamp(t.UTC()), g.mono)
	if err != nil {
		// Errors are extremely unlikely unless time goes backwards within the
		// monotonic window or entropy fails.
		panic(err)
	}
	return id.String()
}
