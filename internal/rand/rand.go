// Package rand generates connection identifiers for the realtime hub.
package rand

import (
	cryptorand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
	"sync"
)

const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

var source = newSource()

type lockedRand struct {
	mut sync.Mutex
	rng *rand.Rand
}

func newSource() *lockedRand {
	var seed [16]byte
	if _, err := cryptorand.Read(seed[:]); err != nil {
		panic("unreachable")
	}
	//nolint:gosec // connection ids are not security-sensitive
	return &lockedRand{
		rng: rand.New(rand.NewPCG(
			binary.LittleEndian.Uint64(seed[:8]),
			binary.LittleEndian.Uint64(seed[8:]),
		)),
	}
}

// NewConnectionID returns a random identifier of the given length.
// Distribution over the charset is close enough to uniform for ids that
// only need to be unique per server process.
func NewConnectionID(length int) string {
	buf := make([]byte, length)

	source.mut.Lock()
	for i := range buf {
		buf[i] = charset[source.rng.IntN(len(charset))]
	}
	source.mut.Unlock()

	return string(buf)
}
