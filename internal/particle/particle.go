// Package particle produces the Data payloads a sender streams each turn.
package particle

import (
	"math/rand"
	"sync"
	"time"

	"github.com/danmuck/turnsync/internal/protocol"
)

// Generator fills every value with a uniform sample in [0,1) and sets both
// flags to 1. It is safe for concurrent use.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewGenerator returns a generator seeded with seed; seed 0 picks a
// time-based seed.
func NewGenerator(seed int64) *Generator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Generator{rng: rand.New(rand.NewSource(seed))}
}

func (g *Generator) Particle(turn, id int) protocol.Particle {
	p := protocol.Particle{Turn: turn, ID: id}
	g.mu.Lock()
	for i := range p.Values {
		p.Values[i] = g.rng.Float64()
	}
	g.mu.Unlock()
	for i := range p.Flags {
		p.Flags[i] = 1
	}
	return p
}
