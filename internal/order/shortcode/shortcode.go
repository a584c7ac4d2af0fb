// Package shortcode produces the human-facing order identifier printed on
// receipts, independent of the durable primary key. The generator makes no
// uniqueness promise itself; the store's unique constraint plus the lifecycle
// manager's bounded retry loop enforce it.
package shortcode

import (
	"fmt"
	"math/rand"
	"sync"
	"time"
)

const DefaultWidth = 4

type Generator struct {
	mu    sync.Mutex
	rng   *rand.Rand
	width int
	max   int
}

// New returns a generator emitting fixed-width decimal codes with a leading
// non-zero digit, e.g. width 4 samples uniformly from 1000-9999.
func New(width int) *Generator {
	if width < 2 {
		width = DefaultWidth
	}
	min := pow10(width - 1)
	return &Generator{
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
		width: width,
		max:   pow10(width) - min,
	}
}

func (g *Generator) Next() string {
	g.mu.Lock()
	n := g.rng.Intn(g.max) + pow10(g.width-1)
	g.mu.Unlock()
	return fmt.Sprintf("%0*d", g.width, n)
}

func (g *Generator) Width() int { return g.width }

func pow10(n int) int {
	p := 1
	for i := 0; i < n; i++ {
		p *= 10
	}
	return p
}
