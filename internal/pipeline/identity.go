package pipeline

import (
	"math/rand/v2"
	"sync"
	"time"
)

// IdentityGenerator allocates item ids of the form {unix seconds}{3 random digits},
// e.g. 1716800000123. Ids are strictly increasing within one generator.
type IdentityGenerator struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
	rand func(n int) int
}

func NewIdentityGenerator() *IdentityGenerator {
	return &IdentityGenerator{now: time.Now, rand: rand.IntN}
}

func (g *IdentityGenerator) Next() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := g.now().Unix()*1000 + int64(100+g.rand(900))
	if id <= g.last {
		id = g.last + 1
	}
	g.last = id
	return id
}
