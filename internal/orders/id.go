package orders

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// IDGenerator produces order ids of the form ORD<8 digits of unix millis><4 random digits>.
// It does no I/O.
type IDGenerator struct {
	nowFunc func() time.Time
	intN    func(n int) int
}

func NewIDGenerator() *IDGenerator {
	return &IDGenerator{
		nowFunc: time.Now,
		intN:    rand.IntN,
	}
}

// Next returns a new order id.
func (g *IDGenerator) Next() string {
	millis := g.nowFunc().UnixMilli() % 100_000_000
	return fmt.Sprintf("ORD%08d%04d", millis, g.intN(10_000))
}
