package barcode

import (
	"fmt"
	"math/rand"
	"time"
)

// DefaultPrefix is used for unit barcodes
const DefaultPrefix = "CAM"

// Generator formats tracking barcodes. Now and Rand are replaceable for tests.
type Generator struct {
	Prefix string
	Now    func() time.Time
	Rand   func(n int) int
}

func NewGenerator() *Generator {
	return &Generator{
		Prefix: DefaultPrefix,
		Now:    time.Now,
		Rand:   rand.Intn,
	}
}

// Unit returns PREFIX-YYYYMMDD-HHMMSS-NNN
func (g *Generator) Unit() string {
	now := g.Now()
	return fmt.Sprintf("%s-%s-%03d", g.Prefix, now.Format("20060102-150405"), g.Rand(1000))
}
