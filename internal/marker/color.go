package marker

import (
	"fmt"
	"math/rand"
)

// Color is a presentation hint for drawing a pattern.
type Color struct {
	R, G, B uint8
	A       float64
}

func (c Color) String() string {
	return fmt.Sprintf("rgba(%d,%d,%d,%.1f)", c.R, c.G, c.B, c.A)
}

// ColorSource hands out pattern colours.
type ColorSource interface {
	Next() Color
}

// RandomColors draws half-transparent colours with a damped green channel
// so patterns stay distinguishable from the white bed.
type RandomColors struct {
	rng *rand.Rand
}

// NewRandomColors creates a colour source from seed.
func NewRandomColors(seed int64) *RandomColors {
	return &RandomColors{rng: rand.New(rand.NewSource(seed))}
}

func (r *RandomColors) Next() Color {
	return Color{
		R: uint8(r.rng.Intn(256)),
		G: uint8(r.rng.Intn(100)),
		B: uint8(r.rng.Intn(256)),
		A: 0.5,
	}
}
