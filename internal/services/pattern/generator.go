package pattern

import (
	"github.com/mcoot/memorygrid/internal/dependencies/random"
	"github.com/mcoot/memorygrid/internal/model"
)

// Generator produces server-authored round patterns
type Generator struct {
	random random.Random
}

// NewGenerator creates a new Generator
func NewGenerator(rnd random.Random) *Generator {
	return &Generator{random: rnd}
}

// Generate returns a pattern for the given round on a gridSize×gridSize
// board. The pattern has one cell per round number; cells may repeat.
func (g *Generator) Generate(roundNumber, gridSize int) model.Pattern {
	if roundNumber < 1 {
		roundNumber = 1
	}
	cells := gridSize * gridSize
	p := make(model.Pattern, roundNumber)
	for i := range p {
		p[i] = g.random.Intn(cells)
	}
	return p
}
