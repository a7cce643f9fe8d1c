package challenge

import (
	"fmt"
	"math/rand"

	"github.com/louisbranch/cofront/internal/play"
)

// Stimulus is one presentation the machine shows to all role slots at the
// same tick. Each role has its own expected action, since the two
// perspectives see different halves of the same scene.
type Stimulus struct {
	ID       string
	Expected map[play.Role]play.Action
}

// Generator produces the stimulus sequence for a session.
//
// Generation is deterministic with respect to the seed: the same seed and
// the same role order always produce the same sequence, so a recorded
// input log plus the session seed reproduces every round.
type Generator struct {
	rng *rand.Rand
	seq int
}

// NewGenerator creates a stimulus generator from a seed.
func NewGenerator(seed int64) *Generator {
	return &Generator{rng: rand.New(rand.NewSource(seed))}
}

// Next returns the next stimulus, expecting one action per provided role.
// Roles are consumed in slice order.
func (g *Generator) Next(roles []play.Role) Stimulus {
	g.seq++
	actions := play.ReactionActions()
	expected := make(map[play.Role]play.Action, len(roles))
	for _, role := range roles {
		expected[role] = actions[g.rng.Intn(len(actions))]
	}
	return Stimulus{
		ID:       fmt.Sprintf("stim-%04d", g.seq),
		Expected: expected,
	}
}
