package privacy

import (
	crand "crypto/rand"
	"encoding/binary"
	"math"
	"math/rand"
	"sync"
)

// laplaceSource draws Laplace(0, scale) noise via inverse-CDF sampling on a
// uniform source. The PRNG is seeded from crypto entropy; a deterministic
// source can be injected for tests.
type laplaceSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func newLaplaceSource() *laplaceSource {
	var seed [8]byte
	if _, err := crand.Read(seed[:]); err != nil {
		panic("privacy: cannot seed noise source: " + err.Error())
	}
	return &laplaceSource{
		rng: rand.New(rand.NewSource(int64(binary.LittleEndian.Uint64(seed[:])))),
	}
}

func newSeededLaplaceSource(seed int64) *laplaceSource {
	return &laplaceSource{rng: rand.New(rand.NewSource(seed))}
}

// Draw returns one sample from Laplace(0, scale).
func (s *laplaceSource) Draw(scale float64) float64 {
	s.mu.Lock()
	// u in (-0.5, 0.5); Float64 returns [0,1) so shift and guard the
	// boundary where log would blow up.
	u := s.rng.Float64() - 0.5
	s.mu.Unlock()

	if u == -0.5 {
		u = math.Nextafter(-0.5, 0)
	}
	sign := 1.0
	if u < 0 {
		sign = -1.0
	}
	return -scale * sign * math.Log(1-2*math.Abs(u))
}
