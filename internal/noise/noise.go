// Package noise supplies the Gaussian draws for Langevin-style
// perturbation of trajectories.
//
// A generator is never shared between goroutines: every sample gets its
// own [BoxMuller] seeded from the batch seed and the sample index, so a
// sample's noise does not depend on which worker ran it or when.
package noise

import (
	"math"
	"math/rand/v2"
	"os"
	"time"
)

// Avogadro's constant and the defaults used to derive zeta when a
// stochastic run does not specify one.
const (
	Avogadro           = 6.02214e23
	DefaultMolarUnit   = 1e-9  // nanomolar
	DefaultVolumeLiter = 1e-12 // roughly a third of a HEK293 cell
)

// DefaultZeta converts nanomolar concentrations in a 1 pL volume to
// molecule counts.
var DefaultZeta = Zeta(DefaultMolarUnit, DefaultVolumeLiter)

// Zeta returns the factor converting concentrations in molarUnit to
// particle counts in a volume of volumeLiters. Use 1 when the model is
// already written in particle counts.
func Zeta(molarUnit, volumeLiters float64) float64 {
	return molarUnit * Avogadro * volumeLiters
}

// Source produces independent standard-normal draws.
type Source interface {
	Gaussian() float64
}

// BoxMuller turns pairs of uniform draws into Gaussian draws. Only the
// cosine branch is used, so every draw consumes two uniforms.
type BoxMuller struct {
	rng *rand.Rand
}

func NewBoxMuller(seed uint64) *BoxMuller {
	return &BoxMuller{rng: rand.New(rand.NewPCG(seed, splitmix(seed)))}
}

func (b *BoxMuller) Gaussian() float64 {
	u := 1 - b.rng.Float64() // (0, 1], keeps the log finite
	v := b.rng.Float64()
	return math.Sqrt(-2*math.Log(u)) * math.Cos(2*math.Pi*v)
}

// Perturb adds sqrt(y*zeta)*g/zeta to each species and clamps at zero.
// Values that are already negative are clamped before the draw.
func Perturb(y []float64, zeta float64, src Source) {
	for j, v := range y {
		if v < 0 {
			v = 0
		}
		v += math.Sqrt(v*zeta) * src.Gaussian() / zeta
		if v < 0 {
			v = 0
		}
		y[j] = v
	}
}

// SampleSeed derives the seed of sample k from the batch seed.
func SampleSeed(batchSeed uint64, k int) uint64 {
	return splitmix(batchSeed ^ splitmix(uint64(k)+0x632be59bd9b4e019))
}

// BatchSeed derives a fresh batch seed from the process id and the wall
// clock. Use an explicit seed for reproducible runs.
func BatchSeed() uint64 {
	return splitmix(uint64(time.Now().UnixNano()) ^ uint64(os.Getpid())<<32)
}

// splitmix is the SplitMix64 finaliser.
func splitmix(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}
