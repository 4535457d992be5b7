package scenarios

import (
	"math/rand/v2"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/stat/distuv"

	"go.viam.com/factorgraph/spatialmath"
)

// Perturber draws reproducible zero mean Gaussian noise.
type Perturber struct {
	normal distuv.Normal
}

// NewPerturber returns a Perturber with standard deviation sigma seeded by seed.
func NewPerturber(seed uint64, sigma float64) *Perturber {
	return &Perturber{normal: distuv.Normal{
		Mu:    0,
		Sigma: sigma,
		Src:   rand.NewPCG(seed, seed^0x9e3779b97f4a7c15),
	}}
}

// Sample returns one draw.
func (p *Perturber) Sample() float64 {
	if p.normal.Sigma == 0 {
		return 0
	}
	return p.normal.Rand()
}

// Point3 returns point with independent noise on each coordinate.
func (p *Perturber) Point3(point spatialmath.Point3) spatialmath.Point3 {
	return spatialmath.Point3{Vector: point.Add(r3.Vector{X: p.Sample(), Y: p.Sample(), Z: p.Sample()})}
}

// Point2 returns point with independent noise on each coordinate.
func (p *Perturber) Point2(point spatialmath.Point2) spatialmath.Point2 {
	return spatialmath.NewPoint2(point.X+p.Sample(), point.Y+p.Sample())
}
