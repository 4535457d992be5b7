// Package noise implements Gaussian noise models. A model whitens residuals and Jacobians with a
// square root information matrix R, where RᵀR is the inverse covariance.
package noise

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ConstrainedPrecision is the whitening weight applied to components with zero sigma.
const ConstrainedPrecision = 1e6

// Model is a whitening transform for residuals of a fixed dimension.
type Model interface {
	// Dim is the residual dimension the model applies to.
	Dim() int
	// Whiten returns R·v in a new slice.
	Whiten(v []float64) []float64
	// WhitenMatrix returns R·H in a new matrix.
	WhitenMatrix(h mat.Matrix) *mat.Dense
	// Distance is the squared Mahalanobis distance ‖R·v‖².
	Distance(v []float64) float64
	// Sigmas are the marginal standard deviations per component.
	Sigmas() []float64
	Equal(other Model, tol float64) bool
	String() string
}

// NewDimensionError is returned when a vector does not match a model dimension.
func NewDimensionError(expected, actual int) error {
	return errors.Errorf("noise model of dimension %d applied to vector of dimension %d", expected, actual)
}

func squaredNorm(v []float64) float64 {
	return floats.Dot(v, v)
}

// Gaussian is a model with a full square root information matrix.
type Gaussian struct {
	sqrtInfo *mat.Dense
}

// NewSqrtInformation returns a Gaussian model whitening with r. r must be square and invertible.
func NewSqrtInformation(r mat.Matrix) (*Gaussian, error) {
	rows, cols := r.Dims()
	if rows != cols || rows == 0 {
		return nil, errors.Errorf("square root information must be square and non-empty, got %dx%d", rows, cols)
	}
	var lu mat.LU
	lu.Factorize(r)
	if math.Abs(lu.Det()) == 0 {
		return nil, errors.New("square root information is singular")
	}
	return &Gaussian{sqrtInfo: mat.DenseCopyOf(r)}, nil
}

// NewCovariance returns a Gaussian model for the positive definite covariance cov.
func NewCovariance(cov mat.Symmetric) (*Gaussian, error) {
	var chol mat.Cholesky
	if ok := chol.Factorize(cov); !ok {
		return nil, errors.New("covariance is not positive definite")
	}
	// cov = L·Lᵀ so the inverse covariance is L⁻ᵀ·L⁻¹ and R = L⁻¹.
	var l mat.TriDense
	chol.LTo(&l)
	var lInv mat.TriDense
	if err := lInv.InverseTri(&l); err != nil {
		return nil, errors.Wrap(err, "cannot invert covariance factor")
	}
	return &Gaussian{sqrtInfo: mat.DenseCopyOf(&lInv)}, nil
}

// NewInformation returns a Gaussian model for the positive definite information matrix info.
func NewInformation(info mat.Symmetric) (*Gaussian, error) {
	var chol mat.Cholesky
	if ok := chol.Factorize(info); !ok {
		return nil, errors.New("information matrix is not positive definite")
	}
	var u mat.TriDense
	chol.UTo(&u)
	return &Gaussian{sqrtInfo: mat.DenseCopyOf(&u)}, nil
}

// Dim returns the residual dimension.
func (g *Gaussian) Dim() int {
	n, _ := g.sqrtInfo.Dims()
	return n
}

// SqrtInformation returns a copy of R.
func (g *Gaussian) SqrtInformation() *mat.Dense {
	return mat.DenseCopyOf(g.sqrtInfo)
}

// Whiten returns R·v.
func (g *Gaussian) Whiten(v []float64) []float64 {
	if len(v) != g.Dim() {
		panic(NewDimensionError(g.Dim(), len(v)))
	}
	out := mat.NewVecDense(len(v), nil)
	out.MulVec(g.sqrtInfo, mat.NewVecDense(len(v), append([]float64(nil), v...)))
	return out.RawVector().Data
}

// WhitenMatrix returns R·H.
func (g *Gaussian) WhitenMatrix(h mat.Matrix) *mat.Dense {
	var out mat.Dense
	out.Mul(g.sqrtInfo, h)
	return &out
}

// Distance returns ‖R·v‖².
func (g *Gaussian) Distance(v []float64) float64 {
	return squaredNorm(g.Whiten(v))
}

// Sigmas returns the square roots of the covariance diagonal.
func (g *Gaussian) Sigmas() []float64 {
	var info mat.Dense
	info.Mul(g.sqrtInfo.T(), g.sqrtInfo)
	var cov mat.Dense
	if err := cov.Inverse(&info); err != nil {
		return nil
	}
	sigmas := make([]float64, g.Dim())
	for i := range sigmas {
		sigmas[i] = math.Sqrt(cov.At(i, i))
	}
	return sigmas
}

// Equal compares the whitening matrices of two Gaussian models.
func (g *Gaussian) Equal(other Model, tol float64) bool {
	o, ok := other.(*Gaussian)
	if !ok {
		return false
	}
	return mat.EqualApprox(g.sqrtInfo, o.sqrtInfo, tol)
}

func (g *Gaussian) String() string {
	return fmt.Sprintf("Gaussian dim=%d R=%v", g.Dim(), mat.Formatted(g.sqrtInfo, mat.Squeeze()))
}
