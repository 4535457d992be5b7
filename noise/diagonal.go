package noise

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Diagonal is a model with independent components.
type Diagonal struct {
	sigmas     []float64
	precisions []float64
}

// NewDiagonal returns a model with the given standard deviations. Every sigma must be positive
// and finite; use NewConstrained for zero sigmas.
func NewDiagonal(sigmas []float64) (*Diagonal, error) {
	if len(sigmas) == 0 {
		return nil, errors.New("diagonal noise model needs at least one sigma")
	}
	precisions := make([]float64, len(sigmas))
	for i, s := range sigmas {
		if !(s > 0) || math.IsInf(s, 0) {
			return nil, errors.Errorf("sigma %d must be positive and finite, got %v", i, s)
		}
		precisions[i] = 1 / s
	}
	return &Diagonal{sigmas: append([]float64(nil), sigmas...), precisions: precisions}, nil
}

// NewDiagonalVariances returns a model with the given variances.
func NewDiagonalVariances(variances []float64) (*Diagonal, error) {
	sigmas := make([]float64, len(variances))
	for i, v := range variances {
		sigmas[i] = math.Sqrt(v)
	}
	return NewDiagonal(sigmas)
}

// Dim returns the residual dimension.
func (d *Diagonal) Dim() int {
	return len(d.sigmas)
}

// Whiten divides each component by its sigma.
func (d *Diagonal) Whiten(v []float64) []float64 {
	if len(v) != len(d.precisions) {
		panic(NewDimensionError(len(d.precisions), len(v)))
	}
	out := make([]float64, len(v))
	floats.MulTo(out, v, d.precisions)
	return out
}

// WhitenMatrix scales row i of h by 1/sigma_i.
func (d *Diagonal) WhitenMatrix(h mat.Matrix) *mat.Dense {
	return scaleRows(h, d.precisions)
}

// Distance returns Σ (v_i/sigma_i)².
func (d *Diagonal) Distance(v []float64) float64 {
	return squaredNorm(d.Whiten(v))
}

// Sigmas returns a copy of the standard deviations.
func (d *Diagonal) Sigmas() []float64 {
	return append([]float64(nil), d.sigmas...)
}

// Equal compares sigmas. Isotropic and Unit models are equal to a Diagonal with the same sigmas.
func (d *Diagonal) Equal(other Model, tol float64) bool {
	return equalSigmas(d, other, tol)
}

func (d *Diagonal) String() string {
	return fmt.Sprintf("Diagonal sigmas=%v", d.sigmas)
}

// Isotropic is a diagonal model with one sigma for every component.
type Isotropic struct {
	Diagonal
}

// NewIsotropic returns a model of dimension dim with standard deviation sigma.
func NewIsotropic(dim int, sigma float64) (*Isotropic, error) {
	if dim <= 0 {
		return nil, errors.Errorf("isotropic noise model dimension must be positive, got %d", dim)
	}
	sigmas := make([]float64, dim)
	for i := range sigmas {
		sigmas[i] = sigma
	}
	diag, err := NewDiagonal(sigmas)
	if err != nil {
		return nil, err
	}
	return &Isotropic{*diag}, nil
}

// Sigma returns the shared standard deviation.
func (iso *Isotropic) Sigma() float64 {
	return iso.sigmas[0]
}

// Equal compares sigmas.
func (iso *Isotropic) Equal(other Model, tol float64) bool {
	return equalSigmas(iso, other, tol)
}

func (iso *Isotropic) String() string {
	return fmt.Sprintf("Isotropic dim=%d sigma=%v", iso.Dim(), iso.Sigma())
}

// Unit is the identity whitening transform.
type Unit struct {
	Isotropic
}

// NewUnit returns the unit model of dimension dim.
func NewUnit(dim int) (*Unit, error) {
	iso, err := NewIsotropic(dim, 1)
	if err != nil {
		return nil, err
	}
	return &Unit{*iso}, nil
}

// Whiten returns a copy of v.
func (u *Unit) Whiten(v []float64) []float64 {
	if len(v) != u.Dim() {
		panic(NewDimensionError(u.Dim(), len(v)))
	}
	return append([]float64(nil), v...)
}

// WhitenMatrix returns a copy of h.
func (u *Unit) WhitenMatrix(h mat.Matrix) *mat.Dense {
	return mat.DenseCopyOf(h)
}

// Distance returns ‖v‖².
func (u *Unit) Distance(v []float64) float64 {
	return squaredNorm(u.Whiten(v))
}

// Equal compares sigmas.
func (u *Unit) Equal(other Model, tol float64) bool {
	return equalSigmas(u, other, tol)
}

func (u *Unit) String() string {
	return fmt.Sprintf("Unit dim=%d", u.Dim())
}

// Constrained is a diagonal model where zero sigmas mark hard constraints. Constrained components
// are whitened with ConstrainedPrecision so they dominate elimination at their variable.
type Constrained struct {
	sigmas     []float64
	precisions []float64
}

// NewConstrained returns a model with the given sigmas, any of which may be zero.
func NewConstrained(sigmas []float64) (*Constrained, error) {
	if len(sigmas) == 0 {
		return nil, errors.New("constrained noise model needs at least one sigma")
	}
	precisions := make([]float64, len(sigmas))
	for i, s := range sigmas {
		switch {
		case s == 0:
			precisions[i] = ConstrainedPrecision
		case s > 0 && !math.IsInf(s, 0):
			precisions[i] = 1 / s
		default:
			return nil, errors.Errorf("sigma %d must be non-negative and finite, got %v", i, s)
		}
	}
	return &Constrained{sigmas: append([]float64(nil), sigmas...), precisions: precisions}, nil
}

// NewAllConstrained returns a model constraining every one of dim components.
func NewAllConstrained(dim int) (*Constrained, error) {
	if dim <= 0 {
		return nil, errors.Errorf("constrained noise model dimension must be positive, got %d", dim)
	}
	return NewConstrained(make([]float64, dim))
}

// Dim returns the residual dimension.
func (c *Constrained) Dim() int {
	return len(c.sigmas)
}

// IsConstrained reports whether component i is a hard constraint.
func (c *Constrained) IsConstrained(i int) bool {
	return c.sigmas[i] == 0
}

// Whiten scales each component by its precision.
func (c *Constrained) Whiten(v []float64) []float64 {
	if len(v) != len(c.precisions) {
		panic(NewDimensionError(len(c.precisions), len(v)))
	}
	out := make([]float64, len(v))
	floats.MulTo(out, v, c.precisions)
	return out
}

// WhitenMatrix scales row i of h by the precision of component i.
func (c *Constrained) WhitenMatrix(h mat.Matrix) *mat.Dense {
	return scaleRows(h, c.precisions)
}

// Distance returns the squared whitened norm.
func (c *Constrained) Distance(v []float64) float64 {
	return squaredNorm(c.Whiten(v))
}

// Sigmas returns a copy of the sigmas; constrained components are zero.
func (c *Constrained) Sigmas() []float64 {
	return append([]float64(nil), c.sigmas...)
}

// Equal compares sigmas against another constrained model.
func (c *Constrained) Equal(other Model, tol float64) bool {
	if _, ok := other.(*Constrained); !ok {
		return false
	}
	return floats.EqualApprox(c.sigmas, other.Sigmas(), tol)
}

func (c *Constrained) String() string {
	return fmt.Sprintf("Constrained sigmas=%v", c.sigmas)
}

func scaleRows(h mat.Matrix, scale []float64) *mat.Dense {
	rows, cols := h.Dims()
	if rows != len(scale) {
		panic(NewDimensionError(len(scale), rows))
	}
	out := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			out.Set(i, j, scale[i]*h.At(i, j))
		}
	}
	return out
}

type diagonalModel interface {
	Model
	diagonal() *Diagonal
}

func (d *Diagonal) diagonal() *Diagonal { return d }

func equalSigmas(self diagonalModel, other Model, tol float64) bool {
	o, ok := other.(diagonalModel)
	if !ok {
		return false
	}
	return floats.EqualApprox(self.Sigmas(), o.diagonal().Sigmas(), tol)
}
