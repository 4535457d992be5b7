package linear

import (
	"gonum.org/v1/gonum/mat"

	"go.viam.com/factorgraph/inference"
)

func eliminateQR(rankTol float64) eliminateFunc[*JacobianFactor] {
	return func(
		frontal inference.Key,
		separator []inference.Key,
		factors []*JacobianFactor,
		dims map[inference.Key]int,
	) (*GaussianConditional, *JacobianFactor, bool, error) {
		offsets, n := blockLayout(frontal, separator, dims)
		m := 0
		for _, f := range factors {
			m += f.Rows()
		}

		// [A_j | A_S | b], padded with zero rows so QR sees at least as many rows as columns.
		rows := max(m, n+1)
		ab := mat.NewDense(rows, n+1, nil)
		row := 0
		for _, f := range factors {
			for i, k := range f.keys {
				r, c := f.blocks[i].Dims()
				ab.Slice(row, row+r, offsets[k], offsets[k]+c).(*mat.Dense).Copy(f.blocks[i])
			}
			for i := 0; i < f.Rows(); i++ {
				ab.Set(row+i, n, f.b.AtVec(i))
			}
			row += f.Rows()
		}

		var qr mat.QR
		qr.Factorize(ab)
		var r mat.Dense
		qr.RTo(&r)

		dj := dims[frontal]
		for i := 0; i < dj; i++ {
			if pivot := r.At(i, i); degeneratePivot(pivot, rankTol) {
				return nil, nil, false, NewDegenerateSystemError(frontal, pivot)
			}
		}

		rjj := mat.NewTriDense(dj, mat.Upper, nil)
		for i := 0; i < dj; i++ {
			for j := i; j < dj; j++ {
				rjj.SetTri(i, j, r.At(i, j))
			}
		}
		s := make([]*mat.Dense, len(separator))
		for i, k := range separator {
			s[i] = mat.DenseCopyOf(r.Slice(0, dj, offsets[k], offsets[k]+dims[k]))
		}
		d := mat.VecDenseCopyOf(r.Slice(0, dj, n, n+1).(*mat.Dense).ColView(0))
		conditional := newGaussianConditional(frontal, separator, rjj, s, d)

		// rows of R below the frontal block that still constrain the separator.
		reducedRows := min(m, n) - dj
		if len(separator) == 0 || reducedRows <= 0 {
			return conditional, nil, false, nil
		}
		blocks := make([]*mat.Dense, len(separator))
		for i, k := range separator {
			blocks[i] = mat.DenseCopyOf(r.Slice(dj, dj+reducedRows, offsets[k], offsets[k]+dims[k]))
		}
		b := mat.VecDenseCopyOf(r.Slice(dj, dj+reducedRows, n, n+1).(*mat.Dense).ColView(0))
		reduced := &JacobianFactor{keys: separator, blocks: blocks, b: b}
		return conditional, reduced, true, nil
	}
}
