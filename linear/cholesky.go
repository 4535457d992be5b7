package linear

import (
	"gonum.org/v1/gonum/mat"

	"go.viam.com/factorgraph/inference"
)

// hessianFactor is the information form ½δᵀΛδ − δᵀη of a linear factor, with Λ and η laid out
// over keys in order.
type hessianFactor struct {
	keys    []inference.Key
	offsets []int
	info    *mat.SymDense
	eta     *mat.VecDense
}

func (hf *hessianFactor) Keys() []inference.Key {
	return hf.keys
}

func newHessianFactor(jf *JacobianFactor) *hessianFactor {
	offsets := make([]int, len(jf.keys))
	n := 0
	for i, block := range jf.blocks {
		offsets[i] = n
		_, c := block.Dims()
		n += c
	}
	a := mat.NewDense(jf.Rows(), n, nil)
	for i, block := range jf.blocks {
		_, c := block.Dims()
		a.Slice(0, jf.Rows(), offsets[i], offsets[i]+c).(*mat.Dense).Copy(block)
	}
	info := mat.NewSymDense(n, nil)
	info.SymOuterK(1, a.T())
	eta := mat.NewVecDense(n, nil)
	eta.MulVec(a.T(), jf.b)
	return &hessianFactor{keys: jf.keys, offsets: offsets, info: info, eta: eta}
}

func eliminateCholesky(rankTol float64) eliminateFunc[*hessianFactor] {
	return func(
		frontal inference.Key,
		separator []inference.Key,
		factors []*hessianFactor,
		dims map[inference.Key]int,
	) (*GaussianConditional, *hessianFactor, bool, error) {
		offsets, n := blockLayout(frontal, separator, dims)

		// sum every factor into one information matrix over [frontal, separator].
		info := mat.NewSymDense(n, nil)
		eta := mat.NewVecDense(n, nil)
		for _, f := range factors {
			for a, ka := range f.keys {
				da := dims[ka]
				for i := 0; i < da; i++ {
					eta.SetVec(offsets[ka]+i, eta.AtVec(offsets[ka]+i)+f.eta.AtVec(f.offsets[a]+i))
					for b, kb := range f.keys {
						db := dims[kb]
						for j := 0; j < db; j++ {
							gi, gj := offsets[ka]+i, offsets[kb]+j
							if gi > gj {
								continue
							}
							info.SetSym(gi, gj, info.At(gi, gj)+f.info.At(f.offsets[a]+i, f.offsets[b]+j))
						}
					}
				}
			}
		}

		dj := dims[frontal]
		var chol mat.Cholesky
		if ok := chol.Factorize(info.SliceSym(0, dj)); !ok {
			return nil, nil, false, NewDegenerateSystemError(frontal, 0)
		}
		var u mat.TriDense
		chol.UTo(&u)
		for i := 0; i < dj; i++ {
			if pivot := u.At(i, i); degeneratePivot(pivot, rankTol) {
				return nil, nil, false, NewDegenerateSystemError(frontal, pivot)
			}
		}
		var uInv mat.TriDense
		if err := uInv.InverseTri(&u); err != nil {
			return nil, nil, false, NewDegenerateSystemError(frontal, 0)
		}

		// R = U, S = U⁻ᵀ·Λ_jS, d = U⁻ᵀ·η_j.
		d := mat.NewVecDense(dj, nil)
		d.MulVec(uInv.T(), eta.SliceVec(0, dj))
		if len(separator) == 0 {
			return newGaussianConditional(frontal, separator, &u, nil, d), nil, false, nil
		}

		frontalRows := mat.NewDense(dj, n, nil)
		for i := 0; i < dj; i++ {
			for j := 0; j < n; j++ {
				frontalRows.Set(i, j, info.At(i, j))
			}
		}
		var sAll mat.Dense
		sAll.Mul(uInv.T(), frontalRows)
		s := make([]*mat.Dense, len(separator))
		for i, k := range separator {
			s[i] = mat.DenseCopyOf(sAll.Slice(0, dj, offsets[k], offsets[k]+dims[k]))
		}
		conditional := newGaussianConditional(frontal, separator, &u, s, d)

		// Schur complement: Λ_SS − SᵀS and η_S − Sᵀd.
		sSep := sAll.Slice(0, dj, dj, n)
		reducedInfo := mat.NewSymDense(n-dj, nil)
		reducedInfo.SymRankK(info.SliceSym(dj, n), -1, sSep.T())
		reducedEta := mat.NewVecDense(n-dj, nil)
		reducedEta.MulVec(sSep.T(), d)
		reducedEta.SubVec(eta.SliceVec(dj, n), reducedEta)

		reducedOffsets := make([]int, len(separator))
		for i, k := range separator {
			reducedOffsets[i] = offsets[k] - dj
		}
		reduced := &hessianFactor{keys: separator, offsets: reducedOffsets, info: reducedInfo, eta: reducedEta}
		return conditional, reduced, true, nil
	}
}
