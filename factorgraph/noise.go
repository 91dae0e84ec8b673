package factorgraph

import "github.com/pkg/errors"

// Diagonal is a diagonal Gaussian noise model specified by per-dimension
// standard deviations. Whitening a residual scales each dimension by the
// inverse of its sigma, so tighter models contribute more to the objective.
type Diagonal struct {
	sigmas    []float64
	invSigmas []float64
}

// NewDiagonalNoise returns a noise model with the given per-dimension standard
// deviations, all of which must be positive.
func NewDiagonalNoise(sigmas ...float64) (*Diagonal, error) {
	if len(sigmas) == 0 {
		return nil, errors.New("noise model needs at least one dimension")
	}
	inv := make([]float64, len(sigmas))
	for i, s := range sigmas {
		if s <= 0 {
			return nil, errors.Errorf("sigma must be positive, got %v at dimension %d", s, i)
		}
		inv[i] = 1 / s
	}
	return &Diagonal{sigmas: sigmas, invSigmas: inv}, nil
}

// NewIsotropicNoise returns a diagonal noise model with the same standard
// deviation in every dimension.
func NewIsotropicNoise(dim int, sigma float64) (*Diagonal, error) {
	if dim <= 0 {
		return nil, errors.Errorf("noise model dimension must be positive, got %d", dim)
	}
	sigmas := make([]float64, dim)
	for i := range sigmas {
		sigmas[i] = sigma
	}
	return NewDiagonalNoise(sigmas...)
}

// Dim returns the dimension of the noise model.
func (d *Diagonal) Dim() int {
	return len(d.sigmas)
}

// Sigmas returns a copy of the per-dimension standard deviations.
func (d *Diagonal) Sigmas() []float64 {
	out := make([]float64, len(d.sigmas))
	copy(out, d.sigmas)
	return out
}

// Whiten scales the residual in place by the inverse sigmas and returns it.
// The residual length must match the model dimension.
func (d *Diagonal) Whiten(residual []float64) []float64 {
	for i := range residual {
		residual[i] *= d.invSigmas[i]
	}
	return residual
}
