package vertex

import "fmt"

// Default clustering parameters, tuned for primary-vertex finding on
// pixel-track batches of a few thousand tracks.
const (
	// DefaultEps is the default neighbourhood radius in cm.
	DefaultEps = 0.07
	// DefaultMinCore is the default neighbour count for core eligibility.
	DefaultMinCore = 2
	// DefaultErrMax is the default per-track error bound (cm) for a track
	// to take part in neighbour counting at all.
	DefaultErrMax = 0.01
	// DefaultChi2Max is the default normalised-distance gate applied when
	// attaching edge tracks to a core root.
	DefaultChi2Max = 9.0

	// MaxEps is the largest neighbourhood radius the binning scheme
	// supports: with binScale=10 a bin covers 0.1 cm of z, and neighbour
	// scans only reach one bin either side, so eps beyond 0.1 would miss
	// true neighbours.
	MaxEps = 0.1
)

// Params holds the clustering parameters for one Clusterer.
type Params struct {
	MinCore int     `json:"min_core_neighbours"` // min neighbours within Eps for a track to be "core"
	Eps     float32 `json:"eps"`                 // max absolute z distance to cluster (cm)
	ErrMax  float32 `json:"max_seed_error"`      // max track error to take part in counting (cm)
	Chi2Max float32 `json:"chi2_max"`            // max normalised distance for edge attachment
}

// DefaultParams returns the production-default clustering parameters.
func DefaultParams() Params {
	return Params{
		MinCore: DefaultMinCore,
		Eps:     DefaultEps,
		ErrMax:  DefaultErrMax,
		Chi2Max: DefaultChi2Max,
	}
}

// validate panics on parameter values the kernel cannot honour. Parameter
// misconfiguration is a deployment defect, not a runtime condition.
func (p Params) validate() {
	if p.Eps <= 0 || p.Eps > MaxEps {
		panic(fmt.Sprintf("vertex: eps %v outside (0, %v]; the bin width bounds the usable radius", p.Eps, float32(MaxEps)))
	}
	if p.MinCore < 0 {
		panic(fmt.Sprintf("vertex: negative minCore %d", p.MinCore))
	}
}
