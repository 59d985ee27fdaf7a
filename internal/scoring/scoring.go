// Package scoring collapses the seven hair sub-scores into the single
// overall score shown on the dashboard, and normalizes individual
// sub-scores for display.
//
// Canonical convention: every sub-score is a float on [0,100] and higher
// is better at the point of aggregation. Damage and frizz arrive from the
// model as higher-is-worse and must be inverted exactly once, by
// Canonicalize, before Overall sees them. Display normalization is a
// separate step and performs its own inversion against the raw stored
// value; feeding canonical values to the display helpers double-inverts.
package scoring

import "math"

// Scores holds the seven sub-scores of one analysis.
type Scores struct {
	Moisture   float64
	Damage     float64
	Texture    float64
	Frizz      float64
	Shine      float64
	Density    float64
	Elasticity float64
}

// Dimension names a sub-score field.
type Dimension string

const (
	Moisture   Dimension = "moisture"
	Damage     Dimension = "damage"
	Texture    Dimension = "texture"
	Frizz      Dimension = "frizz"
	Shine      Dimension = "shine"
	Density    Dimension = "density"
	Elasticity Dimension = "elasticity"
)

// Aggregation weights per dimension. They do not need to sum to 1.
const (
	weightMoisture   = 1.2
	weightDamage     = 1.3
	weightTexture    = 1.0
	weightFrizz      = 0.8
	weightShine      = 0.7
	weightDensity    = 0.9
	weightElasticity = 1.1
)

const boostLowThreshold = 40.0
const boostHighThreshold = 70.0

// inverted reports whether a dimension is naturally higher-is-worse.
func inverted(d Dimension) bool {
	return d == Damage || d == Frizz
}

// Canonicalize clamps every sub-score to [0,100] and inverts the
// higher-is-worse dimensions so that the result is uniformly
// higher-is-better. Out-of-domain inputs are clamped, not rejected.
func Canonicalize(raw Scores) Scores {
	return Scores{
		Moisture:   clamp100(raw.Moisture),
		Damage:     100 - clamp100(raw.Damage),
		Texture:    clamp100(raw.Texture),
		Frizz:      100 - clamp100(raw.Frizz),
		Shine:      clamp100(raw.Shine),
		Density:    clamp100(raw.Density),
		Elasticity: clamp100(raw.Elasticity),
	}
}

// Overall computes the weighted overall score from canonical sub-scores.
// The result is an integer on [0,100], monotonic non-decreasing in every
// input. All-100 input maps to 100 and all-zero input maps to 0.
func Overall(c Scores) int {
	weightedSum := c.Moisture*weightMoisture +
		c.Damage*weightDamage +
		c.Texture*weightTexture +
		c.Frizz*weightFrizz +
		c.Shine*weightShine +
		c.Density*weightDensity +
		c.Elasticity*weightElasticity

	totalWeight := weightMoisture + weightDamage + weightTexture +
		weightFrizz + weightShine + weightDensity + weightElasticity

	rawPercent := 100 * weightedSum / (100 * totalWeight)

	// Convexity boost: already-good results are pushed further up so the
	// displayed score separates good hair from average hair more than the
	// linear average would.
	boosted := rawPercent
	if boosted > boostLowThreshold {
		boosted += 0.5 * (boosted - boostLowThreshold)
	}
	if boosted > boostHighThreshold {
		boosted += 0.2 * (boosted - boostHighThreshold)
	}

	score := int(math.Round(boosted))
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score
}

// OverallFromRaw is the common path: clamp and invert the raw model
// output, then aggregate.
func OverallFromRaw(raw Scores) int {
	return Overall(Canonicalize(raw))
}

// DisplayRing maps a stored raw sub-score to the 0-100 ring value the
// client renders, inverting the higher-is-worse dimensions.
func DisplayRing(d Dimension, raw float64) int {
	v := clamp100(raw)
	if inverted(d) {
		v = 100 - v
	}
	return int(math.Round(v))
}

// DisplayStars maps a stored raw sub-score to a 0-5 star rating using the
// same inversion rule as DisplayRing.
func DisplayStars(d Dimension, raw float64) float64 {
	v := clamp100(raw)
	if inverted(d) {
		v = 100 - v
	}
	return math.Round(v/20*10) / 10
}

func clamp100(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
