package scoring_test

import (
	"testing"

	"github.com/fiora-labs/aura-backend/internal/scoring"
	"github.com/stretchr/testify/assert"
)

func uniform(v float64) scoring.Scores {
	return scoring.Scores{
		Moisture:   v,
		Damage:     v,
		Texture:    v,
		Frizz:      v,
		Shine:      v,
		Density:    v,
		Elasticity: v,
	}
}

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		name string
		raw  scoring.Scores
		want scoring.Scores
	}{
		{
			name: "inverts damage and frizz",
			raw:  scoring.Scores{Moisture: 80, Damage: 20, Texture: 60, Frizz: 30, Shine: 50, Density: 70, Elasticity: 40},
			want: scoring.Scores{Moisture: 80, Damage: 80, Texture: 60, Frizz: 70, Shine: 50, Density: 70, Elasticity: 40},
		},
		{
			name: "clamps out-of-domain input before inversion",
			raw:  scoring.Scores{Moisture: 150, Damage: -10, Texture: -1, Frizz: 200, Shine: 100, Density: 0, Elasticity: 101},
			want: scoring.Scores{Moisture: 100, Damage: 100, Texture: 0, Frizz: 0, Shine: 100, Density: 0, Elasticity: 100},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, scoring.Canonicalize(tt.raw))
		})
	}
}

func TestOverall_Bounds(t *testing.T) {
	for v := 0.0; v <= 100; v += 5 {
		got := scoring.Overall(uniform(v))
		assert.GreaterOrEqual(t, got, 0, "uniform %v", v)
		assert.LessOrEqual(t, got, 100, "uniform %v", v)
	}
}

func TestOverall_Extremes(t *testing.T) {
	assert.Equal(t, 100, scoring.Overall(uniform(100)))
	assert.Equal(t, 0, scoring.Overall(uniform(0)))
}

func TestOverall_Monotonic(t *testing.T) {
	base := scoring.Scores{Moisture: 50, Damage: 50, Texture: 50, Frizz: 50, Shine: 50, Density: 50, Elasticity: 50}
	baseScore := scoring.Overall(base)

	bumps := []func(s scoring.Scores) scoring.Scores{
		func(s scoring.Scores) scoring.Scores { s.Moisture += 20; return s },
		func(s scoring.Scores) scoring.Scores { s.Damage += 20; return s },
		func(s scoring.Scores) scoring.Scores { s.Texture += 20; return s },
		func(s scoring.Scores) scoring.Scores { s.Frizz += 20; return s },
		func(s scoring.Scores) scoring.Scores { s.Shine += 20; return s },
		func(s scoring.Scores) scoring.Scores { s.Density += 20; return s },
		func(s scoring.Scores) scoring.Scores { s.Elasticity += 20; return s },
	}

	for i, bump := range bumps {
		assert.GreaterOrEqual(t, scoring.Overall(bump(base)), baseScore, "dimension %d", i)
	}
}

func TestOverall_BoostAboveThreshold(t *testing.T) {
	// Uniform canonical input v yields a raw percent of exactly v, so 39
	// sits below the boost threshold and 41 above it. The output delta
	// must exceed the 2 points linear scaling alone would give.
	low := scoring.Overall(uniform(39))
	high := scoring.Overall(uniform(41))

	assert.Equal(t, 39, low)
	assert.Greater(t, high-low, 2)
}

func TestOverall_SecondBoostStage(t *testing.T) {
	// At uniform 75: first stage gives 75 + 17.5 = 92.5, second adds
	// 0.2 * 22.5 = 4.5, so 97.
	assert.Equal(t, 97, scoring.Overall(uniform(75)))
}

func TestOverallFromRaw(t *testing.T) {
	// Perfect raw report: damage/frizz at 0, everything else at 100.
	raw := scoring.Scores{Moisture: 100, Damage: 0, Texture: 100, Frizz: 0, Shine: 100, Density: 100, Elasticity: 100}
	assert.Equal(t, 100, scoring.OverallFromRaw(raw))

	// Worst raw report.
	worst := scoring.Scores{Moisture: 0, Damage: 100, Texture: 0, Frizz: 100, Shine: 0, Density: 0, Elasticity: 0}
	assert.Equal(t, 0, scoring.OverallFromRaw(worst))
}

func TestDisplayRing(t *testing.T) {
	tests := []struct {
		name string
		dim  scoring.Dimension
		raw  float64
		want int
	}{
		{"moisture passes through", scoring.Moisture, 72, 72},
		{"damage inverted", scoring.Damage, 30, 70},
		{"frizz inverted", scoring.Frizz, 90, 10},
		{"clamps above domain", scoring.Shine, 150, 100},
		{"clamps below domain", scoring.Texture, -20, 0},
		{"inverted clamp", scoring.Damage, 150, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, scoring.DisplayRing(tt.dim, tt.raw))
		})
	}
}

func TestDisplayStars(t *testing.T) {
	assert.Equal(t, 5.0, scoring.DisplayStars(scoring.Moisture, 100))
	assert.Equal(t, 2.5, scoring.DisplayStars(scoring.Shine, 50))
	assert.Equal(t, 4.0, scoring.DisplayStars(scoring.Damage, 20))
	assert.Equal(t, 0.0, scoring.DisplayStars(scoring.Frizz, 100))
}
