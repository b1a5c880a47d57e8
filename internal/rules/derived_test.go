package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDamageBonusAndBuild(t *testing.T) {
	tests := []struct {
		name  string
		str   int
		siz   int
		db    string
		build int
	}{
		{"64 lower edge", 32, 32, "-2", -2},
		{"65", 30, 35, "-1", -1},
		{"84", 40, 44, "-1", -1},
		{"85", 40, 45, "0", 0},
		{"124", 60, 64, "0", 0},
		{"125", 60, 65, "1d4", 1},
		{"160", 80, 80, "1d4", 1},
		{"164", 80, 84, "1d4", 1},
		{"165", 80, 85, "1d6", 2},
		{"204", 100, 104, "1d6", 2},
		{"205", 100, 105, "2d6", 3},
		{"220", 110, 110, "2d6", 3},
		{"284", 140, 144, "2d6", 3},
		{"285", 140, 145, "3d6", 4},
		{"zero", 0, 0, "-2", -2},
		{"negative", -10, -10, "-2", -2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, build := DamageBonusAndBuild(tt.str, tt.siz)
			assert.Equal(t, tt.db, db)
			assert.Equal(t, tt.build, build)
		})
	}
}

func TestBuildMonotonic(t *testing.T) {
	_, prev := DamageBonusAndBuild(0, -100)
	for total := -99; total <= 600; total++ {
		_, build := DamageBonusAndBuild(total, 0)
		assert.GreaterOrEqual(t, build, prev, "total=%d", total)
		prev = build
	}
}

func TestMovementRate(t *testing.T) {
	tests := []struct {
		name string
		dex  int
		str  int
		siz  int
		age  int
		want int
	}{
		{"mixed keeps base", 60, 40, 50, 25, 8},
		{"both greater with all age thresholds", 70, 70, 50, 82, 4},
		{"both smaller", 40, 40, 60, 20, 7},
		{"tie with size keeps base", 50, 70, 50, 20, 8},
		{"all equal", 50, 50, 50, 30, 8},
		{"age 40", 70, 70, 50, 40, 8},
		{"age 59", 70, 70, 50, 59, 7},
		{"age 85 from seven", 40, 40, 60, 85, 2},
		{"beyond last threshold", 40, 40, 60, 200, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MovementRate(tt.dex, tt.str, tt.siz, tt.age))
		})
	}
}

func TestCalculateIdempotent(t *testing.T) {
	in := Inputs{STR: 110, SIZ: 110, DEX: 40, Age: 63}
	first := Calculate(in)
	second := Calculate(in)
	assert.Equal(t, first, second)
	assert.Equal(t, Derived{DamageBonus: "2d6", Build: 3, Movement: 5}, first)
}

func TestComputeCeilings(t *testing.T) {
	c := ComputeCeilings(55, 65, 60, 4)
	assert.Equal(t, 12, c.MaxHP)
	assert.Equal(t, 12, c.MaxMP)
	assert.Equal(t, 95, c.MaxSAN)
	assert.Equal(t, 6, c.MajorWoundThreshold)

	neg := ComputeCeilings(-15, 0, -1, 0)
	assert.Equal(t, -2, neg.MaxHP)
	assert.Equal(t, -1, neg.MaxMP)
	assert.Equal(t, -1, neg.MajorWoundThreshold)
}

func TestFloorDiv(t *testing.T) {
	assert.Equal(t, 31, floorDiv(63, 2))
	assert.Equal(t, -4, floorDiv(-7, 2))
	assert.Equal(t, -3, floorDiv(-6, 2))
	assert.Equal(t, 0, floorDiv(4, 5))
}
