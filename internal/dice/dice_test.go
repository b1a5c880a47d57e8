package dice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/obscura/internal/errors"
)

func TestCryptoSourceRange(t *testing.T) {
	src := NewCryptoSource()
	seen := make(map[int]bool)
	for i := 0; i < 2000; i++ {
		v := src.RollUniform(1, 6)
		require.GreaterOrEqual(t, v, 1)
		require.LessOrEqual(t, v, 6)
		seen[v] = true
	}
	// 闭区间两端都应出现
	assert.True(t, seen[1])
	assert.True(t, seen[6])
	assert.Equal(t, 7, src.RollUniform(7, 7))
	assert.Equal(t, 9, src.RollUniform(9, 3))
}

func TestSeededSourceReproducible(t *testing.T) {
	a := NewSeededSource(42)
	b := NewSeededSource(42)
	for i := 0; i < 50; i++ {
		assert.Equal(t, a.RollUniform(1, 100), b.RollUniform(1, 100))
	}

	first := make([]int, 5)
	a.Seed(7)
	for i := range first {
		first[i] = a.RollUniform(1, 100)
	}
	a.Seed(7)
	for i := range first {
		assert.Equal(t, first[i], a.RollUniform(1, 100))
	}
}

func TestSequenceSource(t *testing.T) {
	src := NewSequenceSource(3, 99, 1)
	assert.Equal(t, 3, src.RollUniform(1, 100))
	assert.Equal(t, 99, src.RollUniform(1, 100))
	assert.Equal(t, 1, src.RollUniform(1, 100))
	assert.Equal(t, 3, src.RollUniform(1, 100), "序列耗尽后循环")
	assert.Equal(t, 4, src.Calls())

	empty := NewSequenceSource()
	assert.Equal(t, 5, empty.RollUniform(5, 10))
}

func TestNewSeed(t *testing.T) {
	a, err := NewSeed()
	require.NoError(t, err)
	b, err := NewSeed()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestParseExpression(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		count int
		sides int
		ok    bool
	}{
		{"basic", "3d6", 3, 6, true},
		{"percentile", "1d100", 1, 100, true},
		{"trailing text kept", "2d10+5", 2, 10, true},
		{"whitespace", "  1d4 ", 1, 4, true},
		{"no match", "abc", 0, 0, false},
		{"uppercase not matched", "3D6", 0, 0, false},
		{"zero count", "0d6", 0, 0, false},
		{"zero sides", "2d0", 0, 0, false},
		{"too many dice", "101d6", 0, 0, false},
		{"too many sides", "1d1001", 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr, err := ParseExpression(tt.raw, DefaultLimits)
			if !tt.ok {
				require.Error(t, err)
				assert.True(t, errors.Is(err, errors.ErrInvalidDice))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.count, expr.Count)
			assert.Equal(t, tt.sides, expr.Sides)
		})
	}
}

func TestExpressionRoll(t *testing.T) {
	expr, err := ParseExpression("3d6", DefaultLimits)
	require.NoError(t, err)

	res := expr.Roll(NewSequenceSource(2, 4, 5))
	assert.Equal(t, []int{2, 4, 5}, res.Rolls)
	assert.Equal(t, 11, res.Total)
	assert.Equal(t, "3d6 굴림: 11 (2, 4, 5)", res.Text())
}

func TestInvalidText(t *testing.T) {
	assert.Equal(t, "잘못된 주사위: xyz", InvalidText("xyz"))
}
