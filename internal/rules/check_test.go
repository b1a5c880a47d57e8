package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/wfunc/obscura/internal/dice"
)

func TestClassifyRoll(t *testing.T) {
	tests := []struct {
		name  string
		skill int
		roll  int
		want  Tier
	}{
		{"one is critical", 50, 1, TierCritical},
		{"one is critical at zero skill", 0, 1, TierCritical},
		{"extreme", 50, 10, TierExtreme},
		{"extreme boundary", 50, 11, TierHard},
		{"hard", 50, 25, TierHard},
		{"regular", 50, 50, TierRegular},
		{"failure", 50, 51, TierFailure},
		{"fumble", 50, 96, TierFumble},
		{"fumble at 100", 50, 100, TierFumble},
		{"high skill beats fumble", 98, 97, TierRegular},
		{"high skill fails above value", 96, 97, TierFumble},
		{"zero skill failure", 0, 2, TierFailure},
		{"negative skill", -10, 50, TierFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyRoll(tt.skill, tt.roll))
		})
	}
}

func TestClassifyRollProperties(t *testing.T) {
	for skill := 0; skill <= 100; skill++ {
		assert.Equal(t, TierCritical, ClassifyRoll(skill, 1), "skill=%d", skill)

		for roll := 2; roll <= 100; roll++ {
			tier := ClassifyRoll(skill, roll)
			if roll <= skill/5 {
				assert.Equal(t, TierExtreme, tier, "skill=%d roll=%d", skill, roll)
			}
			if skill >= 96 && roll <= skill {
				assert.True(t, tier.IsSuccess(), "skill=%d roll=%d", skill, roll)
				assert.NotEqual(t, TierFumble, tier)
			}
		}
	}
}

func TestTierPresentation(t *testing.T) {
	tests := []struct {
		tier      Tier
		label     string
		class     string
		collapsed string
	}{
		{TierCritical, "대성공", "success-critical", "success"},
		{TierExtreme, "극단적 성공", "success-extreme", "success"},
		{TierHard, "어려운 성공", "success-hard", "success"},
		{TierRegular, "성공", "success-regular", "success"},
		{TierFumble, "대실패", "fumble", "fumble"},
		{TierFailure, "실패", "failure", "failure"},
	}

	for _, tt := range tests {
		t.Run(string(tt.tier), func(t *testing.T) {
			assert.Equal(t, tt.label, tt.tier.Label())
			assert.Equal(t, tt.class, tt.tier.Class())
			assert.Equal(t, tt.collapsed, tt.tier.Collapsed())
		})
	}
}

func TestResolveCheck(t *testing.T) {
	c := ResolveCheck(65, 13)
	assert.Equal(t, 65, c.SkillValue)
	assert.Equal(t, 32, c.HardValue)
	assert.Equal(t, 13, c.ExtremeValue)
	assert.Equal(t, TierExtreme, c.Tier)
	assert.Equal(t, "극단적 성공", c.Text())
	assert.Equal(t, "success-extreme", c.Class())
}

func TestRollCheckUsesOneDraw(t *testing.T) {
	src := dice.NewSequenceSource(42, 7)
	c := RollCheck(src, 50)
	assert.Equal(t, 42, c.Roll)
	assert.Equal(t, TierRegular, c.Tier)
	assert.Equal(t, 1, src.Calls())
}
