package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelFor(t *testing.T) {
	tests := []struct {
		score int
		want  TrustLevel
	}{
		{100, TrustLevelPlatinum},
		{90, TrustLevelPlatinum},
		{89, TrustLevelGold},
		{75, TrustLevelGold},
		{74, TrustLevelSilver},
		{60, TrustLevelSilver},
		{59, TrustLevelBronze},
		{40, TrustLevelBronze},
		{39, TrustLevelUnverified},
		{0, TrustLevelUnverified},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LevelFor(tt.score), "score %d", tt.score)
	}
}

func TestExperienceYears(t *testing.T) {
	assert.InDelta(t, 0.0, ExperienceYears(0), 1e-9)
	assert.InDelta(t, 4.5, ExperienceYears(3), 1e-9)
}
