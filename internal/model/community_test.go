package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRankFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		points int
		want   string
	}{
		{-3, RankNewcomer},
		{0, RankNewcomer},
		{49, RankNewcomer},
		{50, RankFinder},
		{199, RankFinder},
		{200, RankExpert},
		{499, RankExpert},
		{500, RankTopFinder},
		{10000, RankTopFinder},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RankFor(tt.points), "points=%d", tt.points)
	}
}

func TestPayoutStatus_CanTransition(t *testing.T) {
	t.Parallel()

	assert.True(t, PayoutPending.CanTransition(PayoutProcessing))
	assert.True(t, PayoutPending.CanTransition(PayoutFailed))
	assert.True(t, PayoutProcessing.CanTransition(PayoutCompleted))
	assert.True(t, PayoutProcessing.CanTransition(PayoutFailed))

	assert.False(t, PayoutPending.CanTransition(PayoutCompleted))
	assert.False(t, PayoutCompleted.CanTransition(PayoutFailed))
	assert.False(t, PayoutFailed.CanTransition(PayoutPending))
	assert.False(t, PayoutProcessing.CanTransition(PayoutPending))
}

func TestPayoutStatus_Open(t *testing.T) {
	t.Parallel()

	assert.True(t, PayoutPending.Open())
	assert.True(t, PayoutProcessing.Open())
	assert.False(t, PayoutCompleted.Open())
	assert.False(t, PayoutFailed.Open())
}

func TestComment_DisplayName(t *testing.T) {
	t.Parallel()

	c := &Comment{UserEmail: "anna.schmidt@example.de"}
	assert.Equal(t, "anna.schmidt", c.DisplayName())

	c.Username = "anna"
	assert.Equal(t, "anna", c.DisplayName())
}

func TestIndexStatus_Valid(t *testing.T) {
	t.Parallel()

	assert.True(t, IndexStatusIndex.Valid())
	assert.True(t, IndexStatusNoIndex.Valid())
	assert.False(t, IndexStatus("maybe").Valid())
}
