package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BajKull/Valks-backend/domain/core/entities"
)

func TestScore_Weights(t *testing.T) {
	score := Score(CategoryActivity{Messages: 3, Authors: 2, OnlineMembers: 1, TimesSelected: 1})
	assert.Equal(t, 3+20+25+250, score)
}

func TestActivityOf_CountsOnlyLastDay(t *testing.T) {
	// Arrange
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	room := entities.NewPublicRoom("Music")
	room.Members = []string{"a@x.io", "b@x.io"}
	room.Messages = []entities.Message{
		{AuthorEmail: "a@x.io", Timestamp: now.Add(-time.Hour)},
		{AuthorEmail: "a@x.io", Timestamp: now.Add(-2 * time.Hour)},
		{AuthorEmail: "c@x.io", Timestamp: now.Add(-23 * time.Hour)},
		{AuthorEmail: "d@x.io", Timestamp: now.Add(-25 * time.Hour)},
	}
	usage := []time.Time{now.Add(-48 * time.Hour)}

	// Act
	activity := ActivityOf(room, usage, now)

	// Assert
	assert.Equal(t, CategoryActivity{
		Category:      "Music",
		Messages:      3,
		Authors:       2,
		OnlineMembers: 2,
		TimesSelected: 1,
	}, activity)
}

func TestLowestScoring_KeepsTies(t *testing.T) {
	scores := []CategoryScore{{"A", 10}, {"B", 10}, {"C", 50}}

	lowest := LowestScoring(scores)

	assert.Equal(t, []CategoryScore{{"A", 10}, {"B", 10}}, lowest)
}

func TestLowestScoring_Empty(t *testing.T) {
	assert.Empty(t, LowestScoring(nil))
}

func TestPickCategory_NeverPicksHigherScore(t *testing.T) {
	activities := []CategoryActivity{
		{Category: "A", Messages: 10},
		{Category: "B", Messages: 10},
		{Category: "C", Messages: 50},
	}

	for i := 0; i < 2; i++ {
		picked, ok := PickCategory(activities, func(n int) int {
			require.Equal(t, 2, n)
			return i
		})
		require.True(t, ok)
		assert.Contains(t, []string{"A", "B"}, picked.Category)
		assert.Equal(t, 10, picked.Score)
	}
}

func TestPickCategory_SelectionPenalty(t *testing.T) {
	// A was picked once, so it scores 10 + 250 and B is now the only minimum.
	activities := []CategoryActivity{
		{Category: "A", Messages: 10, TimesSelected: 1},
		{Category: "B", Messages: 10},
		{Category: "C", Messages: 50},
	}

	picked, ok := PickCategory(activities, func(n int) int { return n - 1 })

	require.True(t, ok)
	assert.Equal(t, "B", picked.Category)
}

func TestPickCategory_NoRooms(t *testing.T) {
	_, ok := PickCategory(nil, func(int) int { return 0 })
	assert.False(t, ok)
}
