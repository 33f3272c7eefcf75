// Package services holds pure domain algorithms that do not touch state.
package services

import (
	"time"

	"github.com/BajKull/Valks-backend/domain/core/entities"
)

// Score weights for the featured category rotation
const (
	MessageWeight   = 1
	AuthorWeight    = 10
	OnlineWeight    = 25
	SelectionWeight = 250

	ActivityWindow = 24 * time.Hour
)

// CategoryActivity is the input of the score for one Public room
type CategoryActivity struct {
	Category      string
	Messages      int
	Authors       int
	OnlineMembers int
	TimesSelected int
}

// CategoryScore pairs a category with its computed score
type CategoryScore struct {
	Category string
	Score    int
}

// ActivityOf measures a Public room as of now. usage is the list of
// past selection times of the room's category.
func ActivityOf(room *entities.Room, usage []time.Time, now time.Time) CategoryActivity {
	since := now.Add(-ActivityWindow)
	authors := make(map[string]struct{})
	messages := 0
	for _, msg := range room.Messages {
		if !msg.Timestamp.After(since) {
			continue
		}
		messages++
		authors[msg.AuthorEmail] = struct{}{}
	}
	return CategoryActivity{
		Category:      room.Category,
		Messages:      messages,
		Authors:       len(authors),
		OnlineMembers: len(room.Members),
		TimesSelected: len(usage),
	}
}

// Score computes the rotation score. Lower means the category deserves
// more exposure.
func Score(a CategoryActivity) int {
	return a.Messages*MessageWeight +
		a.Authors*AuthorWeight +
		a.OnlineMembers*OnlineWeight +
		a.TimesSelected*SelectionWeight
}

// LowestScoring returns every entry sharing the minimum score, in input order
func LowestScoring(scores []CategoryScore) []CategoryScore {
	var lowest []CategoryScore
	for _, s := range scores {
		switch {
		case len(lowest) == 0 || s.Score < lowest[0].Score:
			lowest = []CategoryScore{s}
		case s.Score == lowest[0].Score:
			lowest = append(lowest, s)
		}
	}
	return lowest
}

// PickCategory scores every activity and picks one of the lowest scoring
// categories using intN, which must return a value in [0, n).
// Returns false when activities is empty.
func PickCategory(activities []CategoryActivity, intN func(n int) int) (CategoryScore, bool) {
	if len(activities) == 0 {
		return CategoryScore{}, false
	}
	scores := make([]CategoryScore, 0, len(activities))
	for _, a := range activities {
		scores = append(scores, CategoryScore{Category: a.Category, Score: Score(a)})
	}
	ties := LowestScoring(scores)
	return ties[intN(len(ties))], true
}
