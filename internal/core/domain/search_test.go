package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseIntent(t *testing.T) {
	tests := []struct {
		in   string
		want Intent
	}{
		{"list", IntentList},
		{" LIST ", IntentList},
		{"detail", IntentDetail},
		{"general", IntentGeneral},
		{"recipe", IntentGeneral},
		{"", IntentGeneral},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseIntent(tt.in))
		})
	}
}

func TestSearchFilter_Matches(t *testing.T) {
	filter := &SearchFilter{
		Categories:   []string{"meat_dish", "soup"},
		Difficulties: []string{"easy"},
	}

	assert.True(t, filter.Matches(FragmentMetadata{Category: "soup", Difficulty: "easy"}))
	assert.False(t, filter.Matches(FragmentMetadata{Category: "soup", Difficulty: "medium"}))
	assert.False(t, filter.Matches(FragmentMetadata{Category: "dessert", Difficulty: "easy"}))
}

func TestSearchFilter_NilMatchesAll(t *testing.T) {
	var filter *SearchFilter
	assert.True(t, filter.Matches(FragmentMetadata{Category: "anything"}))
}
