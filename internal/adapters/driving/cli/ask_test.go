package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sous/internal/core/domain"
)

func soupTurn() *domain.TurnResult {
	return &domain.TurnResult{
		Intent:         domain.IntentDetail,
		RewrittenQuery: "tomato soup",
		Filter:         &domain.SearchFilter{Categories: []string{"soup"}, Difficulties: []string{"easy"}},
		Parents: []domain.ParentDocument{
			{
				DocumentID:     "doc-1",
				SourceLocation: "recipes/alice/soup/tomato.md",
				Title:          "Tomato Soup",
				Metadata:       domain.FragmentMetadata{DishName: "Tomato soup", Category: "soup", Difficulty: "easy"},
				Hits:           2,
			},
			{DocumentID: "doc-2", SourceLocation: "recipes/alice/bread.md"},
		},
		Answer: "Simmer for 20 minutes.",
	}
}

func TestAsk_PrintsAnswer(t *testing.T) {
	chat := &mockChat{result: soupTurn()}
	setupTestServices(t, &Services{Chat: chat})

	out, err := execute(t, "ask", "alice", "how", "do", "I", "make", "tomato", "soup")
	require.NoError(t, err)

	assert.Equal(t, "alice", chat.owner)
	assert.Equal(t, "how do I make tomato soup", chat.query)
	assert.Contains(t, out, "Simmer for 20 minutes.")
	assert.NotContains(t, out, "Sources:")
}

func TestAsk_Sources(t *testing.T) {
	setupTestServices(t, &Services{Chat: &mockChat{result: soupTurn()}})

	out, err := execute(t, "ask", "alice", "tomato soup", "--sources")
	require.NoError(t, err)

	assert.Contains(t, out, "Sources:")
	assert.Contains(t, out, "1. Tomato soup (recipes/alice/soup/tomato.md)")
	assert.Contains(t, out, "2. recipes/alice/bread.md (recipes/alice/bread.md)")
}

func TestAsk_JSON(t *testing.T) {
	setupTestServices(t, &Services{Chat: &mockChat{result: soupTurn()}})

	out, err := execute(t, "ask", "alice", "tomato soup", "--json")
	require.NoError(t, err)

	var got askResult
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "detail", got.Intent)
	assert.Equal(t, "tomato soup", got.Query)
	require.Len(t, got.Sources, 2)
	assert.Equal(t, "doc-1", got.Sources[0].DocumentID)
	assert.Equal(t, 2, got.Sources[0].Hits)
	require.NotNil(t, got.Filter)
	assert.Equal(t, []string{"soup"}, got.Filter.Categories)
}

func TestAsk_Error(t *testing.T) {
	setupTestServices(t, &Services{Chat: &mockChat{err: domain.ErrRetrievalFailed}})

	_, err := execute(t, "ask", "alice", "soup")
	assert.ErrorIs(t, err, domain.ErrRetrievalFailed)
}

func TestAsk_RequiresQuery(t *testing.T) {
	setupTestServices(t, &Services{Chat: &mockChat{result: soupTurn()}})

	_, err := execute(t, "ask", "alice")
	assert.Error(t, err)
}
