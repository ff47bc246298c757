package mcp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sous/internal/core/domain"
)

func TestServer_handleAsk(t *testing.T) {
	ctx := context.Background()

	t.Run("returns answer and sources", func(t *testing.T) {
		chat := &mockChatService{
			result: &domain.TurnResult{
				Intent:         domain.IntentDetail,
				RewrittenQuery: "how do I make tomato soup",
				Answer:         "Simmer the tomatoes.",
				Parents: []domain.ParentDocument{{
					DocumentID:     "doc-1",
					SourceLocation: "minio://recipes/alice/soup/tomato.md",
					Title:          "Tomato Soup",
					Metadata:       domain.FragmentMetadata{Category: "soup", Difficulty: "easy"},
					Hits:           2,
				}},
			},
		}
		server, err := NewServer(&Ports{Chat: chat})
		require.NoError(t, err)

		_, output, err := server.handleAsk(ctx, nil, AskInput{Owner: " alice ", Query: "tomato soup?"})
		require.NoError(t, err)

		assert.Equal(t, "alice", chat.gotOwner)
		assert.Equal(t, "tomato soup?", chat.gotQuery)
		assert.Equal(t, "detail", output.Intent)
		assert.Equal(t, "Simmer the tomatoes.", output.Answer)
		require.Len(t, output.Sources, 1)
		assert.Equal(t, SourceOutput{
			DocumentID: "doc-1",
			Title:      "Tomato Soup",
			Location:   "minio://recipes/alice/soup/tomato.md",
			Category:   "soup",
			Difficulty: "easy",
			Hits:       2,
		}, output.Sources[0])
	})

	t.Run("returns error on chat failure", func(t *testing.T) {
		chat := &mockChatService{err: domain.ErrRetrievalFailed}
		server, err := NewServer(&Ports{Chat: chat})
		require.NoError(t, err)

		_, _, err = server.handleAsk(ctx, nil, AskInput{Owner: "alice", Query: "x"})
		assert.ErrorIs(t, err, domain.ErrRetrievalFailed)
	})
}

func TestServer_handleListDocuments(t *testing.T) {
	ctx := context.Background()

	t.Run("lists documents", func(t *testing.T) {
		docs := &mockDocumentService{
			documents: []domain.DocumentRecord{{
				ID:             "doc-1",
				OwnerID:        "alice",
				Title:          "Flan",
				DishName:       "flan",
				SourceLocation: "file://recipes/alice/dessert/flan.md",
				VersionIDs:     []string{"v1", "v2"},
			}},
		}
		server, err := NewServer(&Ports{Chat: &mockChatService{}, Document: docs})
		require.NoError(t, err)

		_, output, err := server.handleListDocuments(ctx, nil, ListDocumentsInput{Owner: "alice"})
		require.NoError(t, err)

		assert.Equal(t, "alice", docs.gotOwner)
		assert.Equal(t, 1, output.Count)
		assert.Equal(t, DocumentOutput{
			ID:       "doc-1",
			Owner:    "alice",
			Title:    "Flan",
			DishName: "flan",
			Location: "file://recipes/alice/dessert/flan.md",
			Versions: 2,
		}, output.Documents[0])
	})

	t.Run("returns error on list failure", func(t *testing.T) {
		docs := &mockDocumentService{err: domain.ErrDependencyFailure}
		server, err := NewServer(&Ports{Chat: &mockChatService{}, Document: docs})
		require.NoError(t, err)

		_, _, err = server.handleListDocuments(ctx, nil, ListDocumentsInput{})
		assert.ErrorIs(t, err, domain.ErrDependencyFailure)
	})
}
