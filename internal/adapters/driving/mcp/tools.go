package mcp

import (
	"context"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/sous/internal/core/domain"
)

// AskInput is the input schema for the ask tool.
type AskInput struct {
	Owner string `json:"owner" jsonschema:"the owner whose recipes are searched"`
	Query string `json:"query" jsonschema:"the cooking question"`
}

// AskOutput is the output schema for the ask tool.
type AskOutput struct {
	Intent  string         `json:"intent"`
	Query   string         `json:"query"`
	Answer  string         `json:"answer"`
	Sources []SourceOutput `json:"sources"`
}

// SourceOutput is one recipe an answer was built from.
type SourceOutput struct {
	DocumentID string `json:"document_id"`
	Title      string `json:"title"`
	Location   string `json:"location"`
	Category   string `json:"category,omitempty"`
	Difficulty string `json:"difficulty,omitempty"`
	Hits       int    `json:"hits"`
}

// ListDocumentsInput is the input schema for the list_documents tool.
type ListDocumentsInput struct {
	Owner string `json:"owner,omitempty" jsonschema:"only list this owner's documents"`
}

// ListDocumentsOutput is the output schema for the list_documents tool.
type ListDocumentsOutput struct {
	Documents []DocumentOutput `json:"documents"`
	Count     int              `json:"count"`
}

// DocumentOutput summarises one document record.
type DocumentOutput struct {
	ID       string `json:"id"`
	Owner    string `json:"owner"`
	Title    string `json:"title"`
	DishName string `json:"dish_name"`
	Location string `json:"location"`
	Versions int    `json:"versions"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ask",
		Description: "Answer a cooking question from an owner's recipe collection",
	}, s.handleAsk)

	if s.ports.Document != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "list_documents",
			Description: "List recorded recipe documents",
		}, s.handleListDocuments)
	}
}

// handleAsk runs one chat turn.
func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	result, err := s.ports.Chat.Turn(ctx, strings.TrimSpace(input.Owner), input.Query)
	if err != nil {
		return nil, AskOutput{}, err
	}

	output := AskOutput{
		Intent:  string(result.Intent),
		Query:   result.RewrittenQuery,
		Answer:  result.Answer,
		Sources: make([]SourceOutput, len(result.Parents)),
	}
	for i := range result.Parents {
		output.Sources[i] = toSourceOutput(&result.Parents[i])
	}
	return nil, output, nil
}

// handleListDocuments lists document records.
func (s *Server) handleListDocuments(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ListDocumentsInput,
) (*mcp.CallToolResult, ListDocumentsOutput, error) {
	docs, err := s.ports.Document.List(ctx, strings.TrimSpace(input.Owner))
	if err != nil {
		return nil, ListDocumentsOutput{}, err
	}

	output := ListDocumentsOutput{
		Documents: make([]DocumentOutput, len(docs)),
		Count:     len(docs),
	}
	for i := range docs {
		output.Documents[i] = toDocumentOutput(&docs[i])
	}
	return nil, output, nil
}

func toSourceOutput(p *domain.ParentDocument) SourceOutput {
	return SourceOutput{
		DocumentID: p.DocumentID,
		Title:      p.Title,
		Location:   p.SourceLocation,
		Category:   p.Metadata.Category,
		Difficulty: p.Metadata.Difficulty,
		Hits:       p.Hits,
	}
}

func toDocumentOutput(d *domain.DocumentRecord) DocumentOutput {
	return DocumentOutput{
		ID:       d.ID,
		Owner:    d.OwnerID,
		Title:    d.Title,
		DishName: d.DishName,
		Location: d.SourceLocation,
		Versions: len(d.VersionIDs),
	}
}
