package mcp

import (
	"github.com/custodia-labs/sous/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
type Ports struct {
	// Chat answers questions.
	Chat driving.ChatService

	// Document exposes recorded documents and their content.
	Document driving.DocumentService

	// Ingest lists an owner's recipe files.
	Ingest driving.IngestService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Chat == nil {
		return ErrMissingChatService
	}
	// Document and Ingest are optional.
	return nil
}
