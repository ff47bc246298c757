// Package mcp provides an MCP (Model Context Protocol) server adapter for Sous.
// It lets AI assistants ask recipe questions and browse an owner's documents.
package mcp

import "errors"

// ErrMissingChatService is returned when the chat service is not provided.
var ErrMissingChatService = errors.New("mcp: chat service is required")
