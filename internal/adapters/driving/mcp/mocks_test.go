package mcp

import (
	"context"

	"github.com/custodia-labs/sous/internal/core/domain"
	"github.com/custodia-labs/sous/internal/core/ports/driving"
)

// mockChatService is a mock implementation of driving.ChatService.
type mockChatService struct {
	result *domain.TurnResult
	err    error

	gotOwner string
	gotQuery string
}

func (m *mockChatService) Turn(_ context.Context, ownerID, query string) (*domain.TurnResult, error) {
	m.gotOwner = ownerID
	m.gotQuery = query
	return m.result, m.err
}

// mockDocumentService is a mock implementation of driving.DocumentService.
type mockDocumentService struct {
	documents []domain.DocumentRecord
	document  *domain.DocumentRecord
	versions  []domain.DocumentVersion
	content   string
	err       error

	gotOwner string
}

func (m *mockDocumentService) List(_ context.Context, ownerID string) ([]domain.DocumentRecord, error) {
	m.gotOwner = ownerID
	return m.documents, m.err
}

func (m *mockDocumentService) Get(_ context.Context, _ string) (*domain.DocumentRecord, error) {
	return m.document, m.err
}

func (m *mockDocumentService) Versions(_ context.Context, _ string) ([]domain.DocumentVersion, error) {
	return m.versions, m.err
}

func (m *mockDocumentService) GetContent(_ context.Context, _ string) (string, error) {
	return m.content, m.err
}

// mockIngestService is a mock implementation of driving.IngestService.
type mockIngestService struct {
	files []string
	err   error
}

func (m *mockIngestService) Rebuild(_ context.Context) (*driving.RebuildReport, error) {
	return &driving.RebuildReport{}, m.err
}

func (m *mockIngestService) Upload(_ context.Context, _, _ string, _ []byte) (*driving.UploadResult, error) {
	return &driving.UploadResult{}, m.err
}

func (m *mockIngestService) Delete(_ context.Context, _, _ string) (*driving.DeleteResult, error) {
	return &driving.DeleteResult{}, m.err
}

func (m *mockIngestService) ListFiles(_ context.Context, _ string) ([]string, error) {
	return m.files, m.err
}

func (m *mockIngestService) Status(_ context.Context) *driving.SyncStatus {
	return &driving.SyncStatus{}
}
