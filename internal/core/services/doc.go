// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// The ingestion side is built from Versioner (content-addressed version
// history), the chunking pipeline and IndexSynchronizer. The query side is
// built from QueryRouter, RetrievalEngine and ChatService.
package services
