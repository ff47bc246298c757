// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - ObjectStore: Source of recipe markdown (filesystem, MinIO)
//   - DocumentStore: Document record and version persistence (SQLite, Postgres)
//   - VectorIndex: Fragment storage and similarity search (Qdrant)
//   - PostProcessorPipeline: Splits version text into fragments
//   - Generator: Turns intent plus parent documents into an answer
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - EmbeddingService: Generates vector embeddings. Without it the local index falls back to lexical scoring.
//   - LLMService: Language model operations. Without it every query is routed as general and never rewritten.
//   - PromptStore: Customisable prompt templates. Without it built-in prompts are used.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
