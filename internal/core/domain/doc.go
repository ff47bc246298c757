// Package domain defines the core business entities for sous.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - DocumentRecord: One source location and its ordered version ids
//   - DocumentVersion: One observed content revision of a document
//   - Fragment: A chunk of a version's text, indexed for similarity search
//   - SearchFilter: Category and difficulty constraints for retrieval
//   - ParentDocument: A whole document reconstructed from matched fragments
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
