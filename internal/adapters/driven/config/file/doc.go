// Package file provides file-based configuration adapters.
//
// Adapters:
//   - Config: TOML application configuration with .env and environment overrides
//   - PromptStore: user-editable prompt templates
package file
