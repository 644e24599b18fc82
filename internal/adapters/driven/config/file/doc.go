// Package file provides the file-backed configuration adapters.
//
//   - ConfigStore: TOML configuration with environment overrides
//   - LoadEnv: .env loading through godotenv
//   - LoadSettings: the typed domain.AppSettings view of a ConfigStore
//   - LoadPrompt: user-editable prompt files with built-in fallbacks
package file
