// Package config defines the channelctl configuration.
//
//   - spec.go: Config struct definition
//   - default.go: default values
//   - verify.go: validation
//   - sanitize.go: masking of credentials for display
//   - load.go: layered loading via internal/infra/confloader
package config
