// Package config handles configuration loading, parsing, and validation
// from various sources (environment variables, files). It provides type-safe
// access to application settings needed by different components while keeping
// configuration details separate from business logic.
//
// Configuration is resolved once at process start and passed down explicitly;
// nothing in this repository reads the environment after Load returns.
package config
