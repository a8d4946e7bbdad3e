//go:build integration

// Package testdb provides a migrated PostgreSQL database for integration
// tests. It uses EVAL_TEST_DATABASE_URL when set and otherwise starts a
// disposable container shared by every test in the package binary.
package testdb
