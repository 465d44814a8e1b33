// Package shared holds helpers used by tests across packages.
//
// testutil captures slog records so tests can assert on what a component
// logged, including the attributes bound with Logger.With.
package shared
