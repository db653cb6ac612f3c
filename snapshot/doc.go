// Package snapshot holds golden snapshot tests for the compiler pipeline;
// see snapshot_test.go.
package snapshot
