// Package id generates identifiers for pipeline runs.
package id

import (
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// runAlphabet keeps run ids lowercase and free of '-' and '_' so they read
// cleanly inside document keys.
const runAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// Generate creates a prefixed NanoID, e.g. "req-V1StGXR8_Z5jdHi6B-myT".
func Generate(prefix string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + id, nil
}

// NewRunID creates a sortable run id, e.g. "run-20240301T020000-k3j9x0a1".
// Ids created later in UTC sort after earlier ones.
func NewRunID(now time.Time) (string, error) {
	suffix, err := gonanoid.Generate(runAlphabet, 8)
	if err != nil {
		return "", fmt.Errorf("generate run id: %w", err)
	}
	return "run-" + now.UTC().Format("20060102T150405") + "-" + suffix, nil
}

// MustNewRunID is NewRunID that panics when the system has no entropy.
func MustNewRunID(now time.Time) string {
	id, err := NewRunID(now)
	if err != nil {
		panic(fmt.Sprintf("failed to generate run id: %v", err))
	}
	return id
}
