package id

import (
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_Format(t *testing.T) {
	id, err := Generate("req")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(id, "req-"))
	assert.Len(t, id, len("req-")+21)
}

func TestNewRunID_Format(t *testing.T) {
	at := time.Date(2024, time.March, 1, 2, 0, 0, 0, time.UTC)

	id, err := NewRunID(at)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(id, "run-20240301T020000-"), id)
	suffix := strings.TrimPrefix(id, "run-20240301T020000-")
	assert.Len(t, suffix, 8)
	assert.Equal(t, strings.ToLower(suffix), suffix)
}

func TestNewRunID_UsesUTC(t *testing.T) {
	saoPaulo := time.FixedZone("BRT", -3*60*60)
	at := time.Date(2024, time.February, 29, 23, 0, 0, 0, saoPaulo)

	id := MustNewRunID(at)
	assert.True(t, strings.HasPrefix(id, "run-20240301T020000-"), id)
}

func TestNewRunID_SortsChronologically(t *testing.T) {
	base := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	var ids []string
	for i := 0; i < 5; i++ {
		ids = append(ids, MustNewRunID(base.Add(time.Duration(i)*time.Hour)))
	}

	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	assert.Equal(t, ids, sorted)
}

func TestNewRunID_Unique(t *testing.T) {
	at := time.Now()
	seen := make(map[string]bool)
	for i := 0; i < 500; i++ {
		id := MustNewRunID(at)
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}
