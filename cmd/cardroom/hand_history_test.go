package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/cardroom/internal/handid"
	"github.com/lox/cardroom/internal/phh"
	"github.com/lox/cardroom/internal/store"
)

func writeHand(t *testing.T, path string, hand *phh.HandHistory) {
	t.Helper()
	data, err := phh.EncodeToBytes(hand)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "cardroom.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestLoadHands(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	first := sampleHand()
	writeHand(t, filepath.Join(dir, "first.phh"), first)

	nested := sampleHand()
	nested.HandID = "h-2"
	writeHand(t, filepath.Join(dir, "archive", "2024", "second.phh"), nested)

	anonymous := sampleHand()
	anonymous.HandID = ""
	anonymous.Table = ""
	writeHand(t, filepath.Join(dir, "third.phh"), anonymous)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.phh"), []byte("variant = [unterminated"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "archive", "notes.txt"), []byte("ignored"), 0o644))

	st := openStore(t)
	n, err := loadHands(ctx, st, []string{filepath.Join(dir, "*.phh"), filepath.Join(dir, "archive")}, "imported")
	assert.Equal(t, 3, n)
	require.Error(t, err)
	assert.ErrorContains(t, err, "broken.phh")
	assert.NotContains(t, err.Error(), "notes.txt")

	records, err := st.HandHistories(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, records, 3)

	var imported *store.HandRecord
	ids := make([]string, 0, len(records))
	for i := range records {
		ids = append(ids, records[i].HandID)
		if records[i].Table == "imported" {
			imported = &records[i]
		}
	}
	assert.Contains(t, ids, "h-1")
	assert.Contains(t, ids, "h-2")
	require.NotNil(t, imported)
	assert.NoError(t, handid.Validate(imported.HandID))
	assert.Equal(t, []string{"alice", "bob"}, imported.Hand.Players)
}

func TestLoadHandsReportsDuplicates(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeHand(t, filepath.Join(dir, "a.phh"), sampleHand())
	writeHand(t, filepath.Join(dir, "b.phh"), sampleHand())

	n, err := loadHands(ctx, openStore(t), []string{filepath.Join(dir, "*.phh")}, "")
	assert.Equal(t, 1, n)
	assert.ErrorContains(t, err, "b.phh")
}

func TestExpandPaths(t *testing.T) {
	dir := t.TempDir()
	writeHand(t, filepath.Join(dir, "a.phh"), sampleHand())
	writeHand(t, filepath.Join(dir, "sub", "b.PHH"), sampleHand())

	files, err := expandPaths([]string{filepath.Join(dir, "*.phh"), dir})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.phh"),
		filepath.Join(dir, "sub", "b.PHH"),
	}, files)

	_, err = expandPaths([]string{filepath.Join(dir, "missing-*.phh")})
	assert.ErrorContains(t, err, "no files match")

	_, err = expandPaths([]string{"[" + dir})
	assert.Error(t, err)
}

func TestHandHistoryLoadCmd(t *testing.T) {
	dir := t.TempDir()
	writeHand(t, filepath.Join(dir, "a.phh"), sampleHand())
	db := filepath.Join(t.TempDir(), "cardroom.db")

	require.NoError(t, HandHistoryLoadCmd{Paths: []string{dir}, Database: db}.Run())

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()
	rec, err := st.HandHistory(context.Background(), "h-1")
	require.NoError(t, err)
	assert.Equal(t, "main", rec.Table)
}
