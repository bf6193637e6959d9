package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"epieval/internal/evaluate"
	"epieval/internal/sequence"
	"epieval/internal/store"

	"github.com/stretchr/testify/require"
)

func TestOpenRunsMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.db")
	_, err := openRuns(context.Background(), path)
	require.ErrorIs(t, err, errNoRuns)

	_, err = os.Stat(path)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestOpenRuns(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "results.db")

	set, err := sequence.NewSet(sequence.Record{ID: "p1", Seq: "MKV"})
	require.NoError(t, err)
	db, err := store.Open(ctx, store.Config{File: path})
	require.NoError(t, err)
	started := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	id, err := db.Save(ctx, store.Run{
		StartedAt:  started,
		FinishedAt: started.Add(time.Minute),
		Set:        set,
		Result: evaluate.Result{
			Scores: map[evaluate.Key]evaluate.Series{{Label: "top", Tool: "AllerTop2"}: {1}},
		},
	})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = openRuns(ctx, path)
	require.NoError(t, err)
	defer db.Close()

	runs, err := db.Runs(ctx)
	require.NoError(t, err)

	var buff bytes.Buffer
	writeRuns(&buff, runs)
	require.Contains(t, buff.String(), id)
	require.Contains(t, buff.String(), "1m0s")
}
