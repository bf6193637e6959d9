package sequence

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func makeSet(t *testing.T, n int) Set {
	t.Helper()
	records := make([]Record, n)
	for i := range records {
		records[i] = Record{ID: fmt.Sprintf("s%d", i), Seq: "MKV"}
	}
	set, err := NewSet(records...)
	require.NoError(t, err)
	return set
}

func TestNewSet(t *testing.T) {
	_, err := NewSet(Record{ID: "a", Seq: "K"}, Record{ID: "a", Seq: "L"})
	require.ErrorIs(t, err, ErrDuplicateID)

	_, err = NewSet(Record{ID: "a"})
	require.ErrorIs(t, err, ErrEmptySequence)

	_, err = NewSet(Record{ID: " ", Seq: "K"})
	require.Error(t, err)

	records := []Record{{ID: "a", Seq: "K"}}
	set, err := NewSet(records...)
	require.NoError(t, err)
	records[0].Seq = "changed"
	require.Equal(t, "K", set.At(0).Seq)
}

func TestChunk(t *testing.T) {
	cases := []struct {
		n, max int
		sizes  []int
	}{
		{n: 0, max: 3, sizes: nil},
		{n: 5, max: 0, sizes: []int{5}},
		{n: 5, max: -1, sizes: []int{5}},
		{n: 5, max: 5, sizes: []int{5}},
		{n: 5, max: 9, sizes: []int{5}},
		{n: 5, max: 2, sizes: []int{2, 2, 1}},
		{n: 6, max: 3, sizes: []int{3, 3}},
		{n: 3, max: 1, sizes: []int{1, 1, 1}},
	}

	for _, c := range cases {
		t.Run(fmt.Sprintf("%d/%d", c.n, c.max), func(t *testing.T) {
			set := makeSet(t, c.n)
			chunks := Chunk(set, c.max)

			var sizes []int
			var ids []string
			for _, chunk := range chunks {
				sizes = append(sizes, chunk.Len())
				ids = append(ids, chunk.IDs()...)
			}
			if diff := cmp.Diff(c.sizes, sizes); diff != "" {
				t.Fatal(diff)
			}
			if c.n > 0 {
				require.Equal(t, set.IDs(), ids)
			}
		})
	}
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.fa")
	require.NoError(t, os.WriteFile(path, []byte(">a\nKK\n>a\nLL\n"), 0600))

	_, err := ReadFile(path)
	require.ErrorIs(t, err, ErrDuplicateID)
}
