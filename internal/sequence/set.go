package sequence

import (
	"errors"
	"fmt"
	"strings"

	"epieval/lib/fasta"
)

var (
	ErrDuplicateID   = errors.New("duplicate sequence id")
	ErrEmptySequence = errors.New("empty sequence")
)

// Record is one named amino acid sequence.
type Record = fasta.Record

// Set is an ordered collection of sequences with unique ids, it is never mutated after
// construction.
type Set struct {
	records []Record
}

// NewSet validates records and copies them into a Set.
func NewSet(records ...Record) (Set, error) {
	seen := make(map[string]struct{}, len(records))
	out := make([]Record, len(records))
	for i, r := range records {
		if strings.TrimSpace(r.ID) == "" {
			return Set{}, fmt.Errorf("record %d: empty id", i)
		}
		if _, ok := seen[r.ID]; ok {
			return Set{}, fmt.Errorf("%w: %s", ErrDuplicateID, r.ID)
		}
		if r.Seq == "" {
			return Set{}, fmt.Errorf("%w: %s", ErrEmptySequence, r.ID)
		}
		seen[r.ID] = struct{}{}
		out[i] = r
	}
	return Set{records: out}, nil
}

// ReadFile loads a FASTA file into a Set.
func ReadFile(path string) (Set, error) {
	records, err := fasta.ReadFile(path)
	if err != nil {
		return Set{}, fmt.Errorf("read %s: %w", path, err)
	}
	return NewSet(records...)
}

func (s Set) Len() int {
	return len(s.records)
}

func (s Set) At(i int) Record {
	return s.records[i]
}

// Records returns a copy of the records in order.
func (s Set) Records() []Record {
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

func (s Set) IDs() []string {
	out := make([]string, len(s.records))
	for i, r := range s.records {
		out[i] = r.ID
	}
	return out
}

// Chunk splits s into consecutive sub-sets of at most max records each. max <= 0 or
// max >= s.Len() yields a single chunk, an empty set yields none.
func Chunk(s Set, max int) []Set {
	n := len(s.records)
	if n == 0 {
		return nil
	}
	if max <= 0 || max >= n {
		return []Set{s}
	}

	chunks := make([]Set, 0, (n+max-1)/max)
	for start := 0; start < n; start += max {
		end := min(start+max, n)
		chunks = append(chunks, Set{records: s.records[start:end:end]})
	}
	return chunks
}
