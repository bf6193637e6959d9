package evaluate

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"epieval/internal/sequence"
	"epieval/internal/tools"
	"epieval/lib/fasta"
)

// Payload is the value written into a tool's sequence field for one submission.
type Payload struct {
	// Value is a file path for file uploads, otherwise the text to type.
	Value string
	// Count is the number of sequences the submission covers.
	Count int
	file  bool
}

type Payloads []Payload

// chunkFasta renders a chunk with headers seq1..seqN, the tools only echo headers back
// so numbering within the chunk is enough to keep order.
func chunkFasta(chunk sequence.Set) string {
	records := make([]fasta.Record, chunk.Len())
	for i := range records {
		records[i] = fasta.Record{
			ID:  fmt.Sprintf("seq%d", i+1),
			Seq: chunk.At(i).Seq,
		}
	}
	return fasta.Format(records)
}

// BuildPayloads converts chunks into the payloads desc expects. FASTA files are written
// to dir, or os.TempDir() when dir is empty.
func BuildPayloads(chunks []sequence.Set, desc tools.Descriptor, dir string) (Payloads, error) {
	if !desc.Multi {
		var out Payloads
		for _, chunk := range chunks {
			for _, r := range chunk.Records() {
				out = append(out, Payload{Value: r.Seq, Count: 1})
			}
		}
		return out, nil
	}

	if dir == "" {
		dir = os.TempDir()
	}

	out := make(Payloads, 0, len(chunks))
	for i, chunk := range chunks {
		text := chunkFasta(chunk)
		switch desc.Encoding {
		case tools.EncodingFastaFile:
			path := filepath.Join(dir, fmt.Sprintf("%s_input_%d.fa", desc.Name, i))
			err := os.WriteFile(path, []byte(text), 0644)
			if err != nil {
				out.Cleanup()
				return nil, fmt.Errorf("write payload: %w", err)
			}
			out = append(out, Payload{Value: path, Count: chunk.Len(), file: true})
		default:
			out = append(out, Payload{Value: text, Count: chunk.Len()})
		}
	}
	return out, nil
}

// Cleanup removes payload files, failures are only logged.
func (ps Payloads) Cleanup() {
	for _, p := range ps {
		if !p.file {
			continue
		}
		err := os.Remove(p.Value)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn("failed to remove payload file", "path", p.Value, "err", err)
		}
	}
}
