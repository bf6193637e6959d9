package fasta

import (
	"bufio"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

var ErrMalformed = errors.New("malformed fasta")

// Record is a single named sequence.
type Record struct {
	ID  string
	Seq string
}

// Read parses every record in r. Headers keep only their first word, sequence lines are
// upper-cased and joined, blank lines and ';' comments are ignored.
func Read(r io.Reader) ([]Record, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var (
		records []Record
		seq     strings.Builder
		id      string
		open    bool
		lineno  int
	)
	flush := func() {
		if open {
			records = append(records, Record{ID: id, Seq: seq.String()})
		}
		seq.Reset()
	}

	for scanner.Scan() {
		lineno++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == ';' {
			continue
		}
		if line[0] == '>' {
			flush()
			fields := strings.Fields(line[1:])
			if len(fields) == 0 {
				return nil, fmt.Errorf("%w: empty header on line %d", ErrMalformed, lineno)
			}
			id = fields[0]
			open = true
			continue
		}
		if !open {
			return nil, fmt.Errorf("%w: sequence data before first header on line %d", ErrMalformed, lineno)
		}
		seq.WriteString(strings.ToUpper(strings.Join(strings.Fields(line), "")))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	flush()
	return records, nil
}

// ReadFile reads path, "-" means stdin and a ".gz" suffix is decompressed transparently.
func ReadFile(path string) ([]Record, error) {
	rc, err := open(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return Read(rc)
}

func open(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if strings.HasSuffix(path, ".gz") {
		gr, err := gzip.NewReader(fh)
		if err != nil {
			fh.Close()
			return nil, err
		}
		return struct {
			io.Reader
			io.Closer
		}{Reader: gr, Closer: fh}, nil
	}
	return fh, nil
}

// Format renders records as FASTA with one sequence line per record.
func Format(records []Record) string {
	var sb strings.Builder
	for _, r := range records {
		sb.WriteString(">")
		sb.WriteString(r.ID)
		sb.WriteString("\n")
		sb.WriteString(r.Seq)
		sb.WriteString("\n")
	}
	return sb.String()
}

// Write writes Format(records) to w.
func Write(w io.Writer, records []Record) error {
	_, err := io.WriteString(w, Format(records))
	return err
}
