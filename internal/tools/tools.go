package tools

import (
	"errors"
	"fmt"
	"sort"

	"epieval/lib/textutil"
)

var (
	ErrUnsupportedTool = errors.New("unsupported tool")
	ErrParse           = errors.New("could not parse results")
	ErrResultTimeout   = errors.New("timed out waiting for results")
	ErrInvalidParams   = errors.New("invalid tool parameters")
)

type Name string

const (
	Vaxijen2    Name = "Vaxijen2"
	Vaxijen3    Name = "Vaxijen3"
	AllerTop2   Name = "AllerTop2"
	AllergenFP1 Name = "AllergenFP1"
)

// Encoding is the shape of the sequence payload a tool's form accepts.
type Encoding int

const (
	// EncodingFastaFile uploads a FASTA file through a file input.
	EncodingFastaFile Encoding = iota
	// EncodingFastaString types FASTA text into a textarea.
	EncodingFastaString
	// EncodingRaw types a single bare sequence.
	EncodingRaw
)

func (e Encoding) String() string {
	switch e {
	case EncodingFastaFile:
		return "fasta-file"
	case EncodingFastaString:
		return "fasta-string"
	case EncodingRaw:
		return "raw"
	}
	return fmt.Sprintf("Encoding(%d)", int(e))
}

// Descriptor is everything needed to drive a tool's web form.
type Descriptor struct {
	Name Name
	URL  string
	// Multi is true when a single submission may hold many sequences.
	Multi    bool
	Encoding Encoding
	// SequenceField is the name attribute of the sequence input.
	SequenceField  string
	SubmitSelector string
	// ResultSelector matches the element holding the results once they are rendered.
	ResultSelector string
	// ChunkSize bounds the sequences per submission, 0 means no bound.
	ChunkSize int
	// Fields are sent with every submission, before user parameters.
	Fields map[string]string
}

// Adapter is the site specific half of a tool: how to read its results and which parameters
// it accepts. Nothing outside this package knows about selectors or text anchors.
type Adapter interface {
	Descriptor() Descriptor
	// Params validates raw user parameters.
	Params(raw map[string]string) (Params, error)
	// Extract reads result columns out of the rendered text of the result container. The
	// "score" column is always present.
	Extract(text string) (map[string][]float64, error)
}

// Registry is the closed set of supported tools.
type Registry struct {
	adapters map[Name]Adapter
}

func NewRegistry(adapters ...Adapter) Registry {
	r := Registry{adapters: make(map[Name]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Descriptor().Name] = a
	}
	return r
}

// DefaultRegistry holds the four supported tools.
func DefaultRegistry() Registry {
	return NewRegistry(
		newVaxijen2(),
		newVaxijen3(),
		newAllerTop2(),
		newAllergenFP1(),
	)
}

// Names returns the registered tool names sorted alphabetically.
func (r Registry) Names() []Name {
	out := make([]Name, 0, len(r.adapters))
	for name := range r.adapters {
		out = append(out, name)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i] < out[j]
	})
	return out
}

// Lookup resolves name, matching case and whitespace insensitively. Unknown names wrap
// ErrUnsupportedTool and suggest the closest registered name when there is one.
func (r Registry) Lookup(name string) (Adapter, error) {
	normalized := textutil.NormalizeName(name)
	candidates := make([]string, 0, len(r.adapters))
	for n, a := range r.adapters {
		if textutil.NormalizeName(string(n)) == normalized {
			return a, nil
		}
		candidates = append(candidates, string(n))
	}
	sort.Strings(candidates)

	suggestion, ok := textutil.Closest(name, candidates)
	if ok {
		return nil, fmt.Errorf("%w: %q (did you mean %s?)", ErrUnsupportedTool, name, suggestion)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedTool, name)
}
