package evaluate

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var ErrDuplicateLabel = errors.New("duplicate evaluator label")

// Request is one configured invocation of a tool.
type Request struct {
	// Label names the evaluator, an empty label is replaced by "<Tool>-<n>".
	Label  string            `json:"label"`
	Tool   string            `json:"tool"`
	Params map[string]string `json:"params"`
}

// Key identifies one score series in a Result.
type Key struct {
	Label string
	Tool  string
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s", k.Label, k.Tool)
}

func (r Request) Key() Key {
	return Key{Label: r.Label, Tool: r.Tool}
}

// Requests is a batch of evaluator requests.
type Requests []Request

// defaultLabel returns "<tool>-<n>" with the smallest n >= 1 not already taken.
func defaultLabel(tool string, taken map[string]bool) string {
	for i := 1; ; i++ {
		label := fmt.Sprintf("%s-%d", tool, i)
		if !taken[label] {
			return label
		}
	}
}

// Normalize returns a copy of the batch where every request has a label, labels are
// checked for uniqueness.
func (rs Requests) Normalize() (Requests, error) {
	taken := make(map[string]bool, len(rs))
	for _, r := range rs {
		label := strings.TrimSpace(r.Label)
		if label == "" {
			continue
		}
		if taken[label] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateLabel, label)
		}
		taken[label] = true
	}

	out := make(Requests, len(rs))
	for i, r := range rs {
		r.Label = strings.TrimSpace(r.Label)
		r.Tool = strings.TrimSpace(r.Tool)
		if r.Label == "" {
			r.Label = defaultLabel(r.Tool, taken)
			taken[r.Label] = true
		}
		out[i] = r
	}
	return out, nil
}

// SortKeys orders keys by label then tool.
func SortKeys(keys []Key) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Label != keys[j].Label {
			return keys[i].Label < keys[j].Label
		}
		return keys[i].Tool < keys[j].Tool
	})
}
