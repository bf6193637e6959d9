package commands

import (
	"fmt"
	"strings"

	"epieval/internal/evaluate"
)

// parseEval reads an --eval value, "[label=]Tool[,key=value...]".
//
//	Vaxijen3
//	v2=Vaxijen2,target=virus
func parseEval(value string) (evaluate.Request, error) {
	parts := strings.Split(value, ",")

	var req evaluate.Request
	head := strings.TrimSpace(parts[0])
	label, tool, found := strings.Cut(head, "=")
	if found {
		req.Label = strings.TrimSpace(label)
		req.Tool = strings.TrimSpace(tool)
		if req.Label == "" {
			return evaluate.Request{}, fmt.Errorf("eval %q: empty label", value)
		}
	} else {
		req.Tool = head
	}
	if req.Tool == "" {
		return evaluate.Request{}, fmt.Errorf("eval %q: missing tool name", value)
	}

	for _, p := range parts[1:] {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		key, v, found := strings.Cut(p, "=")
		key = strings.TrimSpace(key)
		if !found || key == "" {
			return evaluate.Request{}, fmt.Errorf("eval %q: parameter %q is not key=value", value, p)
		}
		if req.Params == nil {
			req.Params = make(map[string]string)
		}
		if _, dup := req.Params[key]; dup {
			return evaluate.Request{}, fmt.Errorf("eval %q: parameter %q given twice", value, key)
		}
		req.Params[key] = strings.TrimSpace(v)
	}
	return req, nil
}

func parseEvals(values []string) (evaluate.Requests, error) {
	out := make(evaluate.Requests, 0, len(values))
	for _, v := range values {
		req, err := parseEval(v)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, nil
}
