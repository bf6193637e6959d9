package tools

import (
	"fmt"
	"sort"
	"strings"
)

// Params are validated tool parameters ready to be written into the form.
type Params interface {
	Fields() map[string]string
}

// NoParams is used by tools that take no parameters.
type NoParams struct{}

func (NoParams) Fields() map[string]string {
	return nil
}

func noParams(tool Name, raw map[string]string) (Params, error) {
	if len(raw) > 0 {
		keys := make([]string, 0, len(raw))
		for k := range raw {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("%w: %s takes no parameters, got %s", ErrInvalidParams, tool, strings.Join(keys, ", "))
	}
	return NoParams{}, nil
}

type Vaxijen2Target string

const (
	TargetBacteria Vaxijen2Target = "Bacteria"
	TargetVirus    Vaxijen2Target = "Virus"
	TargetTumour   Vaxijen2Target = "Tumour"
	TargetParasite Vaxijen2Target = "Parasite"
	TargetFungal   Vaxijen2Target = "Fungal"
)

var vaxijen2Targets = map[string]Vaxijen2Target{
	"bacteria": TargetBacteria,
	"virus":    TargetVirus,
	"tumour":   TargetTumour,
	"tumor":    TargetTumour,
	"parasite": TargetParasite,
	"fungal":   TargetFungal,
}

// Vaxijen2Params selects the organism model VaxiJen 2 predicts with.
type Vaxijen2Params struct {
	Target Vaxijen2Target
}

// NewVaxijen2Params validates target, the empty string selects bacteria.
func NewVaxijen2Params(target string) (Vaxijen2Params, error) {
	key := strings.ToLower(strings.TrimSpace(target))
	if key == "" {
		return Vaxijen2Params{Target: TargetBacteria}, nil
	}
	t, ok := vaxijen2Targets[key]
	if !ok {
		return Vaxijen2Params{}, fmt.Errorf(
			"%w: unknown Vaxijen2 target %q (expected bacteria, virus, tumour, parasite or fungal)",
			ErrInvalidParams, target,
		)
	}
	return Vaxijen2Params{Target: t}, nil
}

func (p Vaxijen2Params) Fields() map[string]string {
	target := p.Target
	if target == "" {
		target = TargetBacteria
	}
	return map[string]string{"Target": string(target)}
}
