package tools

import (
	"fmt"
	"strconv"
	"strings"

	"epieval/lib/htmlutil"
	"epieval/lib/textutil"
)

const (
	ColumnScore       = "score"
	ColumnProbability = "probability"
)

// AntigenScore signs a prediction confidence given in percent: positive predictions map to
// (0, 1], negative ones to [-1, 0).
func AntigenScore(label string, percent float64) float64 {
	sign := -1.0
	switch textutil.NormalizeLabel(label) {
	case "positive", "probable antigen":
		sign = 1
	}
	return percent / 100 * sign
}

// AllergenScore is 0 for non-allergens and 1 for everything else.
func AllergenScore(label string) float64 {
	normalized := textutil.NormalizeLabel(label)
	normalized = strings.TrimSpace(strings.TrimPrefix(normalized, "probable"))
	if normalized == "non-allergen" {
		return 0
	}
	return 1
}

func parsePercent(s string) (float64, error) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: probability %q: %w", ErrParse, s, err)
	}
	return v, nil
}

func antigenColumns(labels []string, percents []float64) map[string][]float64 {
	scores := make([]float64, len(labels))
	for i, label := range labels {
		scores[i] = AntigenScore(label, percents[i])
	}
	return map[string][]float64{
		ColumnScore:       scores,
		ColumnProbability: percents,
	}
}

type adapter struct {
	desc    Descriptor
	params  func(raw map[string]string) (Params, error)
	extract func(text string) (map[string][]float64, error)
}

func (a adapter) Descriptor() Descriptor {
	return a.desc
}

func (a adapter) Params(raw map[string]string) (Params, error) {
	return a.params(raw)
}

func (a adapter) Extract(text string) (map[string][]float64, error) {
	return a.extract(text)
}

func newVaxijen3() adapter {
	return adapter{
		desc: Descriptor{
			Name:           Vaxijen3,
			URL:            "https://www.ddg-pharmfac.net/vaxijen3/",
			Multi:          true,
			Encoding:       EncodingFastaFile,
			SequenceField:  "uploaded_file",
			SubmitSelector: "input[name='submit']",
			ResultSelector: "table.boilerplate",
		},
		params: func(raw map[string]string) (Params, error) {
			return noParams(Vaxijen3, raw)
		},
		extract: extractVaxijen3,
	}
}

// extractVaxijen3 reads lines like
// "seq1 is predicted to be Probable ANTIGEN with probability 87.5%".
func extractVaxijen3(text string) (map[string][]float64, error) {
	labels := htmlutil.InnerSplit(text, "is predicted to be", "with")
	probs := htmlutil.InnerSplit(text, "with probability", "\n")
	if len(labels) != len(probs) {
		return nil, fmt.Errorf("%w: %d predictions but %d probabilities", ErrParse, len(labels), len(probs))
	}

	percents := make([]float64, len(probs))
	for i, p := range probs {
		v, err := parsePercent(p)
		if err != nil {
			return nil, err
		}
		percents[i] = v
	}
	return antigenColumns(labels, percents), nil
}

func newVaxijen2() adapter {
	return adapter{
		desc: Descriptor{
			Name:           Vaxijen2,
			URL:            "https://www.ddg-pharmfac.net/vaxijen/VaxiJen/VaxiJen.html",
			Multi:          true,
			Encoding:       EncodingFastaFile,
			SequenceField:  "uploaded_file",
			SubmitSelector: "input[name='submit']",
			ResultSelector: "table[border='0']",
		},
		params: func(raw map[string]string) (Params, error) {
			target := ""
			for k, v := range raw {
				if !strings.EqualFold(k, "target") {
					return nil, fmt.Errorf("%w: Vaxijen2 has no parameter %q", ErrInvalidParams, k)
				}
				target = v
			}
			return NewVaxijen2Params(target)
		},
		extract: extractVaxijen2,
	}
}

// extractVaxijen2 reads lines like
// "Overall Prediction for the Protective Antigen = 0.5467 ( Probable ANTIGEN )."
// where the prediction is a fraction.
func extractVaxijen2(text string) (map[string][]float64, error) {
	var (
		labels   []string
		percents []float64
	)
	for _, segment := range htmlutil.InnerSplit(text, "=", ")") {
		prob, label, ok := strings.Cut(segment, "(")
		if !ok || !strings.Contains(strings.ToLower(label), "antigen") {
			continue
		}
		v, err := parsePercent(prob)
		if err != nil {
			return nil, err
		}
		labels = append(labels, strings.TrimSpace(label))
		percents = append(percents, v*100)
	}
	return antigenColumns(labels, percents), nil
}

func newAllerTop2() adapter {
	return adapter{
		desc: Descriptor{
			Name:           AllerTop2,
			URL:            "https://www.ddg-pharmfac.net/AllerTOP/",
			Multi:          false,
			Encoding:       EncodingRaw,
			SequenceField:  "sequence",
			SubmitSelector: "input[name='Submit']",
			ResultSelector: "table[border='0']",
		},
		params: func(raw map[string]string) (Params, error) {
			return noParams(AllerTop2, raw)
		},
		extract: extractAllergen,
	}
}

func newAllergenFP1() adapter {
	return adapter{
		desc: Descriptor{
			Name:           AllergenFP1,
			URL:            "https://ddg-pharmfac.net/AllergenFP/",
			Multi:          false,
			Encoding:       EncodingRaw,
			SequenceField:  "sequence",
			SubmitSelector: "input[name='Submit']",
			ResultSelector: "table[border='0']",
		},
		params: func(raw map[string]string) (Params, error) {
			return noParams(AllergenFP1, raw)
		},
		extract: extractAllergen,
	}
}

// extractAllergen reads the label on the line after "Your sequence is:".
func extractAllergen(text string) (map[string][]float64, error) {
	labels := htmlutil.InnerSplit(text, "Your sequence is:", "\n")
	scores := make([]float64, 0, len(labels))
	for _, label := range labels {
		if label == "" {
			return nil, fmt.Errorf("%w: empty allergenicity label", ErrParse)
		}
		scores = append(scores, AllergenScore(label))
	}
	return map[string][]float64{ColumnScore: scores}, nil
}
