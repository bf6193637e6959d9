package evaluate

// Series is one score per input sequence, in set order.
type Series []float64

// Columns are named per-sequence values, see tools.ColumnScore.
type Columns map[string][]float64

// Append concatenates batch onto c key by key. Calling it once per chunk in chunk order
// keeps values aligned with the input sequences.
func (c Columns) Append(batch Columns) {
	for key, values := range batch {
		c[key] = append(c[key], values...)
	}
}
