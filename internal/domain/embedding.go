package domain

// Embedding is a dense vector representation of one text.
type Embedding []float32

// Dimension returns the vector length.
func (e Embedding) Dimension() int { return len(e) }

// Float64 converts the vector for clients that speak float64.
func (e Embedding) Float64() []float64 {
	out := make([]float64, len(e))
	for i, v := range e {
		out[i] = float64(v)
	}
	return out
}

// EmbeddingFromFloat64 narrows a float64 vector.
func EmbeddingFromFloat64(v []float64) Embedding {
	out := make(Embedding, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}
