package store

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"math"

	"github.com/arturoeanton/go-medqa-rag/internal/domain"
	"github.com/arturoeanton/go-medqa-rag/internal/port"
	"github.com/m-mizutani/goerr/v2"
)

// addPlan is the validated form of an Add call.
type addPlan struct {
	dimension int
	ids       []string
	metadatas []domain.Metadata
}

// planAdd checks an Add call against the collection state and assigns ids starting at nextSeq.
// Nothing is written when it fails.
func planAdd(collection string, dimension, nextSeq int, documents []string, embeddings []domain.Embedding, metadatas []domain.Metadata) (*addPlan, error) {
	if !domain.IsKnownCollection(collection) {
		return nil, goerr.Wrap(port.ErrUnknownCollection, "cannot add documents", goerr.V("collection", collection))
	}
	if len(documents) != len(embeddings) {
		return nil, goerr.Wrap(port.ErrLengthMismatch, "documents and embeddings differ in length",
			goerr.V("documents", len(documents)), goerr.V("embeddings", len(embeddings)))
	}
	if metadatas != nil && len(metadatas) != len(documents) {
		return nil, goerr.Wrap(port.ErrLengthMismatch, "documents and metadatas differ in length",
			goerr.V("documents", len(documents)), goerr.V("metadatas", len(metadatas)))
	}

	dim := dimension
	for i, e := range embeddings {
		if len(e) == 0 {
			return nil, goerr.Wrap(port.ErrDimensionMismatch, "empty embedding", goerr.V("index", i))
		}
		if dim == 0 {
			dim = len(e)
		}
		if len(e) != dim {
			return nil, goerr.Wrap(port.ErrDimensionMismatch, "embedding length differs from collection dimension",
				goerr.V("collection", collection), goerr.V("index", i), goerr.V("expected", dim), goerr.V("actual", len(e)))
		}
	}

	plan := &addPlan{
		dimension: dim,
		ids:       make([]string, len(documents)),
		metadatas: make([]domain.Metadata, len(documents)),
	}
	for i := range documents {
		plan.ids[i] = domain.DocumentID(collection, nextSeq+i)
		md := domain.Metadata{}
		if metadatas != nil && metadatas[i] != nil {
			for k, v := range metadatas[i] {
				if !domain.IsScalar(v) {
					return nil, goerr.Wrap(port.ErrInvalidMetadata, "metadata values must be scalar",
						goerr.V("index", i), goerr.V("key", k))
				}
				md[k] = v
			}
		}
		plan.metadatas[i] = md
	}
	return plan, nil
}

// checkQuery validates a query against a collection holding size documents of the given dimension.
// It returns false when the query can be answered with an empty result right away.
func checkQuery(collection string, dimension, size int, embedding domain.Embedding, k int) (bool, error) {
	if !domain.IsKnownCollection(collection) {
		return false, goerr.Wrap(port.ErrUnknownCollection, "cannot query", goerr.V("collection", collection))
	}
	if k <= 0 || size == 0 {
		return false, nil
	}
	if len(embedding) != dimension {
		return false, goerr.Wrap(port.ErrDimensionMismatch, "query embedding length differs from collection dimension",
			goerr.V("collection", collection), goerr.V("expected", dimension), goerr.V("actual", len(embedding)))
	}
	return true, nil
}

// cosineSimilarity returns a·b / (|a||b|), or 0 when either vector has zero norm.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// encodeVector stores a vector as little-endian float32 bytes.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, goerr.New("vector blob length is not a multiple of 4", goerr.V("length", len(b)))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, nil
}

func encodeMetadata(md domain.Metadata) (string, error) {
	if md == nil {
		md = domain.Metadata{}
	}
	raw, err := json.Marshal(md)
	if err != nil {
		return "", goerr.Wrap(err, "failed to encode metadata")
	}
	return string(raw), nil
}

func decodeMetadata(raw []byte) (domain.Metadata, error) {
	md := domain.Metadata{}
	if len(raw) == 0 {
		return md, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&md); err != nil {
		return nil, goerr.Wrap(err, "failed to decode metadata")
	}
	return md, nil
}
