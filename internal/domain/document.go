package domain

import (
	"fmt"
	"strconv"
)

// Collection names. Both are created at store initialization.
const (
	CollectionDischargeNotes = "discharge_notes"
	CollectionClinicalTrials = "clinical_trials"
)

// Collections lists every collection a store must provide.
var Collections = []string{CollectionDischargeNotes, CollectionClinicalTrials}

var idPrefixes = map[string]string{
	CollectionDischargeNotes: "note",
	CollectionClinicalTrials: "trial",
}

// IsKnownCollection reports whether name is one of Collections.
func IsKnownCollection(name string) bool {
	_, ok := idPrefixes[name]
	return ok
}

// DocumentID returns the sequential id of the i-th document of a collection, e.g. "note_3".
func DocumentID(collection string, i int) string {
	prefix, ok := idPrefixes[collection]
	if !ok {
		prefix = collection
	}
	return prefix + "_" + strconv.Itoa(i)
}

// Metadata keys written by ingestion.
const (
	MetaSubjectID = "subject_id"
	MetaHadmID    = "hadm_id"
	MetaNCTID     = "nct_id"
)

// Metadata maps string keys to scalar values (string, integer, float, bool).
type Metadata map[string]any

// String returns the value under key formatted as text, or fallback when absent or empty.
func (m Metadata) String(key, fallback string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return fallback
	}
	s := fmt.Sprint(v)
	if s == "" {
		return fallback
	}
	return s
}

// IsScalar reports whether v may be stored as a metadata value.
func IsScalar(v any) bool {
	switch v.(type) {
	case string, bool, int, int32, int64, uint, uint32, uint64, float32, float64:
		return true
	}
	return false
}

// Document is one record of a collection.
type Document struct {
	ID       string   `json:"id"`
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata,omitempty"`
	// Score is the cosine similarity to the query; set only on retrieval.
	Score float64 `json:"score"`
}

// RetrievalResult holds up to k documents ordered closest first.
type RetrievalResult struct {
	Collection string     `json:"collection"`
	Documents  []Document `json:"documents"`
}

// Empty reports whether nothing was retrieved.
func (r RetrievalResult) Empty() bool { return len(r.Documents) == 0 }

// Texts returns the document texts in rank order.
func (r RetrievalResult) Texts() []string {
	out := make([]string, len(r.Documents))
	for i, d := range r.Documents {
		out[i] = d.Text
	}
	return out
}
