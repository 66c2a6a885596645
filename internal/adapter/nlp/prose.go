package nlp

import (
	"strings"

	"github.com/arturoeanton/go-medqa-rag/internal/port"
	"github.com/jdkato/prose/v2"
)

// ProseExtractor implements port.PhraseExtractor with prose's part-of-speech
// tagger and a small noun-phrase chunker on top of it.
type ProseExtractor struct{}

var _ port.PhraseExtractor = ProseExtractor{}

// NewProseExtractor returns a noun phrase extractor.
func NewProseExtractor() ProseExtractor {
	return ProseExtractor{}
}

// NounPhrases returns the noun phrases of text in order of appearance.
// Tagging failures yield no phrases.
func (ProseExtractor) NounPhrases(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	doc, err := prose.NewDocument(text,
		prose.WithSegmentation(false),
		prose.WithExtraction(false),
	)
	if err != nil {
		return nil
	}

	tokens := doc.Tokens()
	tagged := make([]taggedWord, len(tokens))
	for i, tok := range tokens {
		tagged[i] = taggedWord{text: tok.Text, tag: tok.Tag}
	}
	return chunk(tagged)
}

type taggedWord struct {
	text string
	tag  string
}

func isNoun(tag string) bool {
	return strings.HasPrefix(tag, "NN") || tag == "VBG"
}

func isModifier(tag string) bool {
	return strings.HasPrefix(tag, "JJ")
}

// isJoiner accepts the prepositions that keep compounds like
// "shortness of breath" or "pressure in chest" together.
func isJoiner(w taggedWord) bool {
	if w.tag != "IN" {
		return false
	}
	switch strings.ToLower(w.text) {
	case "of", "in":
		return true
	}
	return false
}

// chunk groups runs of modifiers and nouns. A run is emitted only if it holds a noun.
func chunk(words []taggedWord) []string {
	var phrases []string
	var current []string
	hasNoun := false

	flush := func() {
		if hasNoun && len(current) > 0 {
			phrases = append(phrases, strings.Join(current, " "))
		}
		current = current[:0]
		hasNoun = false
	}

	for i, w := range words {
		switch {
		case isNoun(w.tag):
			current = append(current, w.text)
			hasNoun = true
		case isModifier(w.tag):
			current = append(current, w.text)
		case isJoiner(w) && hasNoun && i+1 < len(words) && (isNoun(words[i+1].tag) || isModifier(words[i+1].tag)):
			current = append(current, w.text)
		default:
			flush()
		}
	}
	flush()
	return phrases
}
