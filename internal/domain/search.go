package domain

import "strings"

// SearchResult is one organic web search hit.
type SearchResult struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Link    string `json:"link"`
}

// Domain returns the host of Link without a leading "www.".
func (r SearchResult) Domain() string {
	s := r.Link
	if i := strings.Index(s, "//"); i >= 0 {
		s = s[i+2:]
	}
	if i := strings.Index(s, "/"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimPrefix(s, "www.")
}

// TrustedDomains is the allow-list symptom searches are restricted to.
var TrustedDomains = []string{"mayoclinic.org", "webmd.com", "nih.gov"}

// IsTrusted reports whether the result's domain is, or is a subdomain of, a trusted domain.
func (r SearchResult) IsTrusted() bool {
	d := r.Domain()
	for _, t := range TrustedDomains {
		if d == t || strings.HasSuffix(d, "."+t) {
			return true
		}
	}
	return false
}
