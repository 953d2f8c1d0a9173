package models

import "strings"

// Filters are the conjunctive search predicates for the plant catalog.
// Empty fields do not constrain the result.
type Filters struct {
	// Region matches any region tag containing the value, case-insensitively.
	Region string `json:"region,omitempty" firestore:"region,omitempty"`

	PlantType PlantType `json:"plantType,omitempty" firestore:"plantType,omitempty"`
	Family    string    `json:"family,omitempty" firestore:"family,omitempty"`

	// Origin is called "distribution" in the UI.
	Origin Origin `json:"distribution,omitempty" firestore:"distribution,omitempty"`

	ConservationStatus string `json:"conservationStatus,omitempty" firestore:"conservationStatus,omitempty"`

	// SearchTerm matches the scientific name or any common name, case-insensitively.
	SearchTerm string `json:"searchTerm,omitempty" firestore:"searchTerm,omitempty"`
}

// Matches reports whether p satisfies every set filter.
// It mirrors the local store's SQL predicate so merged remote rows obey the same rules.
func (f Filters) Matches(p *Plant) bool {
	if p == nil {
		return false
	}
	if f.PlantType != "" && p.PlantType != f.PlantType {
		return false
	}
	if f.Family != "" && p.Family != f.Family {
		return false
	}
	if f.Origin != "" && p.Origin != f.Origin {
		return false
	}
	if f.ConservationStatus != "" && p.Description.ConservationStatus != f.ConservationStatus {
		return false
	}
	if f.Region != "" && !anyContains(p.Regions, f.Region) {
		return false
	}
	if f.SearchTerm != "" &&
		!containsFold(p.ScientificName, f.SearchTerm) &&
		!anyContains(p.CommonNames, f.SearchTerm) {
		return false
	}
	return true
}

func anyContains(values []string, sub string) bool {
	for _, v := range values {
		if containsFold(v, sub) {
			return true
		}
	}
	return false
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

// SearchResult is one page of a catalog search.
type SearchResult struct {
	Records []*Plant `json:"plants"`

	// Total is the number of deduplicated matches before pagination.
	Total   int     `json:"total"`
	HasMore bool    `json:"hasMore"`
	Filters Filters `json:"filters"`
}
