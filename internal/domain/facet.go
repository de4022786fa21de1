package domain

import "strings"

// FacetDimension names a facet group.
type FacetDimension string

const (
	FacetDocumentTypes FacetDimension = "document_types"
	FacetLanguages     FacetDimension = "languages"
	FacetAuthors       FacetDimension = "authors"
	FacetStatuses      FacetDimension = "statuses"
)

// MaxAuthorFacets bounds the author facet.
const MaxAuthorFacets = 20

// FacetValue is one bucket of a facet.
type FacetValue struct {
	Value string `json:"value"`
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Facets is the full facet response.
type Facets struct {
	DocumentTypes []FacetValue `json:"document_types"`
	Languages     []FacetValue `json:"languages"`
	Authors       []FacetValue `json:"authors"`
	Statuses      []FacetValue `json:"statuses"`
	Total         int          `json:"total"`
}

var languageLabels = map[string]string{
	"en": "English",
	"es": "Spanish",
	"fr": "French",
	"pt": "Portuguese",
	"de": "German",
	"it": "Italian",
}

// LanguageLabel maps an ISO code to a display name, upper-casing unknown
// codes.
func LanguageLabel(code string) string {
	if l, ok := languageLabels[strings.ToLower(code)]; ok {
		return l
	}
	return strings.ToUpper(code)
}
