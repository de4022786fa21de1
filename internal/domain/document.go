package domain

import (
	"slices"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// DocumentType is the closed set of searchable document kinds.
type DocumentType string

const (
	DocumentTypeArticle      DocumentType = "article"
	DocumentTypeProject      DocumentType = "project"
	DocumentTypePerson       DocumentType = "person"
	DocumentTypePartner      DocumentType = "partner"
	DocumentTypeSocialPost   DocumentType = "social_post"
	DocumentTypeNotification DocumentType = "notification"
)

// DocumentTypes returns every valid document type.
func DocumentTypes() []DocumentType {
	return []DocumentType{
		DocumentTypeArticle,
		DocumentTypeProject,
		DocumentTypePerson,
		DocumentTypePartner,
		DocumentTypeSocialPost,
		DocumentTypeNotification,
	}
}

// IsValid reports whether t is a known document type.
func (t DocumentType) IsValid() bool {
	return slices.Contains(DocumentTypes(), t)
}

// Label is the display form, e.g. "Social Post".
func (t DocumentType) Label() string {
	return TitleCase(string(t))
}

// DocKey identifies a document in the store.
type DocKey struct {
	ID   string       `json:"document_id"`
	Type DocumentType `json:"document_type"`
}

// String renders the key as "type/id".
func (k DocKey) String() string {
	return string(k.Type) + "/" + k.ID
}

// SearchVector holds the analyzed, de-duplicated and sorted terms of a
// document per weighted field. Title outranks content, content outranks
// author.
type SearchVector struct {
	Title   []string `json:"title,omitempty"`
	Content []string `json:"content,omitempty"`
	Author  []string `json:"author,omitempty"`
}

// HasPrefix reports whether any field holds a term equal to or starting
// with term.
func (v SearchVector) HasPrefix(term string) bool {
	for _, field := range [][]string{v.Title, v.Content, v.Author} {
		i, _ := slices.BinarySearch(field, term)
		if i < len(field) && strings.HasPrefix(field[i], term) {
			return true
		}
	}
	return false
}

// Document is one searchable unit sourced from an upstream service.
type Document struct {
	DocumentID   string         `json:"document_id" validate:"required,max=255"`
	DocumentType DocumentType   `json:"document_type" validate:"required,oneof=article project person partner social_post notification"`
	Title        string         `json:"title" validate:"required,max=500"`
	Content      string         `json:"content" validate:"required"`
	Language     string         `json:"language" validate:"required,max=10"`
	AuthorID     string         `json:"author_id,omitempty" validate:"max=255"`
	AuthorName   string         `json:"author_name,omitempty" validate:"max=200"`
	Status       string         `json:"status,omitempty" validate:"max=50"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	SearchVector SearchVector   `json:"search_vector"`
	PublishedAt  *time.Time     `json:"published_at,omitempty"`
	IndexedAt    time.Time      `json:"indexed_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// Key returns the document identity.
func (d *Document) Key() DocKey {
	return DocKey{ID: d.DocumentID, Type: d.DocumentType}
}

// MetadataString renders metadata[key] for equality filtering. Missing
// keys report ok=false.
func (d *Document) MetadataString(key string) (string, bool) {
	v, ok := d.Metadata[key]
	if !ok || v == nil {
		return "", false
	}
	return scalarString(v), true
}

// TitleCase turns "social_post" or "in review" into "Social Post" /
// "In Review".
func TitleCase(s string) string {
	words := strings.Fields(strings.ReplaceAll(s, "_", " "))
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + strings.ToLower(w[size:])
	}
	return strings.Join(words, " ")
}
