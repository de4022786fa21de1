package validator

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/contentsearch/pkg/errors"
)

type testDocument struct {
	DocumentID   string `json:"document_id" validate:"required"`
	DocumentType string `json:"document_type" validate:"required,oneof=article project"`
	Title        string `json:"title" validate:"max=10"`
}

type testBatch struct {
	Documents []testDocument `json:"documents" validate:"required,min=1,dive"`
}

func fieldsOf(t *testing.T, err error) map[string]string {
	t.Helper()
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T", err)
	assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
	return appErr.Fields
}

func TestValidate_Success(t *testing.T) {
	assert.NoError(t, Validate(testDocument{DocumentID: "1", DocumentType: "article"}))
}

func TestValidate_UsesJSONFieldNames(t *testing.T) {
	err := Validate(testDocument{DocumentType: "article"})
	fields := fieldsOf(t, err)
	assert.Equal(t, "is required", fields["document_id"])
}

func TestValidate_OneOf(t *testing.T) {
	err := Validate(testDocument{DocumentID: "1", DocumentType: "recipe"})
	fields := fieldsOf(t, err)
	assert.Equal(t, "must be one of: article project", fields["document_type"])
}

func TestValidate_MaxLength(t *testing.T) {
	err := Validate(testDocument{DocumentID: "1", DocumentType: "article", Title: "far too long a title"})
	fields := fieldsOf(t, err)
	assert.Equal(t, "must be at most 10 characters", fields["title"])
}

func TestValidate_NestedPath(t *testing.T) {
	err := Validate(testBatch{Documents: []testDocument{
		{DocumentID: "1", DocumentType: "article"},
		{DocumentType: "article"},
	}})
	fields := fieldsOf(t, err)
	assert.Contains(t, fields, "documents[1].document_id")
}

func TestValidate_EmptySlice(t *testing.T) {
	err := Validate(testBatch{Documents: []testDocument{}})
	fields := fieldsOf(t, err)
	assert.Equal(t, "must contain at least 1 items", fields["documents"])
}

func TestDecodeAndValidate(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"document_id":"a","document_type":"project"}`))
	var doc testDocument
	require.NoError(t, DecodeAndValidate(httptest.NewRecorder(), req, &doc))
	assert.Equal(t, "project", doc.DocumentType)
}

func TestDecodeJSON_Malformed(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{not json`))
	var doc testDocument
	err := DecodeJSON(httptest.NewRecorder(), req, &doc)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}

func TestDecodeJSON_EmptyBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	var doc testDocument
	err := DecodeJSON(httptest.NewRecorder(), req, &doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
}
