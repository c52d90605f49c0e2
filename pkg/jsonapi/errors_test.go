package jsonapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorBuilder(t *testing.T) {
	err := NewError(422, "validation_error", "Validation Failed").
		Detailf("%s is required", "code").
		ID("e1").
		Pointer("/code").
		Parameter("filter[code]").
		Build()

	assert.Equal(t, "422", err.Status)
	assert.Equal(t, 422, err.StatusCode())
	assert.Equal(t, "code is required", err.Detail)
	assert.Equal(t, "e1", err.ID)
	assert.Equal(t, "/code", err.Source.Pointer)
	assert.Equal(t, "filter[code]", err.Source.Parameter)
}

func TestErrValidation_Pointer(t *testing.T) {
	assert.Equal(t, "/name/en", ErrValidation("name.en", "is required").Source.Pointer)
	assert.Nil(t, ErrValidation("", "bad body").Source)
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		err    Error
		status int
		code   string
	}{
		{ErrBadRequest("x"), 400, "bad_request"},
		{ErrInvalidParameter("limit", "x"), 400, "invalid_parameter"},
		{ErrNotFound("Predefine"), 404, "not_found"},
		{ErrNotFoundWithID("Predefine", "p1"), 404, "not_found"},
		{ErrConflict("x"), 409, "conflict"},
		{ErrValidation("code", "x"), 422, "validation_error"},
		{ErrInternal(""), 500, "internal_error"},
		{ErrInternalWithID("req-1"), 500, "internal_error"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.status, tt.err.StatusCode(), tt.code)
		assert.Equal(t, tt.code, tt.err.Code)
	}
	assert.Equal(t, "The Predefine with ID 'p1' was not found", ErrNotFoundWithID("Predefine", "p1").Detail)
	assert.Equal(t, "req-1", ErrInternalWithID("req-1").ID)
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, ErrConflict("exists"), ErrValidation("code", "x"))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, ContentType, rec.Header().Get("Content-Type"))

	var doc Document
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Len(t, doc.Errors, 2)
	assert.Equal(t, Version, doc.JSONAPI.Version)
}

func TestWriteError_Empty(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
