package validator

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testStruct struct {
	FullName string `json:"fullName" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Age      int    `json:"age" validate:"gte=0,lte=150"`
}

func TestValidate_Success(t *testing.T) {
	s := testStruct{FullName: "Alice", Email: "alice@example.com", Age: 30}
	assert.NoError(t, Validate(s))
}

func TestValidate_MissingRequired_UsesJSONName(t *testing.T) {
	s := testStruct{Email: "alice@example.com", Age: 30}
	err := Validate(s)
	require.Error(t, err)

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	fields := valErr.Fields()
	assert.Contains(t, fields, "fullName")
	assert.Equal(t, "is required", fields["fullName"])
}

func TestValidate_InvalidEmail(t *testing.T) {
	s := testStruct{FullName: "Alice", Email: "not-an-email", Age: 30}
	err := Validate(s)
	require.Error(t, err)

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "must be a valid email address", valErr.Fields()["email"])
}

func TestValidate_OutOfRange(t *testing.T) {
	s := testStruct{FullName: "Alice", Email: "alice@example.com", Age: 200}
	err := Validate(s)
	require.Error(t, err)

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Contains(t, valErr.Fields()["age"], "150")
}

func TestValidationError_FieldErrors_DeclarationOrder(t *testing.T) {
	err := Validate(testStruct{})
	require.Error(t, err)

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	list := valErr.FieldErrors()
	require.Len(t, list, 2)
	assert.Equal(t, "fullName", list[0].Field)
	assert.Equal(t, "fullName is required", list[0].Message)
	assert.Equal(t, "email", list[1].Field)
}

func TestValidationError_ErrorString(t *testing.T) {
	err := Validate(testStruct{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "field 'fullName'")
	assert.Contains(t, err.Error(), "is required")
}

type formStruct struct {
	Username string `form:"username" validate:"required,min=3"`
	Secret   string `json:"-" validate:"max=5"`
}

func TestValidate_FormTagName(t *testing.T) {
	err := Validate(formStruct{Username: "ab"})
	require.Error(t, err)

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Contains(t, valErr.Fields()["username"], "at least 3")
}

type passwordChange struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,nefield=OldPassword"`
}

func TestValidate_NotEqualField(t *testing.T) {
	err := Validate(passwordChange{OldPassword: "same", NewPassword: "same"})
	require.Error(t, err)

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Contains(t, valErr.Fields()["newPassword"], "must differ")
}

func TestDecodeAndValidate_Success(t *testing.T) {
	body := `{"fullName":"Alice","email":"alice@example.com","age":25}`
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))

	var s testStruct
	err := DecodeAndValidate(req, &s)

	require.NoError(t, err)
	assert.Equal(t, "Alice", s.FullName)
	assert.Equal(t, "alice@example.com", s.Email)
	assert.Equal(t, 25, s.Age)
}

func TestDecodeAndValidate_InvalidJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{invalid"))

	var s testStruct
	err := DecodeAndValidate(req, &s)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode request body")
}

func TestDecodeAndValidate_ValidationFails(t *testing.T) {
	body := `{"fullName":"","email":"bad","age":25}`
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))

	var s testStruct
	err := DecodeAndValidate(req, &s)

	require.Error(t, err)
	var valErr *ValidationError
	assert.ErrorAs(t, err, &valErr)
}
