package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/mesa/pkg/errorbank"
)

func record(t *testing.T, build func(b *Builder) error) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, build(New(c)))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestBuildSuccess(t *testing.T) {
	rec, body := record(t, func(b *Builder) error {
		return b.WithStatus(http.StatusCreated).WithMessage("Order created").WithData(map[string]any{"id": 1}).Build()
	})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Order created", body["message"])
	require.NotNil(t, body["data"])
}

func TestBuildErrorStatusFromKind(t *testing.T) {
	cases := map[string]struct {
		err    error
		status int
	}{
		"bad request":        {errorbank.BadRequest("bad"), http.StatusBadRequest},
		"invalid state":      {errorbank.InvalidState("state"), http.StatusBadRequest},
		"invalid transition": {errorbank.InvalidTransition("move"), http.StatusBadRequest},
		"policy violation":   {errorbank.PolicyViolation("window"), http.StatusBadRequest},
		"forbidden":          {errorbank.Forbidden("denied"), http.StatusBadRequest},
		"unauthenticated":    {errorbank.Unauthenticated("token"), http.StatusUnauthorized},
		"conflict":           {errorbank.Conflict("dup"), http.StatusConflict},
		"not found":          {errorbank.NotFound("missing"), http.StatusNotFound},
		"internal":           {errorbank.Internal("boom"), http.StatusInternalServerError},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			rec, body := record(t, func(b *Builder) error {
				return b.WithError(tc.err).Build()
			})
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, false, body["success"])
			assert.NotEmpty(t, body["message"])

			data, present := body["data"]
			assert.True(t, present)
			assert.Nil(t, data)
		})
	}
}

func TestBuildErrorValidationDetails(t *testing.T) {
	err := errorbank.BadRequest("validation failed", errorbank.WithDetails(map[string]any{
		"meals_per_day": "meals per day must be between 1 and 3",
	}))

	rec, body := record(t, func(b *Builder) error {
		return b.WithError(err).Build()
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	errs, ok := body["errors"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "meals per day must be between 1 and 3", errs["meals_per_day"])

	data, present := body["data"]
	assert.True(t, present)
	assert.Nil(t, data)
}
