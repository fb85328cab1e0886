package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApiErrorIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", CreateNotFoundError("跟进记录"))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrValidation)

	dep := CreateDependencyUnavailableError(errors.New("dial tcp: connection refused"))
	assert.ErrorIs(t, dep, ErrDependencyUnavailable)
	assert.Contains(t, dep.Error(), "connection refused")

	assert.Equal(t, ErrCodeInvalidTransition, ErrorKind(CreateInvalidTransitionError("x")))
	assert.Equal(t, ErrCodeInternal, ErrorKind(errors.New("boom")))
}

func TestHandleErrorStatusCodes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{CreateNotFoundError("x"), http.StatusNotFound, ErrCodeNotFound},
		{CreateValidationError("x"), http.StatusBadRequest, ErrCodeValidation},
		{CreateInvalidTransitionError("x"), http.StatusConflict, ErrCodeInvalidTransition},
		{CreateDependencyUnavailableError(errors.New("x")), http.StatusServiceUnavailable, ErrCodeDependencyUnavailable},
		{CreateUnauthorizedError(), http.StatusUnauthorized, ErrCodeUnauthorized},
		{errors.New("unexpected"), http.StatusInternalServerError, ErrCodeInternal},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/api/follow-ups", nil)

		HandleError(c, tc.err)

		assert.Equal(t, tc.status, w.Code)
		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, false, body["success"])
		assert.Equal(t, tc.code, body["code"])
	}
}

func TestParseDate(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)

	got, err := ParseDate("2025-02-01", ist)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 2, 1, 0, 0, 0, 0, ist), got)

	got, err = ParseDate("2025-02-01T09:30:00Z", ist)
	require.NoError(t, err)
	assert.True(t, time.Date(2025, 2, 1, 9, 30, 0, 0, time.UTC).Equal(got))

	got, err = ParseDate("2025-02-01 09:30:00", ist)
	require.NoError(t, err)
	assert.Equal(t, 9, got.Hour())

	_, err = ParseDate("01/02/2025", ist)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = ParseDate("", ist)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestTokenRoundTrip(t *testing.T) {
	SetJWTSecret("utils-test-secret")

	token, err := GenerateToken("user-7", "asha", "supervisor", time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-7", claims["id"])
	assert.Equal(t, "supervisor", claims["role"])

	SetJWTSecret("another-secret")
	_, err = ParseToken(token)
	assert.Error(t, err)
}

func TestGetUserFromClaims(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	_, err := GetUser(c)
	assert.Error(t, err)

	c.Set("user", map[string]interface{}{"id": "u-1", "name": "Ravi", "role": "staff"})
	user, err := GetUser(c)
	require.NoError(t, err)
	assert.Equal(t, &LoginUser{ID: "u-1", Role: "staff", Username: "Ravi"}, user)

	c.Set("user", map[string]interface{}{"username": "no id"})
	_, err = GetUser(c)
	assert.Error(t, err)
}
