package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evalgo.org/tagscope/models"
)

func TestAPIError_Error(t *testing.T) {
	tests := []struct {
		name     string
		apiError *APIError
		want     string
	}{
		{
			name:     "error with details",
			apiError: &APIError{Code: 400, Message: "Bad Request", Details: "Invalid JSON format"},
			want:     "Bad Request: Invalid JSON format",
		},
		{
			name:     "error without details",
			apiError: &APIError{Code: 404, Message: "Not Found"},
			want:     "Not Found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.apiError.Error())
		})
	}
}

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      *APIError
		wantCode int
		wantMsg  string
	}{
		{"bad request", BadRequestError("Invalid input", "x"), http.StatusBadRequest, "Invalid input"},
		{"not found", NotFoundError("Report", "abc123"), http.StatusNotFound, "Report not found"},
		{"validation", ValidationError("Validation failed", map[string]string{"severity": "bad"}), http.StatusBadRequest, "Validation failed"},
		{"unprocessable", UnprocessableError("Invalid container", "x"), http.StatusUnprocessableEntity, "Invalid container"},
		{"internal", InternalError("Analysis failed", "x"), http.StatusInternalServerError, "Analysis failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantCode, tt.err.Code)
			assert.Equal(t, tt.wantMsg, tt.err.Message)
		})
	}

	nf := NotFoundError("Report", "abc123")
	assert.Equal(t, "abc123", nf.Context["id"])
}

func TestContainerError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"empty input", models.ErrEmptyInput, http.StatusUnprocessableEntity},
		{"not a container", fmt.Errorf("wrap: %w", models.ErrNotAContainer), http.StatusUnprocessableEntity},
		{"syntax error", errors.New("invalid character"), http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, containerError(tt.err).Code)
		})
	}
}

func TestHTTPErrorHandler(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		debug       bool
		wantCode    int
		wantDetails string
	}{
		{"api error", NotFoundError("Report", "x"), false, http.StatusNotFound, ""},
		{"echo error", echo.NewHTTPError(http.StatusTooManyRequests, "slow down"), false, http.StatusTooManyRequests, "slow down"},
		{"generic error hidden", errors.New("secret"), false, http.StatusInternalServerError, "An internal error occurred. Please try again later."},
		{"generic error in debug", errors.New("secret"), true, http.StatusInternalServerError, "secret"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			e.Debug = tt.debug
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

			HTTPErrorHandler(tt.err, c)

			assert.Equal(t, tt.wantCode, rec.Code)
			var body APIError
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantCode, body.Code)
			assert.Equal(t, tt.wantDetails, body.Details)
		})
	}
}

func TestGetHTTPMessage(t *testing.T) {
	tests := []struct {
		name string
		code int
		want string
	}{
		{"Bad Request", http.StatusBadRequest, "Bad request"},
		{"Not Found", http.StatusNotFound, "Resource not found"},
		{"Unprocessable", http.StatusUnprocessableEntity, "Unprocessable entity"},
		{"Unknown Code", 999, http.StatusText(999)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, getHTTPMessage(tt.code))
		})
	}
}
