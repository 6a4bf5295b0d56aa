package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name      string
		err       *AppError
		wantType  ErrorType
		status    int
		retryable bool
	}{
		{name: "validation", err: NewValidationError("bad"), wantType: ErrorTypeValidation, status: http.StatusBadRequest},
		{name: "not found", err: NewNotFoundError("graph"), wantType: ErrorTypeNotFound, status: http.StatusNotFound, retryable: true},
		{name: "conflict", err: NewConflictError("race"), wantType: ErrorTypeConflict, status: http.StatusConflict, retryable: true},
		{name: "database", err: NewDatabaseError("GetGraph", stderrors.New("io")), wantType: ErrorTypeDatabase, status: http.StatusInternalServerError, retryable: true},
		{name: "rate limit", err: NewRateLimitError(5), wantType: ErrorTypeRateLimit, status: http.StatusTooManyRequests, retryable: true},
		{name: "internal", err: NewInternalError("boom"), wantType: ErrorTypeInternal, status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantType, tt.err.Type)
			assert.Equal(t, tt.status, tt.err.HTTPStatus)
			assert.Equal(t, tt.retryable, IsRetryable(tt.err))
			assert.NotEmpty(t, tt.err.StackTrace)
		})
	}
}

func TestTypeSurvivesWrapping(t *testing.T) {
	base := NewNotFoundError("graph")
	wrapped := fmt.Errorf("query handler failed: %w", fmt.Errorf("outer: %w", base))

	assert.True(t, IsNotFound(wrapped))
	assert.False(t, IsValidation(wrapped))
	assert.Same(t, base, GetAppError(wrapped))
}

func TestDatabaseErrorKeepsCause(t *testing.T) {
	cause := stderrors.New("disk full")
	err := NewDatabaseError("UpsertProfiles", cause)

	assert.ErrorIs(t, err, cause)
	assert.True(t, IsDatabase(err))
	assert.Contains(t, err.Error(), "disk full")
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(nil, "ignored"))

	wrapped := Wrap(NewValidationError("name required"), "add people")
	assert.True(t, IsValidation(wrapped))
	assert.Equal(t, "add people: name required", GetAppError(wrapped).Message)

	plain := Wrap(stderrors.New("boom"), "something")
	assert.True(t, IsType(plain, ErrorTypeInternal))
}

func TestErrorHandler_Handle(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		debug      bool
		wantStatus int
		wantType   string
		wantCause  bool
	}{
		{name: "not found", err: NewNotFoundError("graph"), wantStatus: http.StatusNotFound, wantType: "NOT_FOUND"},
		{name: "validation", err: NewValidationError("bad"), wantStatus: http.StatusBadRequest, wantType: "VALIDATION"},
		{name: "database hides cause", err: NewDatabaseError("x", stderrors.New("secret")), wantStatus: http.StatusInternalServerError, wantType: "DATABASE"},
		{name: "database debug shows cause", err: NewDatabaseError("x", stderrors.New("secret")), debug: true, wantStatus: http.StatusInternalServerError, wantType: "DATABASE", wantCause: true},
		{name: "plain error", err: stderrors.New("boom"), wantStatus: http.StatusInternalServerError, wantType: "INTERNAL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewErrorHandler(zap.NewNop(), tt.debug)
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/graphs/x", nil)

			h.Handle(rec, req, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.True(t, body.Error)
			assert.Equal(t, tt.wantType, body.Type)
			_, hasCause := body.Details["cause"]
			assert.Equal(t, tt.wantCause, hasCause)
			assert.NotContains(t, body.Message, "secret")
		})
	}
}

func TestErrorHandler_MiddlewareRecoversPanics(t *testing.T) {
	h := NewErrorHandler(zap.NewNop(), false)
	handler := h.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("kaboom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
