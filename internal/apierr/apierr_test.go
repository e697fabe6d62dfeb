package apierr

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/findius/findius/internal/llm"
	"github.com/findius/findius/internal/store"
	"github.com/findius/findius/pkg/creators"
)

func TestFrom(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		status   int
		category string
		code     string
		message  string
	}{
		{
			name:     "validation passes through",
			err:      Validation("Nachricht fehlt."),
			status:   http.StatusBadRequest,
			category: CategoryValidation,
			message:  "Nachricht fehlt.",
		},
		{
			name:     "wrapped api error",
			err:      eris.Wrap(NotFound("Seite nicht gefunden."), "handler"),
			status:   http.StatusNotFound,
			category: CategoryNotFound,
			message:  "Seite nicht gefunden.",
		},
		{
			name:     "product search failure",
			err:      &creators.Error{Code: creators.CodeRateLimit, Message: "too many"},
			status:   http.StatusServiceUnavailable,
			category: CategoryProduct,
			code:     "RATE_LIMIT",
			message:  MsgProductService,
		},
		{
			name:     "provider failure",
			err:      &llm.ProviderError{Provider: "openai", Err: errors.New("boom")},
			status:   http.StatusServiceUnavailable,
			category: CategoryAIService,
			code:     CodeChat,
			message:  MsgAIService,
		},
		{
			name:     "empty model answer",
			err:      eris.Wrap(llm.ErrEmptyResponse, "compare: questions"),
			status:   http.StatusServiceUnavailable,
			category: CategoryAIService,
			code:     CodeEmptyResponse,
			message:  MsgAIService,
		},
		{
			name:     "invalid model json",
			err:      eris.Wrap(llm.ErrInvalidJSON, "decode"),
			status:   http.StatusServiceUnavailable,
			category: CategoryAIService,
			code:     CodeInvalidJSON,
			message:  MsgAIService,
		},
		{
			name:     "store not found",
			err:      eris.Wrap(store.ErrNotFound, "sqlite: page x"),
			status:   http.StatusNotFound,
			category: CategoryNotFound,
			message:  MsgNotFound,
		},
		{
			name:     "store conflict",
			err:      eris.Wrap(store.ErrConflict, "sqlite: dup"),
			status:   http.StatusConflict,
			category: CategoryConflict,
			message:  "Dieser Eintrag existiert bereits.",
		},
		{
			name:     "deadline",
			err:      context.DeadlineExceeded,
			status:   http.StatusGatewayTimeout,
			category: CategoryTimeout,
			message:  MsgTimeout,
		},
		{
			name:     "unknown",
			err:      errors.New("disk on fire"),
			status:   http.StatusInternalServerError,
			category: CategoryInternal,
			message:  MsgDefault,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e := From(tt.err)
			require.NotNil(t, e)
			assert.Equal(t, tt.status, e.Status)
			assert.Equal(t, tt.category, e.Category)
			assert.Equal(t, tt.code, e.Code)
			assert.Equal(t, tt.message, e.Message)
		})
	}
}

func TestFrom_Nil(t *testing.T) {
	assert.Nil(t, From(nil))
}

func TestAIService_KeepsInnerCode(t *testing.T) {
	inner := AIService(CodeInvalidFormat, errors.New("no evaluations"))
	outer := AIService(CodeEvaluation, eris.Wrap(inner, "assistant"))
	assert.Equal(t, CodeInvalidFormat, outer.Code)
	assert.ErrorIs(t, outer, inner)
}

func TestError_Message(t *testing.T) {
	e := AIService(CodeAnalysis, errors.New("timeout"))
	assert.Equal(t, "AI Service Error: "+MsgAIService+" [ANALYSIS_ERROR]: timeout", e.Error())
}

func TestWrite(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", nil)

	Write(rec, req, AIService(CodeAnalysis, errors.New("upstream")))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))

	var body Body
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, Body{Error: CategoryAIService, Message: MsgAIService, Code: CodeAnalysis}, body)
}

func TestWrite_OmitsEmptyCode(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/me/dashboard", nil)

	Write(rec, req, Unauthorized())

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"Unauthorized","message":"Bitte melde dich an."}`, rec.Body.String())
}
