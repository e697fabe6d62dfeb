// Package apierr maps failures to HTTP responses with German user messages.
package apierr

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/findius/findius/internal/llm"
	"github.com/findius/findius/internal/store"
	"github.com/findius/findius/pkg/creators"
)

// User-facing messages.
const (
	MsgProductService = "Wir haben gerade Probleme beim Zugriff auf Produktinformationen. Bitte versuche es gleich nochmal."
	MsgAIService      = "Wir haben gerade Schwierigkeiten, deine Anfrage zu verarbeiten. Bitte versuche es gleich nochmal."
	MsgDefault        = "Etwas ist schiefgelaufen. Bitte versuche es erneut."
	MsgLogin          = "Bitte melde dich an."
	MsgNotFound       = "Nicht gefunden."
	MsgTooManyReqs    = "Zu viele Anfragen. Bitte warte einen Moment."
	MsgTimeout        = "Die Anfrage hat zu lange gedauert. Bitte versuche es erneut."
)

// Error categories, sent as the "error" field.
const (
	CategoryValidation = "Validation error"
	CategoryAuth       = "Unauthorized"
	CategoryForbidden  = "Forbidden"
	CategoryNotFound   = "Not found"
	CategoryConflict   = "Conflict"
	CategoryRateLimit  = "Too many requests"
	CategoryAIService  = "AI Service Error"
	CategoryProduct    = "Product Service Error"
	CategoryInternal   = "Internal Server Error"
	CategoryTimeout    = "Timeout"
)

// Machine codes for AI service failures.
const (
	CodeEmptyResponse = "EMPTY_RESPONSE"
	CodeInvalidJSON   = "INVALID_JSON"
	CodeInvalidFormat = "INVALID_FORMAT"
	CodeEvaluation    = "EVALUATION_ERROR"
	CodeAnalysis      = "ANALYSIS_ERROR"
	CodeChat          = "CHAT_ERROR"
	CodeGeneration    = "GENERATION_ERROR"
	CodeQuestions     = "QUESTIONS_ERROR"
)

// Error is a failure that knows how it is reported to the client.
type Error struct {
	Status   int
	Category string
	Code     string
	Message  string
	Err      error
}

func (e *Error) Error() string {
	s := e.Category + ": " + e.Message
	if e.Code != "" {
		s += " [" + e.Code + "]"
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

// Body is the JSON error response.
type Body struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Validation reports a bad request.
func Validation(msg string) *Error {
	return &Error{Status: http.StatusBadRequest, Category: CategoryValidation, Message: msg}
}

// Unauthorized reports a missing or invalid login.
func Unauthorized() *Error {
	return &Error{Status: http.StatusUnauthorized, Category: CategoryAuth, Message: MsgLogin}
}

// Forbidden reports an action on someone else's data.
func Forbidden(msg string) *Error {
	return &Error{Status: http.StatusForbidden, Category: CategoryForbidden, Message: msg}
}

// NotFound reports a missing resource.
func NotFound(msg string) *Error {
	if msg == "" {
		msg = MsgNotFound
	}
	return &Error{Status: http.StatusNotFound, Category: CategoryNotFound, Message: msg}
}

// Conflict reports a write that clashes with current state.
func Conflict(msg string) *Error {
	return &Error{Status: http.StatusConflict, Category: CategoryConflict, Message: msg}
}

// TooManyRequests reports a rate limited client.
func TooManyRequests() *Error {
	return &Error{Status: http.StatusTooManyRequests, Category: CategoryRateLimit, Message: MsgTooManyReqs}
}

// AIService reports a language model failure. A code already carried by
// err wins over code.
func AIService(code string, err error) *Error {
	var prev *Error
	if errors.As(err, &prev) && prev.Category == CategoryAIService && prev.Code != "" {
		code = prev.Code
	}
	return &Error{
		Status:   http.StatusServiceUnavailable,
		Category: CategoryAIService,
		Code:     code,
		Message:  MsgAIService,
		Err:      err,
	}
}

// ProductService reports a product search failure.
func ProductService(code string, err error) *Error {
	return &Error{
		Status:   http.StatusServiceUnavailable,
		Category: CategoryProduct,
		Code:     code,
		Message:  MsgProductService,
		Err:      err,
	}
}

// Internal reports an unexpected failure.
func Internal(err error) *Error {
	return &Error{Status: http.StatusInternalServerError, Category: CategoryInternal, Message: MsgDefault, Err: err}
}

// From classifies any error.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	var ce *creators.Error
	if errors.As(err, &ce) {
		return ProductService(string(ce.Code), err)
	}
	switch {
	case errors.Is(err, llm.ErrEmptyResponse):
		return AIService(CodeEmptyResponse, err)
	case errors.Is(err, llm.ErrInvalidJSON):
		return AIService(CodeInvalidJSON, err)
	case llm.IsProviderError(err):
		return AIService(CodeChat, err)
	case errors.Is(err, store.ErrNotFound):
		return NotFound("")
	case errors.Is(err, store.ErrConflict):
		return Conflict("Dieser Eintrag existiert bereits.")
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Status: http.StatusGatewayTimeout, Category: CategoryTimeout, Message: MsgTimeout, Err: err}
	}
	return Internal(err)
}

// Write sends err as a JSON error response. 5xx errors are logged at
// error level with the underlying cause.
func Write(w http.ResponseWriter, r *http.Request, err error) {
	e := From(err)
	if e.Status >= http.StatusInternalServerError {
		zap.L().Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", e.Status),
			zap.String("code", e.Code),
			zap.Error(err),
		)
	} else {
		zap.L().Debug("request rejected",
			zap.String("path", r.URL.Path),
			zap.Int("status", e.Status),
			zap.String("message", e.Message),
		)
	}
	WriteJSON(w, e.Status, Body{Error: e.Category, Message: e.Message, Code: e.Code})
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("write response", zap.Error(err))
	}
}
