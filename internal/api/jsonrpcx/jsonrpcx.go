package jsonrpcx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"

	"github.com/danghamo/accountd/internal/domain/shared"
)

// JSONRPCRequest represents a JSON-RPC 2.0 request
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      any             `json:"id,omitempty"`
}

// JSONRPCResponse represents a JSON-RPC 2.0 response
type JSONRPCResponse struct {
	JSONRPC string        `json:"jsonrpc"`
	Result  any           `json:"result,omitempty"`
	Error   *JSONRPCError `json:"error,omitempty"`
	ID      any           `json:"id,omitempty"`
}

// JSONRPCError represents a JSON-RPC 2.0 error
type JSONRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// JSONRPCNotification is a JSON-RPC 2.0 request without id, pushed to SSE clients
type JSONRPCNotification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// RequestT documents a request with typed params
type RequestT[T any] struct {
	JSONRPC string `json:"jsonrpc" example:"2.0"`
	Method  string `json:"method"`
	Params  T      `json:"params"`
	ID      any    `json:"id,omitempty"`
}

// ResponseT documents a successful response with a typed result
type ResponseT[T any] struct {
	JSONRPC string `json:"jsonrpc" example:"2.0"`
	Result  T      `json:"result"`
	ID      any    `json:"id,omitempty"`
}

// ErrorResponse documents an error response
type ErrorResponse struct {
	JSONRPC string       `json:"jsonrpc" example:"2.0"`
	Error   JSONRPCError `json:"error"`
	ID      any          `json:"id,omitempty"`
}

// JSON-RPC 2.0 error codes
const (
	ParseError     = -32700
	InvalidRequest = -32600
	MethodNotFound = -32601
	InvalidParams  = -32602
	InternalError  = -32603

	// Server defined errors
	Unauthorized         = -32001
	AccountNotFound      = -32004
	UnsupportedOperation = -32005
)

var errInvalidVersion = errors.New("jsonrpc version must be 2.0")

type contextKey string

const (
	errorContextKey contextKey = "jsonrpc_error"
	errorSlotKey    contextKey = "jsonrpc_error_slot"
)

// errorSlot survives requests derived with WithContext further down the chain
type errorSlot struct {
	mutex    sync.Mutex
	response *JSONRPCResponse
}

// NewNotification creates a notification for method
func NewNotification(method string, params any) JSONRPCNotification {
	return JSONRPCNotification{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
	}
}

// ParseRequest parses JSON-RPC 2.0 request from HTTP request body
func ParseRequest(r *http.Request) (*JSONRPCRequest, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	defer r.Body.Close()

	var req JSONRPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, err
	}

	if req.JSONRPC != "2.0" {
		return nil, errInvalidVersion
	}

	return &req, nil
}

// ParseParams decodes the request params into v
func ParseParams(req *JSONRPCRequest, v any) error {
	if len(req.Params) == 0 || bytes.Equal(req.Params, []byte("null")) {
		return errors.New("params are required")
	}
	return json.Unmarshal(req.Params, v)
}

// Success sends a successful JSON-RPC 2.0 response
func Success(w http.ResponseWriter, id any, result any) {
	response := JSONRPCResponse{
		JSONRPC: "2.0",
		Result:  result,
		ID:      id,
	}

	Response(w, response)
}

// WithErrorSlot prepares r so that errors set on any request derived from it
// are visible to ErrorFrom(r.Context())
func WithErrorSlot(r *http.Request) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), errorSlotKey, &errorSlot{}))
}

// WithError attaches an error to the request context for middleware processing
func WithError(r *http.Request, id any, code int, message string) {
	if slot, ok := r.Context().Value(errorSlotKey).(*errorSlot); ok {
		response := errorResponse(id, code, message)
		slot.mutex.Lock()
		slot.response = &response
		slot.mutex.Unlock()
		return
	}
	*r = *SetError(r, id, code, message)
}

// WithDomainError maps a domain error to a JSON-RPC error and attaches it to the request
func WithDomainError(r *http.Request, id any, err error) {
	code, message := FromDomainError(err)
	WithError(r, id, code, message)
}

// FromDomainError maps a domain error code to a JSON-RPC error code
func FromDomainError(err error) (int, string) {
	message := err.Error()

	switch shared.CodeOf(err) {
	case shared.ErrCodeInvalidInput:
		return InvalidParams, message
	case shared.ErrCodeUnknownAccountKey, shared.ErrCodeNotFound:
		return AccountNotFound, message
	case shared.ErrCodeInvalidToken:
		return Unauthorized, message
	case shared.ErrCodeUnsupportedPreferenceKind, shared.ErrCodeInvalidOperation:
		return UnsupportedOperation, message
	default:
		return InternalError, "Internal server error"
	}
}

// ErrorFrom returns the JSON-RPC error attached to the request context, if any
func ErrorFrom(ctx context.Context) (*JSONRPCResponse, bool) {
	if slot, ok := ctx.Value(errorSlotKey).(*errorSlot); ok {
		slot.mutex.Lock()
		defer slot.mutex.Unlock()
		if slot.response != nil {
			return slot.response, true
		}
	}
	response, ok := ctx.Value(errorContextKey).(*JSONRPCResponse)
	return response, ok
}

// ErrorAdapter interface for middleware to send error responses
type ErrorAdapter interface {
	SendError(w http.ResponseWriter, id any, code int, message string)
}

// errorAdapter is the private implementation of ErrorAdapter
type errorAdapter struct{}

// NewErrorAdapter creates a new error adapter for middleware use
func NewErrorAdapter() ErrorAdapter {
	return &errorAdapter{}
}

// SendError sends an error JSON-RPC 2.0 response (only accessible through ErrorAdapter)
func (ea *errorAdapter) SendError(w http.ResponseWriter, id any, code int, message string) {
	Response(w, errorResponse(id, code, message))
}

// SetError stores a JSON-RPC error in the request context for middleware processing
func SetError(r *http.Request, id any, code int, message string) *http.Request {
	response := errorResponse(id, code, message)
	ctx := context.WithValue(r.Context(), errorContextKey, &response)
	return r.WithContext(ctx)
}

func errorResponse(id any, code int, message string) JSONRPCResponse {
	return JSONRPCResponse{
		JSONRPC: "2.0",
		Error: &JSONRPCError{
			Code:    code,
			Message: message,
		},
		ID: id,
	}
}

// Response sends a JSON-RPC 2.0 response (always HTTP 200)
func Response(w http.ResponseWriter, response JSONRPCResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK) // JSON-RPC always returns HTTP 200

	// Encode response - if error occurs, it will be logged by middleware
	json.NewEncoder(w).Encode(response)
}
