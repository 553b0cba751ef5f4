package handlers

import (
	"net/http"

	"github.com/danghamo/accountd/internal/api/jsonrpcx"
	"github.com/danghamo/accountd/internal/domain/account"
)

// AccountResponse is the wire form of an account identity
type AccountResponse struct {
	AccountKey     string `json:"account_key"`
	Name           string `json:"name"`
	SignedIn       bool   `json:"signed_in"`
	FilesDirectory string `json:"files_directory"`
}

func toAccountResponse(identity account.Identity) AccountResponse {
	return AccountResponse{
		AccountKey:     identity.Key(),
		Name:           identity.Name(),
		SignedIn:       identity.SignedIn(),
		FilesDirectory: identity.FilesDirectory(),
	}
}

// parseRequest accepts POST JSON-RPC requests only. On failure the error is
// attached to r and false is returned.
func parseRequest(r *http.Request) (*jsonrpcx.JSONRPCRequest, bool) {
	if r.Method != http.MethodPost {
		jsonrpcx.WithError(r, nil, jsonrpcx.MethodNotFound, "Method not allowed")
		return nil, false
	}

	req, err := jsonrpcx.ParseRequest(r)
	if err != nil {
		jsonrpcx.WithError(r, nil, jsonrpcx.ParseError, "Invalid JSON-RPC request")
		return nil, false
	}
	return req, true
}

// parseParams decodes params into v, attaching InvalidParams on failure
func parseParams(r *http.Request, req *jsonrpcx.JSONRPCRequest, v any) bool {
	if err := jsonrpcx.ParseParams(req, v); err != nil {
		jsonrpcx.WithError(r, req.ID, jsonrpcx.InvalidParams, "Invalid params")
		return false
	}
	return true
}
