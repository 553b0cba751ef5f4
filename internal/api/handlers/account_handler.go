package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/danghamo/accountd/internal/api/jsonrpcx"
	"github.com/danghamo/accountd/internal/app/session"
	"github.com/danghamo/accountd/internal/domain/shared"
	"github.com/danghamo/accountd/pkg/logger"
)

// AccountHandler exposes the account provider over JSON-RPC
type AccountHandler struct {
	logger   *logger.Logger
	provider *session.Provider
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(logger *logger.Logger, provider *session.Provider) *AccountHandler {
	return &AccountHandler{
		logger:   logger.WithComponent("account-handler"),
		provider: provider,
	}
}

// GetAccountRequest names an account by key
type GetAccountRequest struct {
	AccountKey string `json:"account_key"`
}

// FromArgsRequest resolves the account whose key is stored in Arguments under Key
type FromArgsRequest struct {
	Arguments map[string]string `json:"arguments"`
	Key       string            `json:"key"`
}

// RemoveAccountsRequest lists the accounts to forget
type RemoveAccountsRequest struct {
	AccountKeys []string `json:"account_keys"`
}

// RemoveAccountsResponse reports the keys that were actually removed
type RemoveAccountsResponse struct {
	Removed []string        `json:"removed"`
	Current AccountResponse `json:"current"`
}

// SignedInResponse reports whether the current account is signed in
type SignedInResponse struct {
	SignedIn bool `json:"signed_in"`
}

// Current handles POST /api/v1/account.Current
// @Summary Get the current account
// @Tags account
// @Accept json
// @Produce json
// @Param request body jsonrpcx.RequestT[any] true "JSON-RPC request"
// @Success 200 {object} jsonrpcx.ResponseT[AccountResponse] "Current account"
// @Failure 200 {object} jsonrpcx.ErrorResponse "No current account"
// @Router /api/v1/account.Current [post]
func (h *AccountHandler) Current(w http.ResponseWriter, r *http.Request) {
	req, ok := parseRequest(r)
	if !ok {
		return
	}

	current, ok := h.provider.CurrentAccount()
	if !ok {
		jsonrpcx.WithDomainError(r, req.ID, shared.ErrNotFound("current account"))
		return
	}

	jsonrpcx.Success(w, req.ID, toAccountResponse(current))
}

// Get handles POST /api/v1/account.Get
// @Summary Get an account by key
// @Tags account
// @Accept json
// @Produce json
// @Param request body jsonrpcx.RequestT[GetAccountRequest] true "JSON-RPC request with GetAccountRequest params"
// @Success 200 {object} jsonrpcx.ResponseT[AccountResponse] "Account"
// @Failure 200 {object} jsonrpcx.ErrorResponse "Unknown account key"
// @Router /api/v1/account.Get [post]
func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	req, ok := parseRequest(r)
	if !ok {
		return
	}

	var params GetAccountRequest
	if !parseParams(r, req, &params) {
		return
	}

	identity, err := h.provider.AccountByKey(params.AccountKey)
	if err != nil {
		jsonrpcx.WithDomainError(r, req.ID, err)
		return
	}

	jsonrpcx.Success(w, req.ID, toAccountResponse(identity))
}

// IsSignedIn handles POST /api/v1/account.IsSignedIn
func (h *AccountHandler) IsSignedIn(w http.ResponseWriter, r *http.Request) {
	req, ok := parseRequest(r)
	if !ok {
		return
	}

	jsonrpcx.Success(w, req.ID, SignedInResponse{SignedIn: h.provider.IsSignedIn()})
}

// FromArgs handles POST /api/v1/account.FromArgs
// @Summary Resolve an account key stored in an argument map
// @Tags account
// @Accept json
// @Produce json
// @Param request body jsonrpcx.RequestT[FromArgsRequest] true "JSON-RPC request with FromArgsRequest params"
// @Success 200 {object} jsonrpcx.ResponseT[AccountResponse] "Account"
// @Router /api/v1/account.FromArgs [post]
func (h *AccountHandler) FromArgs(w http.ResponseWriter, r *http.Request) {
	req, ok := parseRequest(r)
	if !ok {
		return
	}

	var params FromArgsRequest
	if !parseParams(r, req, &params) {
		return
	}

	identity, err := h.provider.AccountFromArgs(params.Arguments, params.Key)
	if err != nil {
		jsonrpcx.WithDomainError(r, req.ID, err)
		return
	}

	jsonrpcx.Success(w, req.ID, toAccountResponse(identity))
}

// List handles POST /api/v1/account.List
func (h *AccountHandler) List(w http.ResponseWriter, r *http.Request) {
	req, ok := parseRequest(r)
	if !ok {
		return
	}

	identities := h.provider.Accounts()
	accounts := make([]AccountResponse, 0, len(identities))
	for _, identity := range identities {
		accounts = append(accounts, toAccountResponse(identity))
	}

	jsonrpcx.Success(w, req.ID, accounts)
}

// HandleRemove handles POST /api/v1/account.Remove. Registered behind auth.
// @Summary Forget accounts
// @Description Removes accounts from the registry. Removing the current account makes the fallback account current.
// @Tags account
// @Accept json
// @Produce json
// @Param request body jsonrpcx.RequestT[RemoveAccountsRequest] true "JSON-RPC request with RemoveAccountsRequest params"
// @Success 200 {object} jsonrpcx.ResponseT[RemoveAccountsResponse] "Removed keys"
// @Failure 200 {object} jsonrpcx.ErrorResponse "Authentication required"
// @Security BearerAuth
// @Router /api/v1/account.Remove [post]
func (h *AccountHandler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	req, ok := parseRequest(r)
	if !ok {
		return
	}

	var params RemoveAccountsRequest
	if !parseParams(r, req, &params) {
		return
	}
	if len(params.AccountKeys) == 0 {
		jsonrpcx.WithError(r, req.ID, jsonrpcx.InvalidParams, "account_keys cannot be empty")
		return
	}

	removed := h.provider.RemoveAccounts(params.AccountKeys...)
	current, _ := h.provider.CurrentAccount()

	h.logger.Info("Accounts removed via API",
		zap.Strings("requested", params.AccountKeys),
		zap.Strings("removed", removed))

	jsonrpcx.Success(w, req.ID, RemoveAccountsResponse{
		Removed: removed,
		Current: toAccountResponse(current),
	})
}
