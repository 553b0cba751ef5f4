package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/danghamo/accountd/internal/api/jsonrpcx"
	"github.com/danghamo/accountd/internal/api/middleware"
	"github.com/danghamo/accountd/internal/app/session"
	"github.com/danghamo/accountd/internal/domain/account"
	"github.com/danghamo/accountd/pkg/logger"
)

// AuthHandler turns identity source tokens into current account changes
type AuthHandler struct {
	logger     *logger.Logger
	provider   *session.Provider
	jwtService *account.JWTService
	fallback   account.Identity
}

// NewAuthHandler creates a new auth handler. fallback becomes current on sign out.
func NewAuthHandler(
	logger *logger.Logger,
	provider *session.Provider,
	jwtService *account.JWTService,
	fallback account.Identity,
) *AuthHandler {
	return &AuthHandler{
		logger:     logger.WithComponent("auth-handler"),
		provider:   provider,
		jwtService: jwtService,
		fallback:   fallback,
	}
}

// SignInRequest carries a token issued by the identity source
type SignInRequest struct {
	Token string `json:"token"`
}

// SignIn handles POST /api/v1/auth.SignIn
// @Summary Sign in with an identity token
// @Description Validates the token and makes the account it names current
// @Tags auth
// @Accept json
// @Produce json
// @Param request body jsonrpcx.RequestT[SignInRequest] true "JSON-RPC request with SignInRequest params"
// @Success 200 {object} jsonrpcx.ResponseT[AccountResponse] "New current account"
// @Failure 200 {object} jsonrpcx.ErrorResponse "Invalid token"
// @Router /api/v1/auth.SignIn [post]
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	req, ok := parseRequest(r)
	if !ok {
		return
	}

	var params SignInRequest
	if !parseParams(r, req, &params) {
		return
	}
	if params.Token == "" {
		jsonrpcx.WithError(r, req.ID, jsonrpcx.InvalidParams, "token is required")
		return
	}

	identity, err := h.jwtService.IdentityFromToken(params.Token)
	if err != nil {
		h.logger.Debug("Sign in rejected", zap.Error(err))
		jsonrpcx.WithDomainError(r, req.ID, err)
		return
	}

	if err := h.provider.SetCurrentAccount(identity); err != nil {
		jsonrpcx.WithDomainError(r, req.ID, err)
		return
	}

	jsonrpcx.Success(w, req.ID, toAccountResponse(identity))
}

// HandleSignOut handles POST /api/v1/auth.SignOut. Registered behind auth.
// Only the current account may sign itself out.
// @Summary Sign out the current account
// @Tags auth
// @Produce json
// @Success 200 {object} jsonrpcx.ResponseT[AccountResponse] "Fallback account"
// @Security BearerAuth
// @Router /api/v1/auth.SignOut [post]
func (h *AuthHandler) HandleSignOut(w http.ResponseWriter, r *http.Request) {
	req, ok := parseRequest(r)
	if !ok {
		return
	}

	accountKey, ok := middleware.GetAccountKey(r.Context())
	if !ok {
		jsonrpcx.WithError(r, req.ID, jsonrpcx.Unauthorized, "Account not authenticated")
		return
	}

	current, ok := h.provider.CurrentAccount()
	if !ok || current.Key() != accountKey {
		jsonrpcx.WithError(r, req.ID, jsonrpcx.Unauthorized, "Token does not belong to the current account")
		return
	}

	if err := h.provider.SetCurrentAccount(h.fallback); err != nil {
		jsonrpcx.WithDomainError(r, req.ID, err)
		return
	}

	h.logger.WithAccountKey(accountKey).Info("Signed out")
	jsonrpcx.Success(w, req.ID, toAccountResponse(h.fallback))
}
