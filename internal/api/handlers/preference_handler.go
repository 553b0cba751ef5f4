package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"go.uber.org/zap"

	"github.com/danghamo/accountd/internal/api/jsonrpcx"
	"github.com/danghamo/accountd/internal/app/session"
	"github.com/danghamo/accountd/internal/cqrs"
	"github.com/danghamo/accountd/internal/domain/preference"
	"github.com/danghamo/accountd/pkg/logger"
)

// Notifier pushes a notification to every connected stream
type Notifier interface {
	BroadcastToAll(ctx context.Context, method string, params interface{}) error
}

// PreferenceHandler registers account-scoped preference keys and adjusts submitted surfaces
type PreferenceHandler struct {
	logger   *logger.Logger
	provider *session.Provider
	store    preference.Store
	notifier Notifier
}

// NewPreferenceHandler creates a new preference handler backed by store. notifier may be nil.
func NewPreferenceHandler(logger *logger.Logger, provider *session.Provider, store preference.Store, notifier Notifier) *PreferenceHandler {
	return &PreferenceHandler{
		logger:   logger.WithComponent("preference-handler"),
		provider: provider,
		store:    store,
		notifier: notifier,
	}
}

// RegisterPreferenceRequest marks a base key as account-scoped
type RegisterPreferenceRequest struct {
	Key     string `json:"key"`
	Default bool   `json:"default"`
}

// SetPreferenceRequest writes a stored value
type SetPreferenceRequest struct {
	Key     string `json:"key"`
	Checked bool   `json:"checked"`
}

// ControlParams describes one control of a submitted surface
type ControlParams struct {
	Key     string `json:"key"`
	Kind    string `json:"kind"`
	Checked bool   `json:"checked,omitempty"`
	Value   string `json:"value,omitempty"`
}

// AdjustRequest is a surface to adjust. Values, when present, replace the server store for this call.
type AdjustRequest struct {
	Controls []ControlParams `json:"controls"`
	Values   map[string]bool `json:"values,omitempty"`
}

// AdjustResponse carries the adjustment and an RFC 7386 merge patch from the submitted surface to the adjusted one
type AdjustResponse struct {
	session.Adjustment
	Patch json.RawMessage `json:"patch"`
}

// Register handles POST /api/v1/preference.Register
// @Summary Register an account-scoped preference key
// @Tags preference
// @Accept json
// @Produce json
// @Param request body jsonrpcx.RequestT[RegisterPreferenceRequest] true "JSON-RPC request with RegisterPreferenceRequest params"
// @Success 200 {object} jsonrpcx.ResponseT[map[string]bool] "Registered keys"
// @Router /api/v1/preference.Register [post]
func (h *PreferenceHandler) Register(w http.ResponseWriter, r *http.Request) {
	req, ok := parseRequest(r)
	if !ok {
		return
	}

	var params RegisterPreferenceRequest
	if !parseParams(r, req, &params) {
		return
	}

	if err := h.provider.RegisterPreferenceKey(params.Key, params.Default); err != nil {
		jsonrpcx.WithDomainError(r, req.ID, err)
		return
	}

	keys := h.provider.PreferenceKeys()
	if h.notifier != nil {
		if err := h.notifier.BroadcastToAll(r.Context(), cqrs.MethodPreferenceKeysChanged, keys); err != nil {
			h.logger.Warn("Failed to announce preference keys", zap.Error(err))
		}
	}

	jsonrpcx.Success(w, req.ID, keys)
}

// Keys handles POST /api/v1/preference.Keys
func (h *PreferenceHandler) Keys(w http.ResponseWriter, r *http.Request) {
	req, ok := parseRequest(r)
	if !ok {
		return
	}

	jsonrpcx.Success(w, req.ID, h.provider.PreferenceKeys())
}

// Set handles POST /api/v1/preference.Set
func (h *PreferenceHandler) Set(w http.ResponseWriter, r *http.Request) {
	req, ok := parseRequest(r)
	if !ok {
		return
	}

	var params SetPreferenceRequest
	if !parseParams(r, req, &params) {
		return
	}
	if params.Key == "" {
		jsonrpcx.WithError(r, req.ID, jsonrpcx.InvalidParams, "key is required")
		return
	}

	if err := h.store.SetBool(r.Context(), params.Key, params.Checked); err != nil {
		h.logger.Error("Failed to store preference", zap.String("key", params.Key), zap.Error(err))
		jsonrpcx.WithError(r, req.ID, jsonrpcx.InternalError, "Failed to store preference")
		return
	}

	jsonrpcx.Success(w, req.ID, params)
}

// Adjust handles POST /api/v1/preference.Adjust
// @Summary Adjust a preference surface to the current account
// @Description Renames every registered two-state control into the current account namespace and reloads its checked state
// @Tags preference
// @Accept json
// @Produce json
// @Param request body jsonrpcx.RequestT[AdjustRequest] true "JSON-RPC request with AdjustRequest params"
// @Success 200 {object} jsonrpcx.ResponseT[AdjustResponse] "Adjustment and merge patch"
// @Failure 200 {object} jsonrpcx.ErrorResponse "Unsupported control kind"
// @Router /api/v1/preference.Adjust [post]
func (h *PreferenceHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	req, ok := parseRequest(r)
	if !ok {
		return
	}

	var params AdjustRequest
	if !parseParams(r, req, &params) {
		return
	}

	store := h.store
	if len(params.Values) > 0 {
		store = preference.NewMemoryStore(params.Values)
	}

	surface := preference.NewMemorySurface(store)
	for _, c := range params.Controls {
		control, err := newControl(c)
		if err != nil {
			jsonrpcx.WithError(r, req.ID, jsonrpcx.InvalidParams, err.Error())
			return
		}
		surface.Add(control)
	}

	before, err := json.Marshal(surface.Snapshot())
	if err != nil {
		jsonrpcx.WithError(r, req.ID, jsonrpcx.InternalError, "Failed to encode surface")
		return
	}

	adjustment, err := h.provider.AdjustPreferences(r.Context(), surface)
	if err != nil {
		jsonrpcx.WithDomainError(r, req.ID, err)
		return
	}

	after, err := json.Marshal(surface.Snapshot())
	if err != nil {
		jsonrpcx.WithError(r, req.ID, jsonrpcx.InternalError, "Failed to encode surface")
		return
	}

	patch, err := jsonpatch.CreateMergePatch(before, after)
	if err != nil {
		h.logger.Error("Failed to create merge patch", zap.Error(err))
		jsonrpcx.WithError(r, req.ID, jsonrpcx.InternalError, "Failed to create merge patch")
		return
	}

	jsonrpcx.Success(w, req.ID, AdjustResponse{
		Adjustment: adjustment,
		Patch:      patch,
	})
}

func newControl(c ControlParams) (preference.Control, error) {
	if c.Key == "" {
		return nil, errors.New("control key is required")
	}

	switch c.Kind {
	case preference.KindSwitch, "":
		return preference.NewSwitch(c.Key, c.Checked), nil
	case preference.KindText:
		return preference.NewText(c.Key, c.Value), nil
	default:
		return nil, fmt.Errorf("unknown control kind %q", c.Kind)
	}
}
