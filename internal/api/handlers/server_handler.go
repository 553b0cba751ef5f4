package handlers

import (
	"fmt"
	"net/http"

	"github.com/danghamo/accountd/internal/api/jsonrpcx"
	"github.com/danghamo/accountd/pkg/autorouter"
)

// ServerHandler handles server information requests
type ServerHandler struct {
	info   ServerInfoResponse
	routes func() []autorouter.HandlerInfo
}

// ServerInfoResponse represents server information
type ServerInfoResponse struct {
	ServerID    string `json:"server_id"`
	Host        string `json:"host"`
	Port        int    `json:"port"`
	URL         string `json:"url"`
	Environment string `json:"environment"`
}

// NewServerHandler creates a new server handler. routes lists the registered JSON-RPC methods.
func NewServerHandler(serverID, host string, port int, environment string, routes func() []autorouter.HandlerInfo) *ServerHandler {
	if host == "" || host == "0.0.0.0" {
		host = "localhost"
	}

	return &ServerHandler{
		info: ServerInfoResponse{
			ServerID:    serverID,
			Host:        host,
			Port:        port,
			URL:         fmt.Sprintf("http://%s:%d", host, port),
			Environment: environment,
		},
		routes: routes,
	}
}

// Info handles POST /api/v1/server.Info
func (h *ServerHandler) Info(w http.ResponseWriter, r *http.Request) {
	req, ok := parseRequest(r)
	if !ok {
		return
	}

	jsonrpcx.Success(w, req.ID, h.info)
}

// Routes handles POST /api/v1/server.Routes
func (h *ServerHandler) Routes(w http.ResponseWriter, r *http.Request) {
	req, ok := parseRequest(r)
	if !ok {
		return
	}

	jsonrpcx.Success(w, req.ID, h.routes())
}

// Ping handles POST /api/v1/server.Ping
func (h *ServerHandler) Ping(w http.ResponseWriter, r *http.Request) {
	req, ok := parseRequest(r)
	if !ok {
		return
	}

	jsonrpcx.Success(w, req.ID, map[string]string{"message": "pong"})
}
