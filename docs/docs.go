// Package docs registers the OpenAPI document served under /swagger/.
// Regenerate with: swag init -g cmd/accountd/main.go
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/api/v1/account.Current": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["account"],
                "summary": "Get the current account",
                "parameters": [{"description": "JSON-RPC request", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/jsonrpcx.Request"}}],
                "responses": {"200": {"description": "Current account", "schema": {"$ref": "#/definitions/handlers.AccountResponse"}}}
            }
        },
        "/api/v1/account.Get": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["account"],
                "summary": "Get an account by key",
                "parameters": [{"description": "JSON-RPC request with GetAccountRequest params", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/jsonrpcx.Request"}}],
                "responses": {"200": {"description": "Account", "schema": {"$ref": "#/definitions/handlers.AccountResponse"}}}
            }
        },
        "/api/v1/account.FromArgs": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["account"],
                "summary": "Resolve an account key stored in an argument map",
                "parameters": [{"description": "JSON-RPC request with FromArgsRequest params", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/jsonrpcx.Request"}}],
                "responses": {"200": {"description": "Account", "schema": {"$ref": "#/definitions/handlers.AccountResponse"}}}
            }
        },
        "/api/v1/account.Remove": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["account"],
                "summary": "Forget accounts",
                "description": "Removes accounts from the registry. Removing the current account makes the fallback account current.",
                "parameters": [{"description": "JSON-RPC request with RemoveAccountsRequest params", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/jsonrpcx.Request"}}],
                "responses": {"200": {"description": "Removed keys"}}
            }
        },
        "/api/v1/auth.SignIn": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Sign in with an identity token",
                "parameters": [{"description": "JSON-RPC request with SignInRequest params", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/jsonrpcx.Request"}}],
                "responses": {"200": {"description": "New current account", "schema": {"$ref": "#/definitions/handlers.AccountResponse"}}}
            }
        },
        "/api/v1/auth.SignOut": {
            "post": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Sign out the current account",
                "responses": {"200": {"description": "Fallback account", "schema": {"$ref": "#/definitions/handlers.AccountResponse"}}}
            }
        },
        "/api/v1/preference.Register": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["preference"],
                "summary": "Register an account-scoped preference key",
                "parameters": [{"description": "JSON-RPC request with RegisterPreferenceRequest params", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/jsonrpcx.Request"}}],
                "responses": {"200": {"description": "Registered keys"}}
            }
        },
        "/api/v1/preference.Adjust": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["preference"],
                "summary": "Adjust a preference surface to the current account",
                "description": "Renames every registered two-state control into the current account namespace and reloads its checked state",
                "parameters": [{"description": "JSON-RPC request with AdjustRequest params", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/jsonrpcx.Request"}}],
                "responses": {"200": {"description": "Adjustment and merge patch"}}
            }
        }
    },
    "definitions": {
        "handlers.AccountResponse": {
            "type": "object",
            "properties": {
                "account_key": {"type": "string"},
                "name": {"type": "string"},
                "signed_in": {"type": "boolean"},
                "files_directory": {"type": "string"}
            }
        },
        "jsonrpcx.Request": {
            "type": "object",
            "properties": {
                "jsonrpc": {"type": "string", "example": "2.0"},
                "method": {"type": "string"},
                "params": {"type": "object"},
                "id": {}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "accountd API",
	Description:      "Account session service: current account, account registry and account-scoped preferences over JSON-RPC 2.0.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
