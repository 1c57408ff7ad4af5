// Package docs registers the OpenAPI document served under /swagger.
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
        "/convert": {
            "get": {
                "description": "Converts amount from input_currency into output_currency, or into every known currency when output_currency is omitted. Currencies may be ISO codes or symbols. Failures use the same envelope with a single \"error\" key in output.",
                "produces": ["application/json"],
                "tags": ["conversion"],
                "summary": "Convert an amount between currencies",
                "parameters": [
                    {"type": "number", "example": 100, "description": "Amount to convert", "name": "amount", "in": "query", "required": true},
                    {"type": "string", "example": "EUR", "description": "Source currency (ISO code or symbol)", "name": "input_currency", "in": "query", "required": true},
                    {"type": "string", "example": "USD,GBP", "description": "Comma separated target currencies (ISO codes or symbols)", "name": "output_currency", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "Converted amounts", "schema": {"$ref": "#/definitions/service.Envelope"}},
                    "400": {"description": "Invalid amount or currency", "schema": {"$ref": "#/definitions/service.Envelope"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/service.Envelope"}},
                    "503": {"description": "No rate provider reachable", "schema": {"$ref": "#/definitions/service.Envelope"}}
                }
            }
        },
        "/rates/refresh": {
            "post": {
                "description": "Enqueues a forced refresh of the cached rate snapshot from the primary provider. Returns immediately with the task id.",
                "produces": ["application/json"],
                "tags": ["rates"],
                "summary": "Request an asynchronous rate refresh",
                "responses": {
                    "202": {"description": "Refresh enqueued", "schema": {"$ref": "#/definitions/api.RefreshResponse"}},
                    "409": {"description": "A refresh is already pending", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "503": {"description": "Background worker disabled", "schema": {"$ref": "#/definitions/api.ErrorResponse"}}
                }
            }
        },
        "/healthz": {
            "get": {
                "description": "Always returns 200 OK if the service is running. Used for liveness probes.",
                "produces": ["text/plain"],
                "tags": ["health"],
                "summary": "Health check (liveness)",
                "responses": {"200": {"description": "OK", "schema": {"type": "string"}}}
            }
        },
        "/readyz": {
            "get": {
                "description": "Checks connectivity to the cache Redis and the asynq Redis. Returns 200 only when both are reachable. Rate providers are not probed.",
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "All dependencies ready", "schema": {"$ref": "#/definitions/api.ReadyResponse"}},
                    "503": {"description": "At least one dependency unavailable", "schema": {"$ref": "#/definitions/api.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "api.ErrorResponse": {
            "type": "object",
            "properties": {"error": {"type": "string", "example": "a rate refresh is already pending"}}
        },
        "api.ReadyResponse": {
            "type": "object",
            "properties": {"status": {"type": "string", "example": "ready"}}
        },
        "api.RefreshResponse": {
            "type": "object",
            "properties": {"task_id": {"type": "string", "example": "0f7c3a52-5e7d-4b1f-9d0e-2f8f3b7a1c44"}}
        },
        "service.Envelope": {
            "type": "object",
            "properties": {
                "input": {"$ref": "#/definitions/service.EnvelopeInput"},
                "output": {"type": "object", "additionalProperties": {}}
            }
        },
        "service.EnvelopeInput": {
            "type": "object",
            "properties": {
                "amount": {"type": "number"},
                "currency": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Currency Converter API",
	Description:      "Converts amounts between currencies using cached exchange rates with provider fallback.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
