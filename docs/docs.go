// Package docs holds the OpenAPI document served at /swagger.
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
        "/health": {
            "get": {"produces": ["application/json"], "tags": ["health"], "summary": "Dependency health", "responses": {"200": {"description": "OK"}, "503": {"description": "Database unavailable"}}}
        },
        "/v1/invoices": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["invoices"],
                "summary": "List invoices",
                "parameters": [
                    {"type": "string", "description": "draft, sent, paid or overdue", "name": "status", "in": "query"},
                    {"type": "string", "description": "Client ID", "name": "client_id", "in": "query"},
                    {"type": "integer", "description": "Page size", "name": "limit", "in": "query"},
                    {"type": "integer", "description": "Offset", "name": "offset", "in": "query"}
                ],
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["invoices"],
                "summary": "Create an invoice",
                "parameters": [{"description": "Invoice", "name": "invoice", "in": "body", "required": true, "schema": {"type": "object"}}],
                "responses": {"201": {"description": "Created"}, "400": {"description": "Validation failed"}}
            }
        },
        "/v1/invoices/{id}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["invoices"],
                "summary": "Get an invoice with its display status and payments",
                "parameters": [{"type": "string", "description": "Invoice ID", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not found"}}
            },
            "patch": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["invoices"],
                "summary": "Update invoice metadata",
                "parameters": [
                    {"type": "string", "description": "Invoice ID", "name": "id", "in": "path", "required": true},
                    {"description": "Fields to change", "name": "patch", "in": "body", "required": true, "schema": {"type": "object"}}
                ],
                "responses": {"200": {"description": "OK"}, "409": {"description": "Invoice is paid or overdue"}}
            }
        },
        "/v1/invoices/{id}/line-items": {
            "put": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["invoices"],
                "summary": "Replace line items and recompute totals",
                "parameters": [
                    {"type": "string", "description": "Invoice ID", "name": "id", "in": "path", "required": true},
                    {"description": "Line items", "name": "items", "in": "body", "required": true, "schema": {"type": "object"}}
                ],
                "responses": {"200": {"description": "OK"}, "409": {"description": "Invoice is paid or overdue"}}
            }
        },
        "/v1/invoices/{id}/share": {
            "post": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["invoices"],
                "summary": "Record that the invoice was shared with the client",
                "parameters": [{"type": "string", "description": "Invoice ID", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/v1/invoices/{id}/mark-paid": {
            "post": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["invoices"],
                "summary": "Mark a sent invoice as paid outside the gateway",
                "parameters": [{"type": "string", "description": "Invoice ID", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "409": {"description": "Invoice is draft or already paid"}}
            }
        },
        "/v1/invoices/{id}/checkout": {
            "post": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["payments"],
                "summary": "Start a hosted checkout for an invoice",
                "parameters": [{"type": "string", "description": "Invoice ID", "name": "id", "in": "path", "required": true}],
                "responses": {"201": {"description": "Created"}, "409": {"description": "Invoice already settled"}, "502": {"description": "Gateway error"}}
            }
        },
        "/public/invoices/{id}/checkout": {
            "post": {
                "produces": ["application/json"],
                "tags": ["payments"],
                "summary": "Start a checkout from a shared invoice link",
                "parameters": [{"type": "string", "description": "Invoice ID", "name": "id", "in": "path", "required": true}],
                "responses": {"201": {"description": "Created"}, "404": {"description": "Not found"}, "429": {"description": "Rate limited"}}
            }
        },
        "/webhooks/paystack": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["webhooks"],
                "summary": "Receive a Paystack event",
                "parameters": [{"type": "string", "description": "HMAC-SHA512 of the body", "name": "x-paystack-signature", "in": "header", "required": true}],
                "responses": {"202": {"description": "Accepted"}, "400": {"description": "Malformed body"}, "401": {"description": "Invalid signature"}}
            }
        },
        "/v1/reminders/templates": {
            "get": {"security": [{"BearerAuth": []}], "produces": ["application/json"], "tags": ["reminders"], "summary": "List reminder templates", "responses": {"200": {"description": "OK"}}},
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["reminders"],
                "summary": "Create a reminder template",
                "parameters": [{"description": "Template", "name": "template", "in": "body", "required": true, "schema": {"type": "object"}}],
                "responses": {"201": {"description": "Created"}, "400": {"description": "Validation failed"}}
            }
        },
        "/v1/reminders/templates/{id}": {
            "put": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["reminders"],
                "summary": "Update a reminder template",
                "parameters": [
                    {"type": "string", "description": "Template ID", "name": "id", "in": "path", "required": true},
                    {"description": "Fields to change", "name": "patch", "in": "body", "required": true, "schema": {"type": "object"}}
                ],
                "responses": {"200": {"description": "OK"}}
            },
            "delete": {
                "security": [{"BearerAuth": []}],
                "tags": ["reminders"],
                "summary": "Delete a reminder template",
                "parameters": [{"type": "string", "description": "Template ID", "name": "id", "in": "path", "required": true}],
                "responses": {"204": {"description": "No Content"}}
            }
        },
        "/v1/reminders/history": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["reminders"],
                "summary": "Recent reminder sends",
                "parameters": [{"type": "integer", "description": "Entries to return (default 20, max 100)", "name": "limit", "in": "query"}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/v1/reminders/send": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["reminders"],
                "summary": "Send reminders now",
                "parameters": [{"description": "Scope", "name": "body", "in": "body", "schema": {"type": "object"}}],
                "responses": {"200": {"description": "OK"}}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "MoMo Invoice API",
	Description:      "Invoicing, Paystack reconciliation and payment reminders.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
