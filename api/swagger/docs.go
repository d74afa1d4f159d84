// Package swagger registers the OpenAPI document served under /swagger.
// Regenerate with: swag init -g cmd/api/main.go -o api/swagger
package swagger

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
        "/api/requests": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["requests"],
                "summary": "List requests",
                "parameters": [
                    {"type": "string", "description": "Filter by status", "name": "status", "in": "query"},
                    {"type": "string", "description": "Filter by category", "name": "category", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/response.Response"}}
                }
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["requests"],
                "summary": "Create a request",
                "parameters": [
                    {"description": "Request payload", "name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/service.CreateRequestDTO"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/response.Response"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/response.Response"}}
                }
            }
        },
        "/api/requests/categories": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["requests"],
                "summary": "List request categories",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}}
                }
            }
        },
        "/api/requests/statuses": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["requests"],
                "summary": "List request statuses",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}}
                }
            }
        },
        "/api/requests/{id}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["requests"],
                "summary": "Get a request",
                "parameters": [
                    {"type": "string", "description": "Request ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/response.Response"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/response.Response"}}
                }
            },
            "delete": {
                "security": [{"BearerAuth": []}],
                "tags": ["requests"],
                "summary": "Delete a request",
                "parameters": [
                    {"type": "string", "description": "Request ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/response.Response"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/response.Response"}}
                }
            },
            "patch": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["requests"],
                "summary": "Edit a request",
                "parameters": [
                    {"type": "string", "description": "Request ID", "name": "id", "in": "path", "required": true},
                    {"description": "Fields to change", "name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/service.UpdateRequestDTO"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/response.Response"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/response.Response"}}
                }
            }
        },
        "/api/requests/{id}/history": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["requests"],
                "summary": "Request history",
                "parameters": [
                    {"type": "string", "description": "Request ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/response.Response"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/response.Response"}}
                }
            }
        },
        "/api/requests/{id}/status": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Applies one transition and records it in the request history",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["requests"],
                "summary": "Change request status",
                "parameters": [
                    {"type": "string", "description": "Request ID", "name": "id", "in": "path", "required": true},
                    {"description": "Target status and comment", "name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/service.ChangeStatusDTO"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/response.Response"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/response.Response"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/response.Response"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/response.Response"}}
                }
            }
        }
    },
    "definitions": {
        "response.Response": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "data": {},
                "details": {},
                "error": {"type": "string"},
                "status": {"type": "string"},
                "status_code": {"type": "integer"}
            }
        },
        "service.ChangeStatusDTO": {
            "type": "object",
            "required": ["status"],
            "properties": {
                "comment": {"type": "string"},
                "status": {"type": "string"}
            }
        },
        "service.CreateRequestDTO": {
            "type": "object",
            "required": ["category", "title"],
            "properties": {
                "category": {"type": "string"},
                "description": {"type": "string"},
                "price": {"type": "string"},
                "title": {"type": "string", "maxLength": 255}
            }
        },
        "service.UpdateRequestDTO": {
            "type": "object",
            "properties": {
                "description": {"type": "string"},
                "title": {"type": "string", "maxLength": 255}
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
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Maintenance Requests API",
	Description:      "Resident maintenance requests with a role-checked status workflow and history.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
