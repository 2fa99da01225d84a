// Package docs registers the OpenAPI document served by the Swagger UI.
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
            "get": {
                "tags": ["health"],
                "summary": "Readiness probe",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/handler.errorPayload"}}
                }
            }
        },
        "/healthz": {
            "get": {
                "tags": ["health"],
                "summary": "Liveness probe",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/tilesheets/{name}": {
            "delete": {
                "tags": ["sheets"],
                "summary": "Delete a tilesheet",
                "parameters": [
                    {"type": "string", "description": "Tilesheet name", "name": "name", "in": "path", "required": true}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.errorPayload"}}
                }
            }
        },
        "/tilesheets/{name}/tiles": {
            "get": {
                "tags": ["tiles"],
                "summary": "List tiles of a tilesheet",
                "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "description": "Tilesheet name", "name": "name", "in": "path", "required": true},
                    {"type": "integer", "default": 10, "description": "Page size", "name": "limit", "in": "query"},
                    {"type": "integer", "default": 0, "description": "Page offset", "name": "offset", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/service.TileListResult"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.errorPayload"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/handler.errorPayload"}}
                }
            },
            "post": {
                "tags": ["tiles"],
                "summary": "Insert or replace a tile",
                "consumes": ["multipart/form-data"],
                "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "description": "Tilesheet name", "name": "name", "in": "path", "required": true},
                    {"type": "file", "description": "Tile PNG", "name": "file", "in": "formData", "required": true},
                    {"type": "string", "description": "Tile name", "name": "tile", "in": "formData"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/model.Tile"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.errorPayload"}},
                    "422": {"description": "Unprocessable Entity", "schema": {"$ref": "#/definitions/handler.errorPayload"}}
                }
            }
        },
        "/tilesheets/{name}/tiles/{tile}": {
            "get": {
                "tags": ["tiles"],
                "summary": "Get a tile position",
                "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "description": "Tilesheet name", "name": "name", "in": "path", "required": true},
                    {"type": "string", "description": "Tile name", "name": "tile", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.Tile"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.errorPayload"}}
                }
            },
            "delete": {
                "tags": ["tiles"],
                "summary": "Remove a tile",
                "parameters": [
                    {"type": "string", "description": "Tilesheet name", "name": "name", "in": "path", "required": true},
                    {"type": "string", "description": "Tile name", "name": "tile", "in": "path", "required": true}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.errorPayload"}}
                }
            }
        },
        "/tilesheets/{name}/index": {
            "get": {
                "tags": ["sheets"],
                "summary": "Download the tilesheet index",
                "produces": ["text/plain"],
                "parameters": [
                    {"type": "string", "description": "Tilesheet name", "name": "name", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "string"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.errorPayload"}}
                }
            }
        },
        "/tilesheets/{name}/sheets/{size}": {
            "get": {
                "tags": ["sheets"],
                "summary": "Download a sheet image",
                "produces": ["image/png"],
                "parameters": [
                    {"type": "string", "description": "Tilesheet name", "name": "name", "in": "path", "required": true},
                    {"type": "integer", "description": "Tile size in pixels", "name": "size", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "file"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.errorPayload"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.errorPayload"}}
                }
            }
        },
        "/tilesheets/{name}/sheets/{size}/url": {
            "get": {
                "tags": ["sheets"],
                "summary": "Presigned sheet image URL",
                "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "description": "Tilesheet name", "name": "name", "in": "path", "required": true},
                    {"type": "integer", "description": "Tile size in pixels", "name": "size", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.errorPayload"}},
                    "501": {"description": "Not Implemented", "schema": {"$ref": "#/definitions/handler.errorPayload"}}
                }
            }
        }
    },
    "definitions": {
        "handler.errorEnvelope": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"}
            }
        },
        "handler.errorPayload": {
            "type": "object",
            "properties": {
                "error": {"$ref": "#/definitions/handler.errorEnvelope"},
                "request_id": {"type": "string"}
            }
        },
        "model.Tile": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "sheet": {"type": "string"},
                "name": {"type": "string"},
                "x": {"type": "integer"},
                "y": {"type": "integer"},
                "updated_at": {"type": "string"}
            }
        },
        "service.TileListResult": {
            "type": "object",
            "properties": {
                "data": {"type": "array", "items": {"$ref": "#/definitions/model.Tile"}},
                "total": {"type": "integer"}
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
	Title:            "Tilesheet API",
	Description:      "Packs square tile images into fixed-width sheet images.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
