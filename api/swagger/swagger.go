package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "SMA Admin Dashboard API",
        "description": "Session and resource endpoints of the school admin dashboard. Records live in the school REST API.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Session", "description": "Cookie session backed by Basic-Auth credentials"},
        {"name": "Resources", "description": "Teachers, students and courses"},
        {"name": "System", "description": "Counters since start"}
    ],
    "paths": {
        "/session": {
            "post": {
                "tags": ["Session"],
                "summary": "Log in",
                "description": "Verify credentials against the school API and start a cookie session",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Missing username or password", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "502": {"description": "School API unreachable", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "get": {
                "tags": ["Session"],
                "summary": "Current session",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Not logged in", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Session"],
                "summary": "Log out",
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/resources/{resource}": {
            "get": {
                "tags": ["Resources"],
                "summary": "List records",
                "produces": ["application/json"],
                "parameters": [
                    {"name": "resource", "in": "path", "required": true, "type": "string", "enum": ["teachers", "students", "courses"]},
                    {"name": "teacher", "in": "query", "type": "string", "description": "Only records owned by this teacher (students, courses)"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Not logged in", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown resource", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "502": {"description": "School API failed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Resources"],
                "summary": "Create a record",
                "description": "Admin only. Students and courses need a teacherId field.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"name": "resource", "in": "path", "required": true, "type": "string", "enum": ["teachers", "students", "courses"]},
                    {"name": "payload", "in": "body", "required": true, "schema": {"type": "object"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation failed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Not an admin", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "502": {"description": "School API failed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/resources/{resource}/{id}": {
            "delete": {
                "tags": ["Resources"],
                "summary": "Delete a record",
                "description": "Admin only. Requires confirm=true; deleting a teacher also deletes their students and courses.",
                "produces": ["application/json"],
                "parameters": [
                    {"name": "resource", "in": "path", "required": true, "type": "string", "enum": ["teachers", "students", "courses"]},
                    {"name": "id", "in": "path", "required": true, "type": "integer"},
                    {"name": "confirm", "in": "query", "required": true, "type": "boolean"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Not confirmed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Not an admin", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "502": {"description": "School API failed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/status": {
            "get": {
                "tags": ["System"],
                "summary": "Dashboard status",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "properties": {
                "username": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
