// Package docs registers the OpenAPI document served at /swagger/.
// Regenerate with: swag init --parseDependency --output docs
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/api/auth/login": {
            "post": {
                "tags": ["auth"],
                "summary": "Authenticate and open a session",
                "responses": {
                    "200": {"description": "OK"},
                    "401": {"description": "Unauthorized"}
                }
            }
        },
        "/api/auth/logout": {
            "post": {
                "tags": ["auth"],
                "summary": "Close the current session",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/auth/session": {
            "get": {
                "tags": ["auth"],
                "summary": "Report the current session",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/auth/register": {
            "post": {
                "tags": ["auth"],
                "summary": "Create a dashboard account (admin only)",
                "responses": {
                    "201": {"description": "Created"},
                    "409": {"description": "Conflict"}
                }
            }
        },
        "/api/alerts": {
            "get": {
                "tags": ["alerts"],
                "summary": "List detection alerts",
                "responses": {"200": {"description": "OK"}}
            },
            "put": {
                "tags": ["alerts"],
                "summary": "Update an alert's triage status",
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "tags": ["alerts"],
                "summary": "Trigger a detection run (admin only)",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/entities": {
            "get": {
                "tags": ["entities"],
                "summary": "List entity risk scores",
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "tags": ["entities"],
                "summary": "Trigger a risk recalculation (admin only)",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/logs/upload": {
            "post": {
                "tags": ["logs"],
                "summary": "Upload a log file for ingestion (admin only)",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/logs/{type}": {
            "get": {
                "tags": ["logs"],
                "summary": "Query ingested logs by type",
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "Bad Request"}
                }
            }
        },
        "/api/threat-intel": {
            "get": {
                "tags": ["threat-intel"],
                "summary": "List threat intelligence indicators",
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "tags": ["threat-intel"],
                "summary": "Add a threat intelligence indicator (admin only)",
                "responses": {"201": {"description": "Created"}}
            },
            "delete": {
                "tags": ["threat-intel"],
                "summary": "Remove a threat intelligence indicator (admin only)",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/healthz": {
            "get": {
                "tags": ["ops"],
                "summary": "Liveness and dependency health",
                "responses": {"200": {"description": "OK"}}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Argus Dashboard API",
	Description:      "Backend-for-frontend for the Argus security-operations dashboard",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
