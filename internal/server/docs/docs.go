// Package docs holds the Swagger document of the analytics API, produced by
// swag from the annotations of the server handlers.
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
        "/aggregators": {
            "get": {
                "produces": ["application/json"],
                "tags": ["analytics"],
                "summary": "List aggregators",
                "responses": {
                    "200": {
                        "description": "Aggregator names",
                        "schema": {"type": "array", "items": {"type": "string"}}
                    }
                }
            }
        },
        "/aggregators/display-names": {
            "get": {
                "produces": ["application/json"],
                "tags": ["analytics"],
                "summary": "Aggregator display names",
                "responses": {
                    "200": {
                        "description": "Code to display name",
                        "schema": {"type": "object", "additionalProperties": {"type": "string"}}
                    }
                }
            }
        },
        "/cache/clear": {
            "post": {
                "produces": ["application/json"],
                "tags": ["cache"],
                "summary": "Clear the cache",
                "responses": {
                    "200": {
                        "description": "Cache cleared",
                        "schema": {"type": "object", "additionalProperties": true}
                    }
                }
            }
        },
        "/cache/stats": {
            "get": {
                "produces": ["application/json"],
                "tags": ["cache"],
                "summary": "Cache statistics",
                "responses": {
                    "200": {
                        "description": "Cache statistics",
                        "schema": {"$ref": "#/definitions/remote.CacheStats"}
                    }
                }
            }
        },
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["analytics"],
                "summary": "Health check",
                "responses": {
                    "200": {
                        "description": "Service is up",
                        "schema": {"$ref": "#/definitions/remote.HealthStatus"}
                    }
                }
            }
        },
        "/pivot": {
            "post": {
                "description": "Group the rows of a table by the requested dimensions and aggregate them",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["analytics"],
                "summary": "Execute a pivot",
                "parameters": [
                    {
                        "description": "Pivot request",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/remote.Request"}
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Pivot result",
                        "schema": {"$ref": "#/definitions/remote.Response"}
                    },
                    "400": {
                        "description": "Invalid request",
                        "schema": {"$ref": "#/definitions/remote.ErrorResponse"}
                    },
                    "404": {
                        "description": "Unknown table",
                        "schema": {"$ref": "#/definitions/remote.ErrorResponse"}
                    },
                    "500": {
                        "description": "Query execution failed",
                        "schema": {"$ref": "#/definitions/remote.ErrorResponse"}
                    }
                }
            }
        }
    },
    "definitions": {
        "remote.CacheStats": {
            "type": "object",
            "properties": {
                "expiredCount": {"type": "integer"},
                "hits": {"type": "integer"},
                "maxSize": {"type": "integer"},
                "misses": {"type": "integer"},
                "size": {"type": "integer"},
                "ttlMillis": {"type": "integer"}
            }
        },
        "remote.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "timestamp": {"type": "integer"}
            }
        },
        "remote.HealthStatus": {
            "type": "object",
            "properties": {
                "service": {"type": "string"},
                "status": {"type": "string"},
                "supportedAggregators": {"type": "integer"},
                "version": {"type": "string"}
            }
        },
        "remote.Metadata": {
            "type": "object",
            "properties": {
                "aggregatorUsed": {"type": "string"},
                "availableColumns": {"type": "array", "items": {"type": "string"}},
                "cached": {"type": "boolean"},
                "executionTimeMs": {"type": "integer"},
                "rowCount": {"type": "integer"}
            }
        },
        "remote.Request": {
            "type": "object",
            "properties": {
                "aggregatorName": {"type": "string"},
                "colOrder": {"type": "string"},
                "cols": {"type": "array", "items": {"type": "string"}},
                "connectionCode": {"type": "string"},
                "exclusions": {
                    "type": "object",
                    "additionalProperties": {"type": "array", "items": {"type": "string"}}
                },
                "filters": {
                    "type": "object",
                    "additionalProperties": {"type": "array", "items": {"type": "string"}}
                },
                "includeSubtotals": {"type": "boolean"},
                "limit": {"type": "integer"},
                "rowOrder": {"type": "string"},
                "rows": {"type": "array", "items": {"type": "string"}},
                "tableName": {"type": "string"},
                "vals": {"type": "array", "items": {"type": "string"}}
            }
        },
        "remote.Response": {
            "type": "object",
            "properties": {
                "aggregatedData": {"type": "object", "additionalProperties": true},
                "data": {
                    "type": "array",
                    "items": {"type": "object", "additionalProperties": true}
                },
                "metadata": {"$ref": "#/definitions/remote.Metadata"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/analytics",
	Schemes:          []string{},
	Title:            "crosstab analytics API",
	Description:      "Pivot aggregation over the tables of a catalog.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
