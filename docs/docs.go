// Package docs holds the OpenAPI description served at /swagger.
// Regenerate with `swag init -g cmd/server/main.go` after changing handler annotations.
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
        "/api/estimates": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Queues a calorie estimation for 1..N previously uploaded photos",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Estimates"],
                "summary": "Submit photos for estimation",
                "parameters": [
                    {"description": "Photo ids", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/model.SubmitEstimateRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/model.SubmitEstimateResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/response.ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/response.ErrorResponse"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/response.ErrorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/response.ErrorResponse"}}
                }
            }
        },
        "/api/estimates/{id}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Returns the status and, once done, the nutrition summary",
                "produces": ["application/json"],
                "tags": ["Estimates"],
                "summary": "Get an estimate",
                "parameters": [
                    {"type": "string", "description": "Estimate ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.EstimateView"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/response.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/response.ErrorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/response.ErrorResponse"}}
                }
            }
        },
        "/api/photos/upload-url": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Registers a photo and returns a presigned URL to PUT the image to",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Photos"],
                "summary": "Get a photo upload URL",
                "parameters": [
                    {"description": "Upload request", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/model.CreateUploadRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/model.CreateUploadResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/response.ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/response.ErrorResponse"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/response.ErrorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/response.ErrorResponse"}}
                }
            }
        },
        "/api/meals": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Logs a meal, prefilling nutrition from a finished estimate when one is given",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Meals"],
                "summary": "Log a meal",
                "parameters": [
                    {"description": "Meal", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/model.CreateMealRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/model.MealResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/response.ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/response.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/response.ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/response.ErrorResponse"}}
                }
            }
        },
        "/api/meals/{id}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Meals"],
                "summary": "Get a meal",
                "parameters": [
                    {"type": "string", "description": "Meal ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.MealResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/response.ErrorResponse"}}
                }
            }
        },
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Health"],
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": true}},
                    "503": {"description": "Service Unavailable", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        }
    },
    "definitions": {
        "model.SubmitEstimateRequest": {
            "type": "object",
            "required": ["photoIds"],
            "properties": {
                "photoIds": {"type": "array", "minItems": 1, "items": {"type": "string", "format": "uuid"}}
            }
        },
        "model.SubmitEstimateResponse": {
            "type": "object",
            "properties": {
                "estimateId": {"type": "string"},
                "status": {"type": "string", "enum": ["pending", "processing", "done", "failed"]},
                "createdAt": {"type": "string", "format": "date-time"}
            }
        },
        "model.Macronutrients": {
            "type": "object",
            "properties": {
                "proteinG": {"type": "number"},
                "fatG": {"type": "number"},
                "carbsG": {"type": "number"}
            }
        },
        "model.ItemEstimate": {
            "type": "object",
            "properties": {
                "label": {"type": "string"},
                "kcal": {"type": "number"},
                "confidence": {"type": "number"},
                "macronutrients": {"$ref": "#/definitions/model.Macronutrients"}
            }
        },
        "model.Summary": {
            "type": "object",
            "properties": {
                "kcalMean": {"type": "number"},
                "kcalMin": {"type": "number"},
                "kcalMax": {"type": "number"},
                "confidence": {"type": "number"},
                "macronutrients": {"$ref": "#/definitions/model.Macronutrients"},
                "items": {"type": "array", "items": {"$ref": "#/definitions/model.ItemEstimate"}}
            }
        },
        "model.EstimateView": {
            "type": "object",
            "properties": {
                "estimateId": {"type": "string"},
                "status": {"type": "string", "enum": ["pending", "processing", "done", "failed"]},
                "photoIds": {"type": "array", "items": {"type": "string"}},
                "result": {"$ref": "#/definitions/model.Summary"},
                "reason": {"type": "string"},
                "createdAt": {"type": "string", "format": "date-time"},
                "updatedAt": {"type": "string", "format": "date-time"}
            }
        },
        "model.CreateUploadRequest": {
            "type": "object",
            "required": ["contentType"],
            "properties": {
                "contentType": {"type": "string", "enum": ["image/jpeg", "image/png", "image/webp", "image/heic"]},
                "groupId": {"type": "string", "maxLength": 64}
            }
        },
        "model.CreateUploadResponse": {
            "type": "object",
            "properties": {
                "photoId": {"type": "string"},
                "storageKey": {"type": "string"},
                "uploadUrl": {"type": "string"},
                "expiresAt": {"type": "string", "format": "date-time"}
            }
        },
        "model.CreateMealRequest": {
            "type": "object",
            "required": ["title"],
            "properties": {
                "title": {"type": "string", "maxLength": 200},
                "estimateId": {"type": "string", "format": "uuid"},
                "kcal": {"type": "number", "minimum": 0},
                "proteinG": {"type": "number", "minimum": 0},
                "fatG": {"type": "number", "minimum": 0},
                "carbsG": {"type": "number", "minimum": 0},
                "eatenAt": {"type": "string", "format": "date-time"}
            }
        },
        "model.MealResponse": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "estimateId": {"type": "string"},
                "title": {"type": "string"},
                "kcal": {"type": "number"},
                "proteinG": {"type": "number"},
                "fatG": {"type": "number"},
                "carbsG": {"type": "number"},
                "eatenAt": {"type": "string", "format": "date-time"},
                "createdAt": {"type": "string", "format": "date-time"}
            }
        },
        "response.ErrorDetail": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "details": {}
            }
        },
        "response.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"$ref": "#/definitions/response.ErrorDetail"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "description": "Enter your bearer token in the format **Bearer &lt;token&gt;**",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8000",
	BasePath:         "/",
	Schemes:          []string{"http", "https"},
	Title:            "Platewise API",
	Description:      "Photo-based meal calorie estimation.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
