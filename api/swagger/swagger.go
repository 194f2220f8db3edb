package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Course Planner Bridge",
        "description": "Loopback operation bridge between the planner UI and the scheduling engine.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Operations", "description": "Single operation entry point"},
        {"name": "Health", "description": "Liveness and metrics"}
    ],
    "paths": {
        "/operations": {
            "get": {
                "tags": ["Operations"],
                "summary": "List operations",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/operations/{operation}": {
            "post": {
                "tags": ["Operations"],
                "summary": "Run an operation",
                "description": "GENERATE_SCHEDULES, GENERATE_ALL, BOT_QUERY_SCHEDULES, GET_LAST_FILTERED_IDS, CLEAN_SCHEDULES, SAVE_SCHEDULE, PRINT_SCHEDULE, LOAD_COURSES, GET_FILE_HISTORY, GET_SCHEDULES, GET_LOG_ENTRIES",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "operation", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": false, "schema": {"type": "object"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid input", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown operation", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "Component not configured", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "GenerateSchedulesRequest": {
            "type": "object",
            "properties": {
                "semester": {"type": "integer", "enum": [1, 2, 3]},
                "courses": {"type": "array", "items": {"type": "object"}},
                "block_times": {"type": "array", "items": {"$ref": "#/definitions/BlockTime"}}
            }
        },
        "BlockTime": {
            "type": "object",
            "properties": {
                "day": {"type": "integer"},
                "start_time": {"type": "string", "example": "12:00"},
                "end_time": {"type": "string", "example": "14:00"},
                "semester": {"type": "integer"}
            }
        },
        "BotQueryRequest": {
            "type": "object",
            "properties": {
                "user_text": {"type": "string"},
                "available_ids": {"type": "array", "items": {"type": "integer"}},
                "semester": {"type": "integer"}
            }
        },
        "ExportRequest": {
            "type": "object",
            "properties": {
                "schedule": {"type": "object"},
                "path": {"type": "string"}
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
                "operation": {"type": "string"},
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
