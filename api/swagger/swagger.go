package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Chronalive Scheduling API",
        "description": "School timetable scheduling and override engine",
        "version": "0.1.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Timetable", "description": "Baseline generation, effective views, weekly overrides"},
        {"name": "Substitutions", "description": "Teacher substitution workflow"},
        {"name": "Exports", "description": "Asynchronous timetable exports"}
    ],
    "paths": {
        "/timetable/generate": {
            "post": {
                "tags": ["Timetable"],
                "summary": "Generate the baseline timetable for a class",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/GenerateTimetableRequest"}}
                ],
                "responses": {
                    "200": {"description": "Generation result", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Class not found"}
                }
            }
        },
        "/timetable/refresh": {
            "post": {
                "tags": ["Timetable"],
                "summary": "Regenerate the baseline while preserving past weekly layers",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/GenerateTimetableRequest"}}
                ],
                "responses": {
                    "200": {"description": "Refresh result", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetable/validate": {
            "get": {
                "tags": ["Timetable"],
                "summary": "Report scheduling conflicts across the school baseline",
                "responses": {
                    "200": {"description": "Validation report", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetable/effective": {
            "get": {
                "tags": ["Timetable"],
                "summary": "Serve the merged effective schedule for a class week or date",
                "parameters": [
                    {"name": "classId", "in": "query", "required": true, "type": "string"},
                    {"name": "weekStart", "in": "query", "type": "string", "description": "Week start, YYYY-MM-DD"},
                    {"name": "date", "in": "query", "type": "string", "description": "Single date, YYYY-MM-DD"}
                ],
                "responses": {
                    "200": {"description": "Merged schedule", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "No baseline for class"}
                }
            }
        },
        "/timetable/weekly/entry": {
            "put": {
                "tags": ["Timetable"],
                "summary": "Apply a manual override edit to one weekly timetable cell",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateWeeklyEntryRequest"}}
                ],
                "responses": {
                    "200": {"description": "New layer version", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Stale version"}
                }
            }
        },
        "/timetable/promote": {
            "post": {
                "tags": ["Timetable"],
                "summary": "Promote a weekly override layer into the global baseline",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/WeekRequest"}}
                ],
                "responses": {
                    "200": {"description": "Promotion result", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetable/reset": {
            "post": {
                "tags": ["Timetable"],
                "summary": "Discard a week's overrides and re-materialize from the baseline",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/WeekRequest"}}
                ],
                "responses": {
                    "200": {"description": "Reset result", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/substitutions": {
            "get": {
                "tags": ["Substitutions"],
                "summary": "List substitutions",
                "parameters": [
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "date", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Substitutions", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/substitutions/find": {
            "post": {
                "tags": ["Substitutions"],
                "summary": "Rank substitute candidates for an entry on a date",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/FindSubstitutesRequest"}}
                ],
                "responses": {
                    "200": {"description": "Ranked candidates", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/substitutions/auto-assign": {
            "post": {
                "tags": ["Substitutions"],
                "summary": "Automatically assign the best available substitute",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AutoAssignRequest"}}
                ],
                "responses": {
                    "201": {"description": "Substitution record", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/substitutions/{id}/approve": {
            "post": {
                "tags": ["Substitutions"],
                "summary": "Approve a substitution and apply the weekly override",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Confirmed substitution", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already decided"}
                }
            }
        },
        "/substitutions/{id}/reject": {
            "post": {
                "tags": ["Substitutions"],
                "summary": "Reject a substitution without touching the weekly layer",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Rejected substitution", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/substitutions/replace": {
            "post": {
                "tags": ["Substitutions"],
                "summary": "Permanently replace a teacher across baseline and upcoming weeks",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/PermanentReplaceRequest"}}
                ],
                "responses": {
                    "200": {"description": "Replacement scope", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Replacement teacher has conflicting lessons"}
                }
            }
        },
        "/absences": {
            "post": {
                "tags": ["Substitutions"],
                "summary": "Record a teacher absence and report its timetable impact",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/MarkAbsentRequest"}}
                ],
                "responses": {
                    "201": {"description": "Absence impact", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetable/exports": {
            "post": {
                "tags": ["Exports"],
                "summary": "Queue a PDF export of a class's effective weekly schedule",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateExportRequest"}}
                ],
                "responses": {
                    "202": {"description": "Job id", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetable/exports/{id}": {
            "get": {
                "tags": ["Exports"],
                "summary": "Report export job status, with a signed download URL when completed",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Job state", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown job"}
                }
            }
        },
        "/timetable/exports/download": {
            "get": {
                "tags": ["Exports"],
                "summary": "Stream a completed export artifact via its signed token",
                "parameters": [
                    {"name": "token", "in": "query", "required": true, "type": "string"}
                ],
                "produces": ["application/pdf"],
                "responses": {
                    "200": {"description": "PDF artifact"},
                    "403": {"description": "Invalid or expired token"}
                }
            }
        }
    },
    "definitions": {
        "GenerateTimetableRequest": {
            "type": "object",
            "required": ["classId"],
            "properties": {
                "classId": {"type": "string"}
            }
        },
        "WeekRequest": {
            "type": "object",
            "required": ["classId", "weekStart"],
            "properties": {
                "classId": {"type": "string"},
                "weekStart": {"type": "string"}
            }
        },
        "UpdateWeeklyEntryRequest": {
            "type": "object",
            "required": ["classId", "weekStart", "day", "period", "action", "reason"],
            "properties": {
                "classId": {"type": "string"},
                "weekStart": {"type": "string"},
                "day": {"type": "integer"},
                "period": {"type": "integer"},
                "action": {"type": "string", "enum": ["assign", "cancel"]},
                "teacherId": {"type": "string"},
                "subjectId": {"type": "string"},
                "room": {"type": "string"},
                "reason": {"type": "string"},
                "version": {"type": "integer"}
            }
        },
        "FindSubstitutesRequest": {
            "type": "object",
            "required": ["teacherId", "entryId", "date"],
            "properties": {
                "teacherId": {"type": "string"},
                "entryId": {"type": "string"},
                "date": {"type": "string"}
            }
        },
        "AutoAssignRequest": {
            "type": "object",
            "required": ["entryId", "date", "reason"],
            "properties": {
                "entryId": {"type": "string"},
                "date": {"type": "string"},
                "reason": {"type": "string"}
            }
        },
        "PermanentReplaceRequest": {
            "type": "object",
            "required": ["originalTeacherId", "replacementTeacherId", "reason"],
            "properties": {
                "originalTeacherId": {"type": "string"},
                "replacementTeacherId": {"type": "string"},
                "reason": {"type": "string"}
            }
        },
        "MarkAbsentRequest": {
            "type": "object",
            "required": ["teacherId", "date", "reason"],
            "properties": {
                "teacherId": {"type": "string"},
                "date": {"type": "string"},
                "reason": {"type": "string"}
            }
        },
        "CreateExportRequest": {
            "type": "object",
            "required": ["classId", "weekStart"],
            "properties": {
                "classId": {"type": "string"},
                "weekStart": {"type": "string"}
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
                "conflicts": {"type": "array", "items": {"type": "object"}},
                "pagination": {"type": "object"},
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
