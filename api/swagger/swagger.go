package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Music CRM API",
        "description": "Admission scheduling and capacity allocation for a music school back office",
        "version": "0.1.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Authentication", "description": "Login and identity"},
        {"name": "Admissions", "description": "Admission allocation and schedules"},
        {"name": "CoursePlans", "description": "Course plan catalog"},
        {"name": "TimeSlots", "description": "Weekly slot catalog"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Authentication"],
                "summary": "Get current user",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/time-slots": {
            "get": {
                "tags": ["TimeSlots"],
                "summary": "List weekly slot templates",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/course-plans": {
            "get": {
                "tags": ["CoursePlans"],
                "summary": "List course plans",
                "parameters": [
                    {"name": "active", "in": "query", "type": "boolean"},
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["CoursePlans"],
                "summary": "Create course plan",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateCoursePlanRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/course-plans/{id}": {
            "get": {
                "tags": ["CoursePlans"],
                "summary": "Get course plan",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["CoursePlans"],
                "summary": "Update course plan",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateCoursePlanRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["CoursePlans"],
                "summary": "Delete course plan",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No content"}
                }
            }
        },
        "/admissions": {
            "get": {
                "tags": ["Admissions"],
                "summary": "List admissions",
                "parameters": [
                    {"name": "leadId", "in": "query", "type": "string"},
                    {"name": "studentId", "in": "query", "type": "string"},
                    {"name": "courseId", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"},
                    {"name": "sort", "in": "query", "type": "string"},
                    {"name": "order", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Admissions"],
                "summary": "Create admission",
                "description": "Resolves weekly slots, validates classroom capacity, generates the attendance calendar and commits atomically.",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateAdmissionRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation failure", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Capacity exceeded", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admissions/{id}": {
            "get": {
                "tags": ["Admissions"],
                "summary": "Get admission",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "patch": {
                "tags": ["Admissions"],
                "summary": "Update admission",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateAdmissionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Admissions"],
                "summary": "Delete admission",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "hard", "in": "query", "type": "boolean"}
                ],
                "responses": {
                    "204": {"description": "No content"}
                }
            }
        },
        "/admissions/{id}/schedule/export": {
            "get": {
                "tags": ["Admissions"],
                "summary": "Export admission schedule",
                "produces": ["application/octet-stream"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "Schedule file"},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "CreateCoursePlanRequest": {
            "type": "object",
            "required": ["name", "duration_months", "classes_per_week"],
            "properties": {
                "name": {"type": "string"},
                "duration_months": {"type": "integer"},
                "classes_per_week": {"type": "integer"},
                "price_cents": {"type": "integer"},
                "active": {"type": "boolean"}
            }
        },
        "UpdateCoursePlanRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "duration_months": {"type": "integer"},
                "classes_per_week": {"type": "integer"},
                "price_cents": {"type": "integer"},
                "active": {"type": "boolean"}
            }
        },
        "WeeklySlotSelection": {
            "type": "object",
            "required": ["time_slot_id"],
            "properties": {
                "time_slot_id": {"type": "string"},
                "day_of_week": {"type": "integer"}
            }
        },
        "CreateAdmissionRequest": {
            "type": "object",
            "required": ["course_plan_id", "course_id", "start_date", "weekly_slots"],
            "properties": {
                "lead_id": {"type": "string"},
                "student_id": {"type": "string"},
                "walk_in": {
                    "type": "object",
                    "properties": {
                        "full_name": {"type": "string"},
                        "email": {"type": "string"},
                        "phone": {"type": "string"},
                        "password": {"type": "string"}
                    }
                },
                "course_plan_id": {"type": "string"},
                "course_id": {"type": "string"},
                "start_date": {"type": "string", "format": "date"},
                "weekly_slots": {"type": "array", "items": {"$ref": "#/definitions/WeeklySlotSelection"}},
                "extra_classes": {"type": "integer"},
                "discount_type": {"type": "string", "enum": ["NONE", "PERCENT", "AMOUNT"]},
                "discount_value": {"type": "integer"},
                "notes": {"type": "string"}
            }
        },
        "UpdateAdmissionRequest": {
            "type": "object",
            "properties": {
                "extra_classes": {"type": "integer"},
                "discount_type": {"type": "string"},
                "discount_value": {"type": "integer"},
                "notes": {"type": "string"},
                "status": {"type": "string"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"},
                "details": {"type": "object"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
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
