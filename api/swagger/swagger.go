package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "TutorHub API",
        "description": "Tutor/student pairing, enrollment and session scheduling",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http",
        "https"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [{"BearerAuth": []}],
    "tags": [
        {"name": "Profiles", "description": "Tutor and student matching profiles"},
        {"name": "Pairing", "description": "Pairing queues and match cycles"},
        {"name": "Enrollments", "description": "Tutor/student enrollments and availability"},
        {"name": "Sessions", "description": "Materialized weekly sessions"},
        {"name": "Meetings", "description": "Shared meeting link pool"},
        {"name": "Webhooks", "description": "Video provider callbacks"}
    ],
    "paths": {
        "/profiles": {
            "get": {
                "tags": ["Profiles"],
                "summary": "List profiles",
                "parameters": [
                    {"name": "role", "in": "query", "type": "string", "enum": ["TUTOR", "STUDENT"]},
                    {"name": "status", "in": "query", "type": "string", "enum": ["ACTIVE", "INACTIVE"]},
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Profiles"],
                "summary": "Register profile",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateProfileRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Profile exists", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/profiles/{id}/matching": {
            "get": {
                "tags": ["Profiles"],
                "summary": "Get matching profile",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Profiles"],
                "summary": "Replace matching metadata",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateMatchingProfileRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid availability", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/pairing/requests": {
            "post": {
                "tags": ["Pairing"],
                "summary": "Enqueue pairing request",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/EnqueuePairingRequest"}}
                ],
                "responses": {
                    "201": {"description": "Queued", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Duplicate request", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/pairing/requests/{id}": {
            "delete": {
                "tags": ["Pairing"],
                "summary": "Withdraw pending request",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Withdrawn"}
                }
            }
        },
        "/pairing/requests/{id}/priority": {
            "patch": {
                "tags": ["Pairing"],
                "summary": "Change request priority",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdatePriorityRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/pairing/queue": {
            "get": {
                "tags": ["Pairing"],
                "summary": "Queue snapshot in serving order",
                "parameters": [
                    {"name": "type", "in": "query", "type": "string", "enum": ["TUTOR", "STUDENT"]}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/pairing/resolve": {
            "post": {
                "tags": ["Pairing"],
                "summary": "Run a match cycle",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Match cycle in progress", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/pairing/clear": {
            "post": {
                "tags": ["Pairing"],
                "summary": "Cancel all pending requests",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/pairing/reset": {
            "post": {
                "tags": ["Pairing"],
                "summary": "Undo all proposed matches",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ResetMatchesRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Confirmation mismatch", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/pairing/matches": {
            "get": {
                "tags": ["Pairing"],
                "summary": "List matches",
                "parameters": [
                    {"name": "status", "in": "query", "type": "string", "enum": ["PENDING", "CONFIRMED", "REJECTED"]},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/pairing/matches/{id}/confirm": {
            "post": {
                "tags": ["Pairing"],
                "summary": "Confirm a proposed match",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "schema": {"$ref": "#/definitions/ConfirmMatchRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/pairing/matches/{id}/reject": {
            "post": {
                "tags": ["Pairing"],
                "summary": "Reject a proposed match",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/enrollments": {
            "get": {
                "tags": ["Enrollments"],
                "summary": "List enrollments",
                "parameters": [
                    {"name": "tutorId", "in": "query", "type": "string"},
                    {"name": "studentId", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string", "enum": ["PENDING", "ACTIVE"]},
                    {"name": "sort", "in": "query", "type": "string"},
                    {"name": "order", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Enrollments"],
                "summary": "Create enrollment",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateEnrollmentRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already enrolled", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/enrollments/{id}": {
            "get": {
                "tags": ["Enrollments"],
                "summary": "Get enrollment",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Enrollments"],
                "summary": "Delete enrollment and its sessions",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Deleted"}
                }
            }
        },
        "/enrollments/{id}/availability": {
            "put": {
                "tags": ["Enrollments"],
                "summary": "Replace availability windows",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateAvailabilityRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sessions": {
            "get": {
                "tags": ["Sessions"],
                "summary": "List sessions",
                "parameters": [
                    {"name": "enrollment_id", "in": "query", "type": "string"},
                    {"name": "tutor_id", "in": "query", "type": "string"},
                    {"name": "student_id", "in": "query", "type": "string"},
                    {"name": "meeting_id", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string", "enum": ["ACTIVE", "COMPLETE", "CANCELLED"]},
                    {"name": "from", "in": "query", "type": "string"},
                    {"name": "to", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sessions/materialize": {
            "post": {
                "tags": ["Sessions"],
                "summary": "Materialize a week of sessions",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/MaterializeSessionsRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Meeting conflict", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sessions/export": {
            "get": {
                "tags": ["Sessions"],
                "summary": "Export session roster",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]},
                    {"name": "from", "in": "query", "type": "string"},
                    {"name": "to", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Roster document"}
                }
            }
        },
        "/sessions/{id}/reschedule": {
            "put": {
                "tags": ["Sessions"],
                "summary": "Reschedule session",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RescheduleSessionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Meeting conflict", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sessions/{id}/complete": {
            "post": {
                "tags": ["Sessions"],
                "summary": "Complete session with exit form",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CompleteSessionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sessions/{id}/cancel": {
            "post": {
                "tags": ["Sessions"],
                "summary": "Cancel session",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/meetings": {
            "get": {
                "tags": ["Meetings"],
                "summary": "List meeting links",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Meetings"],
                "summary": "Add meeting link",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateMeetingRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/meetings/{id}/availability": {
            "get": {
                "tags": ["Meetings"],
                "summary": "Check meeting availability at a date",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "date", "in": "query", "required": true, "type": "string", "format": "date-time"},
                    {"name": "excludeSessionId", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid date", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "AvailabilityWindow": {
            "type": "object",
            "properties": {
                "day": {"type": "string", "enum": ["MONDAY", "TUESDAY", "WEDNESDAY", "THURSDAY", "FRIDAY", "SATURDAY", "SUNDAY"]},
                "startTime": {"type": "string", "example": "09:00"},
                "endTime": {"type": "string", "example": "10:30"}
            },
            "required": ["day", "startTime", "endTime"]
        },
        "UpdateMatchingProfileRequest": {
            "type": "object",
            "properties": {
                "status": {"type": "string", "enum": ["ACTIVE", "INACTIVE"]},
                "subjects": {"type": "array", "items": {"type": "string"}},
                "languages": {"type": "array", "items": {"type": "string"}},
                "availability": {"type": "array", "items": {"$ref": "#/definitions/AvailabilityWindow"}}
            },
            "required": ["subjects"]
        },
        "CreateProfileRequest": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "role": {"type": "string", "enum": ["TUTOR", "STUDENT"]},
                "fullName": {"type": "string"},
                "email": {"type": "string"},
                "status": {"type": "string", "enum": ["ACTIVE", "INACTIVE"]},
                "subjects": {"type": "array", "items": {"type": "string"}},
                "languages": {"type": "array", "items": {"type": "string"}},
                "availability": {"type": "array", "items": {"$ref": "#/definitions/AvailabilityWindow"}}
            },
            "required": ["role", "fullName", "email", "subjects"]
        },
        "EnqueuePairingRequest": {
            "type": "object",
            "properties": {
                "profileId": {"type": "string"},
                "type": {"type": "string", "enum": ["TUTOR", "STUDENT"]},
                "priority": {"type": "integer"}
            },
            "required": ["profileId", "type"]
        },
        "UpdatePriorityRequest": {
            "type": "object",
            "properties": {
                "priority": {"type": "integer"}
            },
            "required": ["priority"]
        },
        "ResetMatchesRequest": {
            "type": "object",
            "properties": {
                "confirmation": {"type": "string", "example": "RESET ALL MATCHES"}
            },
            "required": ["confirmation"]
        },
        "ConfirmMatchRequest": {
            "type": "object",
            "properties": {
                "meetingId": {"type": "string"}
            }
        },
        "CreateEnrollmentRequest": {
            "type": "object",
            "properties": {
                "tutorId": {"type": "string"},
                "studentId": {"type": "string"},
                "summary": {"type": "string"},
                "startDate": {"type": "string", "format": "date"},
                "endDate": {"type": "string", "format": "date"},
                "availability": {"type": "array", "items": {"$ref": "#/definitions/AvailabilityWindow"}},
                "meetingId": {"type": "string"}
            },
            "required": ["tutorId", "studentId", "startDate", "availability"]
        },
        "UpdateAvailabilityRequest": {
            "type": "object",
            "properties": {
                "availability": {"type": "array", "items": {"$ref": "#/definitions/AvailabilityWindow"}}
            },
            "required": ["availability"]
        },
        "MaterializeSessionsRequest": {
            "type": "object",
            "properties": {
                "weekStart": {"type": "string", "format": "date"},
                "weekEnd": {"type": "string", "format": "date"}
            },
            "required": ["weekStart"]
        },
        "RescheduleSessionRequest": {
            "type": "object",
            "properties": {
                "date": {"type": "string", "format": "date-time"},
                "meetingId": {"type": "string"}
            },
            "required": ["date"]
        },
        "CompleteSessionRequest": {
            "type": "object",
            "properties": {
                "exitFormNotes": {"type": "string"}
            },
            "required": ["exitFormNotes"]
        },
        "CreateMeetingRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "link": {"type": "string"},
                "externalId": {"type": "string"}
            },
            "required": ["name", "link"]
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
                "status": {"type": "integer"}
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
