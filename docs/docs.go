// Package docs registra el documento OpenAPI servido en /swagger/*.
// Se regenera con `swag init -g cmd/api/main.go -o docs` a partir de los godoc de los handlers.
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
        "/sessions/{sessionID}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["sessions"],
                "summary": "Obtener una sesión",
                "parameters": [
                    {"type": "string", "description": "ID de la sesión", "name": "sessionID", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/sessions.sessionResponse"}},
                    "404": {"description": "session not found", "schema": {"type": "string"}}
                }
            }
        },
        "/sessions/{sessionID}/bookings": {
            "get": {
                "produces": ["application/json"],
                "tags": ["sessions"],
                "summary": "Listar reservas de una sesión",
                "parameters": [
                    {"type": "string", "description": "ID de la sesión", "name": "sessionID", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/sessions.bookingResponse"}}},
                    "404": {"description": "session not found", "schema": {"type": "string"}}
                }
            },
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["sessions"],
                "summary": "Reservar un cupo",
                "parameters": [
                    {"type": "string", "description": "Solo en modo dev, ID de usuario para depuración", "name": "X-Debug-User-ID", "in": "header"},
                    {"type": "string", "description": "ID de la sesión", "name": "sessionID", "in": "path", "required": true},
                    {"description": "Sujeto (usuario o paciente)", "name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/sessions.createBookingRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/sessions.bookingResponse"}},
                    "400": {"description": "invalid json / session is not active", "schema": {"type": "string"}},
                    "401": {"description": "unauthorized", "schema": {"type": "string"}},
                    "404": {"description": "session not found", "schema": {"type": "string"}},
                    "409": {"description": "session is full / duplicate booking", "schema": {"type": "string"}}
                }
            }
        },
        "/sessions/{sessionID}/reconcile": {
            "post": {
                "produces": ["application/json"],
                "tags": ["sessions"],
                "summary": "Recalcular el contador de una sesión",
                "parameters": [
                    {"type": "string", "description": "ID de la sesión", "name": "sessionID", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/sessions.sessionResponse"}},
                    "404": {"description": "session not found", "schema": {"type": "string"}}
                }
            }
        },
        "/bookings/{bookingID}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["bookings"],
                "summary": "Obtener una reserva",
                "parameters": [
                    {"type": "string", "description": "ID de la reserva", "name": "bookingID", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/sessions.bookingResponse"}},
                    "404": {"description": "booking not found", "schema": {"type": "string"}}
                }
            },
            "patch": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["bookings"],
                "summary": "Cambiar el estado de una reserva",
                "parameters": [
                    {"type": "string", "description": "ID de la reserva", "name": "bookingID", "in": "path", "required": true},
                    {"description": "Nuevo estado", "name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/sessions.updateBookingStatusRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/sessions.bookingResponse"}},
                    "409": {"description": "illegal booking status transition", "schema": {"type": "string"}}
                }
            },
            "delete": {
                "tags": ["bookings"],
                "summary": "Eliminar una reserva",
                "parameters": [
                    {"type": "string", "description": "ID de la reserva", "name": "bookingID", "in": "path", "required": true}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "404": {"description": "booking not found", "schema": {"type": "string"}}
                }
            }
        },
        "/bookings/{bookingID}/cancel": {
            "post": {
                "produces": ["application/json"],
                "tags": ["bookings"],
                "summary": "Cancelar una reserva",
                "parameters": [
                    {"type": "string", "description": "ID de la reserva", "name": "bookingID", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/sessions.bookingResponse"}},
                    "409": {"description": "booking already cancelled", "schema": {"type": "string"}}
                }
            }
        },
        "/patients/{patientID}/medications/{medicationID}/eligibility": {
            "get": {
                "produces": ["application/json"],
                "tags": ["dispensations"],
                "summary": "Consultar elegibilidad de dispensación",
                "parameters": [
                    {"type": "string", "description": "ID del paciente", "name": "patientID", "in": "path", "required": true},
                    {"type": "string", "description": "ID de la medicación", "name": "medicationID", "in": "path", "required": true},
                    {"type": "string", "description": "YYYY-MM-DD o RFC3339 (default: ahora)", "name": "date", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dispensations.eligibilityResponse"}},
                    "400": {"description": "invalid date", "schema": {"type": "string"}},
                    "404": {"description": "patient / medication not found", "schema": {"type": "string"}}
                }
            }
        },
        "/patients/{patientID}/medications/{medicationID}/dispensations": {
            "get": {
                "produces": ["application/json"],
                "tags": ["dispensations"],
                "summary": "Historial de dispensaciones",
                "parameters": [
                    {"type": "string", "description": "ID del paciente", "name": "patientID", "in": "path", "required": true},
                    {"type": "string", "description": "ID de la medicación", "name": "medicationID", "in": "path", "required": true},
                    {"type": "integer", "description": "Máximo de filas (default 50, máx 200)", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/dispensations.dispensationResponse"}}}
                }
            },
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["dispensations"],
                "summary": "Registrar una dispensación",
                "parameters": [
                    {"type": "string", "description": "ID del paciente", "name": "patientID", "in": "path", "required": true},
                    {"type": "string", "description": "ID de la medicación", "name": "medicationID", "in": "path", "required": true},
                    {"description": "Fecha (YYYY-MM-DD o RFC3339) y cantidad", "name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/dispensations.dispenseRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/dispensations.dispensationResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/dispensations.eligibilityResponse"}}
                }
            }
        }
    },
    "definitions": {
        "sessions.createBookingRequest": {
            "type": "object",
            "required": ["subject_id"],
            "properties": {"subject_id": {"type": "string"}}
        },
        "sessions.updateBookingStatusRequest": {
            "type": "object",
            "required": ["status"],
            "properties": {"status": {"type": "string", "enum": ["booked", "attended", "cancelled", "missed"]}}
        },
        "sessions.sessionResponse": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "program_id": {"type": "string"},
                "capacity": {"type": "integer"},
                "booked_count": {"type": "integer"},
                "available": {"type": "integer"},
                "scheduled_date": {"type": "string"},
                "start_time": {"type": "string"},
                "end_time": {"type": "string"},
                "is_active": {"type": "boolean"},
                "version": {"type": "integer"},
                "updated_at": {"type": "string"}
            }
        },
        "sessions.bookingResponse": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "session_id": {"type": "string"},
                "subject_id": {"type": "string"},
                "status": {"type": "string"},
                "booked_at": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        },
        "dispensations.dispenseRequest": {
            "type": "object",
            "required": ["date", "quantity"],
            "properties": {"date": {"type": "string"}, "quantity": {"type": "integer"}}
        },
        "dispensations.eligibilityResponse": {
            "type": "object",
            "properties": {
                "eligible": {"type": "boolean"},
                "reason": {"type": "string"},
                "next_due_date": {"type": "string"},
                "window_start": {"type": "string"},
                "window_end": {"type": "string"}
            }
        },
        "dispensations.dispensationResponse": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "medication_id": {"type": "string"},
                "patient_id": {"type": "string"},
                "dispensed_date": {"type": "string"},
                "quantity": {"type": "integer"},
                "next_due_date": {"type": "string"},
                "window_key": {"type": "string"},
                "created_at": {"type": "string"}
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
	Title:            "clinic-care API",
	Description:      "Reservas de sesiones con cupo y elegibilidad de dispensación de medicamentos.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
