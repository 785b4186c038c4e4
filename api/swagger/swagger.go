package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Exam ADP API",
        "description": "Exam administration: scheduling, access control, live answer ingestion, scoring and results",
        "version": "0.1.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Exams", "description": "Exam scheduling and management"},
        {"name": "Questions", "description": "Exam question management"},
        {"name": "Sessions", "description": "Exam taking: access, answers, finalization"},
        {"name": "Results", "description": "Course result aggregation and publishing"},
        {"name": "Schedules", "description": "Weekly room schedules"}
    ],
    "paths": {
        "/exams": {
            "get": {
                "tags": ["Exams"],
                "summary": "List exams",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["Exams"],
                "summary": "Schedule exam",
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/exams/{id}": {
            "get": {
                "tags": ["Exams"],
                "summary": "Get exam",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "put": {
                "tags": ["Exams"],
                "summary": "Update exam",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "delete": {
                "tags": ["Exams"],
                "summary": "Delete exam",
                "responses": {"204": {"description": "No Content"}}
            }
        },
        "/exams/{id}/access": {
            "get": {
                "tags": ["Sessions"],
                "summary": "Evaluate exam access",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/exams/{id}/paper": {
            "get": {
                "tags": ["Questions"],
                "summary": "Questions for taking the exam",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/exams/{id}/live": {
            "get": {
                "tags": ["Sessions"],
                "summary": "Open the live answer channel",
                "responses": {"101": {"description": "Switching Protocols"}}
            }
        },
        "/exams/{id}/questions": {
            "get": {
                "tags": ["Questions"],
                "summary": "List questions with answer keys",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["Questions"],
                "summary": "Add question",
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/questions/{id}": {
            "put": {
                "tags": ["Questions"],
                "summary": "Update question",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "delete": {
                "tags": ["Questions"],
                "summary": "Delete question",
                "responses": {"204": {"description": "No Content"}}
            }
        },
        "/sessions/{id}/answers/{questionId}": {
            "put": {
                "tags": ["Sessions"],
                "summary": "Store one answer",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/sessions/{id}/submit": {
            "post": {
                "tags": ["Sessions"],
                "summary": "Finalize a session",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/courses/{id}/results": {
            "get": {
                "tags": ["Results"],
                "summary": "List course results",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/courses/{id}/results/export": {
            "get": {
                "tags": ["Results"],
                "summary": "Export course results as CSV or PDF",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/results/me": {
            "get": {
                "tags": ["Results"],
                "summary": "List the caller's published results",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/results/{id}/visibility": {
            "put": {
                "tags": ["Results"],
                "summary": "Publish or hide a result",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/schedules": {
            "get": {
                "tags": ["Schedules"],
                "summary": "List schedules",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["Schedules"],
                "summary": "Propose a schedule slot",
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/schedules/{id}": {
            "put": {
                "tags": ["Schedules"],
                "summary": "Update a schedule slot",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "delete": {
                "tags": ["Schedules"],
                "summary": "Delete a schedule slot",
                "responses": {"204": {"description": "No Content"}}
            }
        }
    },
    "definitions": {
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
