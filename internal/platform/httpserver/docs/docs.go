// Package docs registers the generated OpenAPI document with the swag
// runtime so the /swagger/ route can serve it.
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
        "/v1/goods": {
            "post": {
                "summary": "Register a good",
                "tags": ["goods"],
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/v1/goods/{good_id}/publish": {
            "post": {
                "summary": "Publish a good for reservations",
                "tags": ["goods"],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/v1/goods/{good_id}/reservations": {
            "post": {
                "summary": "Submit a reservation",
                "tags": ["reservations"],
                "responses": {"201": {"description": "Created"}}
            },
            "get": {
                "summary": "List a good's reservation chain",
                "tags": ["reservations"],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/v1/goods/{good_id}/winner": {
            "get": {
                "summary": "Get the current winning reservation",
                "tags": ["reservations"],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/v1/reservations/{reservation_id}": {
            "get": {
                "summary": "Get a reservation by id",
                "tags": ["reservations"],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/v1/reservations/{reservation_id}/cancel": {
            "post": {
                "summary": "Cancel a reservation",
                "tags": ["reservations"],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/v1/reservations/{reservation_id}/settle": {
            "post": {
                "summary": "Settle a reservation into distributions",
                "tags": ["settlement"],
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/v1/collections/{collection_id}/distributions/stats": {
            "get": {
                "summary": "Aggregate rank-1 distribution stats for a collection",
                "tags": ["settlement"],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/v1/collections/{collection_id}/distributions/tracking": {
            "get": {
                "summary": "List every distribution for a collection",
                "tags": ["settlement"],
                "responses": {"200": {"description": "OK"}}
            }
        }
    }
}`

var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Calyx Market Core API",
	Description:      "Reservation ranking and settlement endpoints.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
