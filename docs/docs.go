// Package docs registers the OpenAPI document served under /swagger.
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
        "/health": {"get": {"tags": ["system"], "summary": "Liveness probe", "responses": {"200": {"description": "OK"}}}},
        "/products": {"get": {"tags": ["products"], "summary": "List the catalog", "responses": {"200": {"description": "OK"}}}},
        "/products/reload": {"post": {"tags": ["products"], "summary": "Fetch the catalog again from the catalog source", "responses": {"200": {"description": "OK"}}}},
        "/products/{id}": {"get": {"tags": ["products"], "summary": "Get one catalog entry",
            "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
            "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Product"}}, "404": {"description": "Not Found"}}}},
        "/cart": {"get": {"tags": ["cart"], "summary": "Current cart with total and item count", "responses": {"200": {"description": "OK"}}}},
        "/cart/items": {"post": {"tags": ["cart"], "summary": "Add one unit of a product to the cart",
            "parameters": [{"name": "request", "in": "body", "required": true, "schema": {"type": "object", "properties": {"productId": {"type": "string"}}}}],
            "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}, "404": {"description": "Not Found"}}}},
        "/cart/items/{productId}": {
            "get": {"tags": ["cart"], "summary": "Get the cart line for a product",
                "parameters": [{"type": "string", "name": "productId", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}},
            "delete": {"tags": ["cart"], "summary": "Remove a product from the cart",
                "parameters": [{"type": "string", "name": "productId", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}},
        "/cart/items/{productId}/increment": {"post": {"tags": ["cart"], "summary": "Add one unit, up to the product's stock",
            "parameters": [{"type": "string", "name": "productId", "in": "path", "required": true}],
            "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}},
        "/cart/items/{productId}/decrement": {"post": {"tags": ["cart"], "summary": "Remove one unit, never below one",
            "parameters": [{"type": "string", "name": "productId", "in": "path", "required": true}],
            "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}},
        "/checkout/customer": {"put": {"tags": ["checkout"], "summary": "Set the checkout form",
            "parameters": [{"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/models.CustomerInfo"}}],
            "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}, "422": {"description": "Unprocessable Entity"}}}},
        "/checkout/whatsapp": {"get": {"tags": ["checkout"], "summary": "Manual order dispatch link",
            "responses": {"200": {"description": "OK"}, "422": {"description": "Unprocessable Entity"}}}},
        "/orders": {"post": {"tags": ["checkout"], "summary": "Submit the cart as an order",
            "responses": {"201": {"description": "Created"}, "409": {"description": "Conflict"}, "422": {"description": "Unprocessable Entity"}, "502": {"description": "Bad Gateway"}}}},
        "/notifications": {"get": {"tags": ["system"], "summary": "Notifications that have not been dismissed yet", "responses": {"200": {"description": "OK"}}}}
    },
    "definitions": {
        "models.Product": {"type": "object", "properties": {
            "id": {"type": "string"}, "name": {"type": "string"}, "price": {"type": "string"},
            "imageUrl": {"type": "string"}, "description": {"type": "string"}, "stock": {"type": "integer"}}},
        "models.CustomerInfo": {"type": "object", "required": ["name", "phone", "address"], "properties": {
            "name": {"type": "string"}, "phone": {"type": "string"}, "address": {"type": "string"}}}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Shopcart API",
	Description:      "Catalog, cart and checkout.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
