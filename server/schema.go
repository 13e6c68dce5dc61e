package server

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const transferSchema = `{
	"type": "object",
	"properties": {
		"from":   {"type": "string", "minLength": 1},
		"to":     {"type": "string", "minLength": 1},
		"points": {"type": "string", "minLength": 1}
	},
	"required": ["from", "to", "points"],
	"additionalProperties": false
}`

const saveSchema = `{
	"type": "object",
	"properties": {
		"layer":     {"type": "string", "minLength": 1},
		"directory": {"type": "string"}
	},
	"required": ["layer"],
	"additionalProperties": false
}`

const pointsSchema = `{
	"type": "object",
	"properties": {
		"points": {
			"type": "array",
			"items": {"type": "array", "items": {"type": "number"}, "minItems": 1}
		}
	},
	"required": ["points"]
}`

var (
	transferRequestSchema = jsonschema.MustCompileString("transfer.json", transferSchema)
	saveRequestSchema     = jsonschema.MustCompileString("save.json", saveSchema)
	pointsRequestSchema   = jsonschema.MustCompileString("points.json", pointsSchema)
)

// decodeValidated checks the JSON body against a schema before decoding it into dest.
func decodeValidated(sch *jsonschema.Schema, body []byte, dest interface{}) error {
	var v interface{}
	if err := json.Unmarshal(body, &v); err != nil {
		return fmt.Errorf("malformed JSON: %v", err)
	}
	if err := sch.Validate(v); err != nil {
		return fmt.Errorf("invalid request: %v", err)
	}
	return json.Unmarshal(body, dest)
}
