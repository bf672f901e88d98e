// Package validation checks request bodies and job variables against JSON
// schemas before any domain call is made.
package validation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Schema names.
const (
	HolderCheck  = "holder-check"
	ClaimTicket  = "claim-ticket"
	GeneratePass = "generate-pass"
)

const walletProperty = `"walletAddress": {"type": "string", "minLength": 1, "maxLength": 64}`

var schemaSources = map[string]string{
	HolderCheck: `{
		"type": "object",
		"properties": {` + walletProperty + `},
		"required": ["walletAddress"]
	}`,
	ClaimTicket: `{
		"type": "object",
		"properties": {
			` + walletProperty + `,
			"resourceId": {"type": "string", "minLength": 1, "maxLength": 128},
			"tier": {"type": "string", "maxLength": 32}
		},
		"required": ["walletAddress", "resourceId"]
	}`,
	GeneratePass: `{
		"type": "object",
		"properties": {
			` + walletProperty + `,
			"resourceId": {"type": "string", "maxLength": 128},
			"tier": {"type": "string", "maxLength": 32}
		},
		"required": ["walletAddress"]
	}`,
}

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Summary joins the errors into one line for responses and logs.
func (r *ValidationResult) Summary() string {
	parts := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		parts[i] = fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return strings.Join(parts, "; ")
}

// Validator holds the compiled request schemas. It is safe for concurrent use.
type Validator struct {
	schemas map[string]*gojsonschema.Schema
}

func NewValidator() (*Validator, error) {
	v := &Validator{schemas: make(map[string]*gojsonschema.Schema, len(schemaSources))}
	for name, src := range schemaSources {
		s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", name, err)
		}
		v.schemas[name] = s
	}
	return v, nil
}

// ValidateJSON checks a raw request body.
func (v *Validator) ValidateJSON(name string, body []byte) (*ValidationResult, error) {
	return v.validate(name, gojsonschema.NewBytesLoader(body))
}

// ValidateInput checks already decoded variables, e.g. from a job.
func (v *Validator) ValidateInput(name string, input map[string]interface{}) (*ValidationResult, error) {
	return v.validate(name, gojsonschema.NewGoLoader(input))
}

func (v *Validator) validate(name string, doc gojsonschema.JSONLoader) (*ValidationResult, error) {
	schema, ok := v.schemas[name]
	if !ok {
		return nil, fmt.Errorf("unknown schema %q", name)
	}

	res, err := schema.Validate(doc)
	if err != nil {
		// Not decodable as JSON at all.
		return &ValidationResult{Errors: []ValidationError{{
			Field:   "(root)",
			Message: "body is not valid JSON",
			Code:    "MALFORMED_JSON",
		}}}, nil
	}

	out := &ValidationResult{Valid: res.Valid()}
	for _, e := range res.Errors() {
		out.Errors = append(out.Errors, ValidationError{
			Field:   fieldName(e),
			Message: e.Description(),
			Code:    strings.ToUpper(e.Type()),
		})
	}
	sort.SliceStable(out.Errors, func(i, j int) bool { return out.Errors[i].Field < out.Errors[j].Field })
	return out, nil
}

func fieldName(e gojsonschema.ResultError) string {
	if e.Type() == "required" {
		if prop, ok := e.Details()["property"].(string); ok {
			return prop
		}
	}
	return e.Field()
}
