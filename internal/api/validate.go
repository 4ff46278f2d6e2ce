package api

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/xeipuuv/gojsonschema"
)

// DefaultMaxMessageLength bounds the trimmed message, in characters.
const DefaultMaxMessageLength = 2000

const (
	msgEmpty          = "Message cannot be empty"
	msgInvalidSession = "Invalid session ID format"
	msgInvalidBody    = "Invalid request body"
)

const messageSchemaJSON = `{
	"type": "object",
	"properties": {
		"message": {"type": "string"},
		"sessionId": {"type": ["string", "null"]}
	},
	"required": ["message"]
}`

var messageSchema = mustSchema(messageSchemaJSON)

func mustSchema(src string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("compile schema: %v", err))
	}
	return schema
}

// FieldError is one entry of the details list in a 400 response.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type messageRequest struct {
	Message   string  `json:"message"`
	SessionID *string `json:"sessionId"`
}

func (r messageRequest) sessionID() string {
	if r.SessionID == nil {
		return ""
	}
	return *r.SessionID
}

// schemaErrors converts gojsonschema results into field errors with the
// messages clients expect.
func schemaErrors(result *gojsonschema.Result) []FieldError {
	var out []FieldError
	for _, re := range result.Errors() {
		field := re.Field()
		if re.Type() == "required" {
			if p, ok := re.Details()["property"].(string); ok {
				field = p
			}
		}
		if len(out) > 0 && out[len(out)-1].Field == field {
			continue
		}
		out = append(out, FieldError{Field: field, Message: fieldMessage(field, re.Description())})
	}
	return out
}

func fieldMessage(field, fallback string) string {
	switch field {
	case "message":
		return msgEmpty
	case "sessionId":
		return msgInvalidSession
	default:
		return fallback
	}
}

// checkSession accepts an absent or null session id, otherwise the same
// canonical form the history route takes.
func checkSession(id *string) *FieldError {
	if id == nil || validSessionID(*id) {
		return nil
	}
	return &FieldError{Field: "sessionId", Message: msgInvalidSession}
}

// checkMessage trims text and enforces the non-empty and length rules.
func checkMessage(text string, maxLen int) (string, *FieldError) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", &FieldError{Field: "message", Message: msgEmpty}
	}
	if utf8.RuneCountInString(trimmed) > maxLen {
		return "", &FieldError{Field: "message", Message: fmt.Sprintf("Message is too long (max %d characters)", maxLen)}
	}
	return trimmed, nil
}
