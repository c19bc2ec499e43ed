package reactive

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// clientMessage is one message from the client. Type "input" carries an
// edited bound value as a state path and its new value; type "action"
// names a registered server-side action with an optional payload.
type clientMessage struct {
	Type   string         `json:"type"`
	Action string         `json:"action,omitempty"`
	Path   string         `json:"path,omitempty"`
	Value  any            `json:"value,omitempty"`
	Data   map[string]any `json:"data,omitempty"`
}

const (
	messageInput  = "input"
	messageAction = "action"
)

// parseClientMessage decodes a client message and normalizes its
// payload map.
func parseClientMessage(data []byte) (clientMessage, error) {
	var msg clientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return clientMessage{}, fmt.Errorf("parse client message: %w", err)
	}
	if msg.Data == nil {
		msg.Data = make(map[string]any)
	}
	return msg, nil
}

// ActionFunc handles one named client action. Mutate state through
// ctx.Store; the render and the client update follow automatically.
// Return a FieldError or MultiError to surface per-field messages.
type ActionFunc func(ctx *ActionContext) error

// ActionContext carries one action invocation.
type ActionContext struct {
	Action string
	Data   *ActionData
	Store  *Store
}

// Bind is a convenience method that delegates to Data.Bind.
func (c *ActionContext) Bind(v any) error {
	return c.Data.Bind(v)
}

// BindAndValidate is a convenience method that delegates to
// Data.BindAndValidate.
func (c *ActionContext) BindAndValidate(v any, validate *validator.Validate) error {
	return c.Data.BindAndValidate(v, validate)
}

// GetString is a convenience method.
func (c *ActionContext) GetString(key string) string {
	return c.Data.GetString(key)
}

// GetInt is a convenience method.
func (c *ActionContext) GetInt(key string) int {
	return c.Data.GetInt(key)
}

// GetFloat is a convenience method.
func (c *ActionContext) GetFloat(key string) float64 {
	return c.Data.GetFloat(key)
}

// GetBool is a convenience method.
func (c *ActionContext) GetBool(key string) bool {
	return c.Data.GetBool(key)
}

// Has is a convenience method.
func (c *ActionContext) Has(key string) bool {
	return c.Data.Has(key)
}

// ActionData wraps an action payload with binding and lookup helpers.
type ActionData struct {
	raw   map[string]any
	bytes []byte // cached JSON for binding
}

func newActionData(data map[string]any) *ActionData {
	return &ActionData{raw: data}
}

// Bind unmarshals the payload into a struct.
func (a *ActionData) Bind(v any) error {
	if a.bytes == nil {
		var err error
		a.bytes, err = json.Marshal(a.raw)
		if err != nil {
			return fmt.Errorf("marshal action payload: %w", err)
		}
	}
	return json.Unmarshal(a.bytes, v)
}

// BindAndValidate binds the payload into a struct and validates it in
// one step. Validation failures come back as a MultiError.
func (a *ActionData) BindAndValidate(v any, validate *validator.Validate) error {
	if err := a.Bind(v); err != nil {
		return err
	}
	if err := validate.Struct(v); err != nil {
		return ValidationToMultiError(err)
	}
	return nil
}

// Raw returns the underlying payload map.
func (a *ActionData) Raw() map[string]any {
	return a.raw
}

// GetString extracts a string value.
func (a *ActionData) GetString(key string) string {
	if v, ok := a.raw[key].(string); ok {
		return v
	}
	return ""
}

// GetInt extracts an int value. JSON numbers arrive as float64.
func (a *ActionData) GetInt(key string) int {
	if v, ok := a.raw[key].(float64); ok {
		return int(v)
	}
	return 0
}

// GetFloat extracts a float64 value.
func (a *ActionData) GetFloat(key string) float64 {
	if v, ok := a.raw[key].(float64); ok {
		return v
	}
	return 0
}

// GetBool extracts a bool value.
func (a *ActionData) GetBool(key string) bool {
	if v, ok := a.raw[key].(bool); ok {
		return v
	}
	return false
}

// Has checks whether a key exists in the payload.
func (a *ActionData) Has(key string) bool {
	_, exists := a.raw[key]
	return exists
}

// Get returns the raw value for a key.
func (a *ActionData) Get(key string) any {
	return a.raw[key]
}
