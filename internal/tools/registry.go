// Package tools declares the operations the conversational agent may invoke
// and dispatches its structured tool-call requests to the bound handlers.
package tools

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Property describes one named input parameter of a tool.
type Property struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// Schema is the JSON schema advertised to the agent for a tool's input.
type Schema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// Descriptor is the static, process-lifetime metadata for one callable
// operation. The description is consumed by the agent for call routing.
type Descriptor struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	InputSchema Schema `json:"input_schema"`
}

// Handler executes one tool call. The returned string becomes the
// tool_result content fed back into the conversation.
type Handler func(ctx context.Context, input map[string]interface{}) (string, error)

// UnknownToolError means the agent requested a tool that was never
// registered — an integration bug, not a user error.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool %q", e.Name)
}

// InvalidInputError means a required input field was missing or had the
// wrong type. The handler is never invoked in that case.
type InvalidInputError struct {
	Tool  string
	Field string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("tool %q: missing or invalid required field %q", e.Tool, e.Field)
}

type registeredTool struct {
	descriptor Descriptor
	handler    Handler
}

// Registry holds the fixed tool set built at startup. Registration order is
// preserved in Descriptors; there is no dynamic registration at runtime.
type Registry struct {
	order  []string
	tools  map[string]registeredTool
	tracer trace.Tracer
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:  make(map[string]registeredTool),
		tracer: otel.Tracer("gitbridge/tools"),
	}
}

// Register adds a tool. Registering the same name twice panics: the tool set
// is static and a duplicate is a programming error.
func (r *Registry) Register(d Descriptor, h Handler) {
	if _, exists := r.tools[d.Name]; exists {
		panic(fmt.Sprintf("tool %q registered twice", d.Name))
	}
	if d.InputSchema.Type == "" {
		d.InputSchema.Type = "object"
	}
	if d.InputSchema.Properties == nil {
		d.InputSchema.Properties = map[string]Property{}
	}
	r.tools[d.Name] = registeredTool{descriptor: d, handler: h}
	r.order = append(r.order, d.Name)
}

// Descriptors returns all tool descriptors in registration order.
func (r *Registry) Descriptors() []Descriptor {
	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].descriptor)
	}
	return out
}

// Dispatch routes one tool call to its handler. Required fields are checked
// before the handler runs; an unknown name or missing field never reaches a
// handler.
func (r *Registry) Dispatch(ctx context.Context, name string, input map[string]interface{}) (string, error) {
	ctx, span := r.tracer.Start(ctx, "tools.dispatch",
		trace.WithAttributes(attribute.String("tool.name", name)))
	defer span.End()

	tool, ok := r.tools[name]
	if !ok {
		err := &UnknownToolError{Name: name}
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	for _, field := range tool.descriptor.InputSchema.Required {
		if v, present := input[field]; !present || v == nil {
			err := &InvalidInputError{Tool: name, Field: field}
			span.SetStatus(codes.Error, err.Error())
			return "", err
		}
	}

	result, err := tool.handler(ctx, input)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	return result, nil
}
