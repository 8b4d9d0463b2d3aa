package logging

import "context"

type contextKey string

const fieldsKey contextKey = "log_fields"

// Fields are added to every record logged with a context that carries them.
type Fields struct {
	ThreadID  string
	Responder string
	Component string
}

// WithFields enriches the context. Non-empty values override earlier ones.
func WithFields(ctx context.Context, fields Fields) context.Context {
	merged := FieldsFrom(ctx)
	if fields.ThreadID != "" {
		merged.ThreadID = fields.ThreadID
	}
	if fields.Responder != "" {
		merged.Responder = fields.Responder
	}
	if fields.Component != "" {
		merged.Component = fields.Component
	}
	return context.WithValue(ctx, fieldsKey, merged)
}

// FieldsFrom returns the fields stored in the context, if any.
func FieldsFrom(ctx context.Context) Fields {
	if fields, ok := ctx.Value(fieldsKey).(Fields); ok {
		return fields
	}
	return Fields{}
}
