package server

import (
	"errors"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/chazu/sel/compiler"
	"github.com/chazu/sel/vm"
)

// Requests and responses are google.protobuf.Struct messages, so the
// services work with both the Connect JSON and binary protobuf codecs
// without generated code.

func stringField(msg *structpb.Struct, name string) string {
	return msg.GetFields()[name].GetStringValue()
}

func newMessage(fields map[string]interface{}) (*structpb.Struct, error) {
	return structpb.NewStruct(fields)
}

// kindName describes a value's kind for responses.
func kindName(v vm.Value) string {
	switch {
	case v.IsError():
		return "error"
	case v.Kind() == vm.KindDouble:
		return "double"
	}
	return "int"
}

// diagnostics converts syntax and import errors to response entries.
// Syntax errors carry their line and column.
func diagnostics(err error) []interface{} {
	out := []interface{}{}
	for _, e := range splitErrors(err) {
		d := map[string]interface{}{
			"severity": "error",
			"message":  e.Error(),
		}
		var se *compiler.SyntaxError
		if errors.As(e, &se) {
			d["message"] = se.Msg
			d["line"] = se.Pos.Line
			d["column"] = se.Pos.Column
		}
		out = append(out, d)
	}
	return out
}

func syntaxDiagnostics(errs []*compiler.SyntaxError) []interface{} {
	joined := make([]error, len(errs))
	for i, e := range errs {
		joined[i] = e
	}
	return diagnostics(errors.Join(joined...))
}

// splitErrors undoes errors.Join.
func splitErrors(err error) []error {
	if err == nil {
		return nil
	}
	if multi, ok := err.(interface{ Unwrap() []error }); ok {
		return multi.Unwrap()
	}
	return []error{err}
}
