package javascript

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dop251/goja"
)

// ErrorType categorizes different types of errors
type ErrorType string

const (
	ErrorTypeSyntax   ErrorType = "syntax_error"
	ErrorTypeRuntime  ErrorType = "runtime_error"
	ErrorTypeTimeout  ErrorType = "timeout_error"
	ErrorTypeSecurity ErrorType = "security_error"
	ErrorTypeInternal ErrorType = "internal_error"
)

// JSError represents a structured JavaScript error
type JSError struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Stack   string    `json:"stack,omitempty"`
	Line    int       `json:"line,omitempty"`
	Column  int       `json:"column,omitempty"`
}

// Error implements the error interface
func (e *JSError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.Type, e.Message)
	if e.Line > 0 {
		fmt.Fprintf(&b, " at line %d", e.Line)
		if e.Column > 0 {
			fmt.Fprintf(&b, ", column %d", e.Column)
		}
	}
	return b.String()
}

// fromGojaError converts errors returned by goja into JSError values.
func fromGojaError(err error) *JSError {
	var jsErr *JSError
	if errors.As(err, &jsErr) {
		return jsErr
	}

	var syntaxErr *goja.CompilerSyntaxError
	if errors.As(err, &syntaxErr) {
		out := &JSError{Type: ErrorTypeSyntax, Message: syntaxErr.Message}
		if syntaxErr.File != nil {
			pos := syntaxErr.File.Position(syntaxErr.Offset)
			out.Line, out.Column = pos.Line, pos.Column
		}
		return out
	}

	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		return &JSError{Type: ErrorTypeTimeout, Message: fmt.Sprint(interrupted.Value())}
	}

	var exc *goja.Exception
	if errors.As(err, &exc) {
		out := &JSError{Type: ErrorTypeRuntime, Message: exc.Error(), Stack: exc.String()}
		msg := strings.ToLower(out.Message)
		if strings.Contains(msg, "not allowed") {
			out.Type = ErrorTypeSecurity
		}
		return out
	}

	return &JSError{Type: ErrorTypeInternal, Message: err.Error()}
}

// NewSecurityError creates a new security error
func NewSecurityError(message string) *JSError {
	return &JSError{
		Type:    ErrorTypeSecurity,
		Message: message,
	}
}
