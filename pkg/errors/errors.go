package errors

import (
	"errors"
	"fmt"
)

// Error codes carried by Error.
const (
	CodeCompilation      = "COMPILATION_FAILED"
	CodeModuleCreation   = "MODULE_CREATION_FAILED"
	CodeMissingAdapter   = "MISSING_ADAPTER"
	CodeColumnResolution = "COLUMN_RESOLUTION_FAILED"
	CodeExecution        = "EXECUTION_FAILED"
	CodeMappingConflict  = "MAPPING_CONFLICT"
	CodeInvalidSettings  = "INVALID_SETTINGS"
)

var (
	// ErrCompilation indicates that a script or command could not be compiled
	ErrCompilation = errors.New("compilation failed")

	// ErrUnsupportedLanguage indicates that no engine is registered for a language
	ErrUnsupportedLanguage = errors.New("unsupported language")

	// ErrModuleCreation indicates that a module instance could not be created
	ErrModuleCreation = errors.New("module creation failed")

	// ErrMissingAdapter indicates that no input adapter converts a cell type to an item type
	ErrMissingAdapter = errors.New("missing adapter")

	// ErrColumnResolution indicates that a mapped column could not be resolved against a row
	ErrColumnResolution = errors.New("column resolution failed")

	// ErrExecution indicates that module execution failed
	ErrExecution = errors.New("execution failed")

	// ErrUnresolvedInput indicates that a required input had no value at execution time
	ErrUnresolvedInput = errors.New("unresolved required input")

	// ErrMappingConflict indicates that a mapping collided with an existing one
	ErrMappingConflict = errors.New("mapping conflict")

	// ErrInvalidSettings indicates that node settings failed validation
	ErrInvalidSettings = errors.New("invalid settings")
)

var codeSentinels = map[string]error{
	CodeCompilation:      ErrCompilation,
	CodeModuleCreation:   ErrModuleCreation,
	CodeMissingAdapter:   ErrMissingAdapter,
	CodeColumnResolution: ErrColumnResolution,
	CodeExecution:        ErrExecution,
	CodeMappingConflict:  ErrMappingConflict,
	CodeInvalidSettings:  ErrInvalidSettings,
}

// Error represents a structured error with a machine-readable code
type Error struct {
	// Code is a machine-readable error code
	Code string

	// Message is a human-readable error message
	Message string

	// Err is the underlying error, if any
	Err error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for this error's code.
func (e *Error) Is(target error) bool {
	if sentinel, ok := codeSentinels[e.Code]; ok && sentinel == target {
		return true
	}
	if other, ok := target.(*Error); ok {
		return other.Code == e.Code && other.Message == e.Message
	}
	return false
}

// NewError creates a new structured error
func NewError(code, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Compilation wraps err as a compilation failure.
func Compilation(message string, err error) *Error {
	return NewError(CodeCompilation, message, err)
}

// ModuleCreation wraps err as a module creation failure.
func ModuleCreation(message string, err error) *Error {
	return NewError(CodeModuleCreation, message, err)
}

// MissingAdapter reports that no adapter converts from to to.
func MissingAdapter(input, from, to string) *Error {
	return NewError(CodeMissingAdapter,
		fmt.Sprintf("no adapter for input %q from %s to %s", input, from, to), nil)
}

// ColumnResolution wraps err as a column resolution failure.
func ColumnResolution(message string, err error) *Error {
	return NewError(CodeColumnResolution, message, err)
}

// Execution wraps err as an execution failure.
func Execution(message string, err error) *Error {
	return NewError(CodeExecution, message, err)
}

// IsCompilation checks if an error is a compilation error
func IsCompilation(err error) bool {
	return errors.Is(err, ErrCompilation)
}

// IsExecution checks if an error is an execution error
func IsExecution(err error) bool {
	return errors.Is(err, ErrExecution)
}

// IsMissingAdapter checks if an error is a missing adapter error
func IsMissingAdapter(err error) bool {
	return errors.Is(err, ErrMissingAdapter)
}
