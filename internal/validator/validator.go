package validator

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/harshul/bbdev-cli/internal/catalog"
)

// Kind classifies a validation failure
type Kind string

func (k Kind) Error() string { return string(k) }

const (
	MissingRequiredArgument Kind = "missing required argument"
	WrongType               Kind = "wrong type"
	InvalidChoice           Kind = "invalid choice"
	FileNotFound            Kind = "file not found"
	NotAFile                Kind = "not a file"
	DirectoryNotFound       Kind = "directory not found"
	NotADirectory           Kind = "not a directory"
)

// Error is a single field-level validation failure
type Error struct {
	Field   string
	Kind    Kind
	Message string
	Choices []string // set for InvalidChoice
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Kind)
}

// Is reports whether target is this error's Kind
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// Errors collects every failing field of one validation pass
type Errors []*Error

func (es Errors) Error() string {
	msgs := make([]string, 0, len(es))
	for _, e := range es {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

// Unwrap exposes the individual field errors to errors.Is / errors.As
func (es Errors) Unwrap() []error {
	out := make([]error, 0, len(es))
	for _, e := range es {
		out = append(out, e)
	}
	return out
}

// Field returns the error for a field, if any
func (es Errors) Field(name string) *Error {
	for _, e := range es {
		if e.Field == name {
			return e
		}
	}
	return nil
}

// Validator checks argument values against their definitions. File and
// directory arguments are checked against the filesystem.
type Validator struct {
	stat func(string) (os.FileInfo, error)
}

// New creates a validator backed by os.Stat
func New() *Validator {
	return &Validator{stat: os.Stat}
}

// Validate checks values against defs. Relative paths are taken as-is.
func (v *Validator) Validate(defs []catalog.ArgumentDefinition, values map[string]any) error {
	return v.ValidateIn("", defs, values)
}

// ValidateIn checks values against defs, resolving relative file and directory
// paths against baseDir. Every field is checked; the returned error is an
// Errors value listing all failures, or nil.
func (v *Validator) ValidateIn(baseDir string, defs []catalog.ArgumentDefinition, values map[string]any) error {
	var errs Errors
	for _, def := range defs {
		value, present := values[def.Name]
		if !present || isEmpty(value) {
			if def.Required {
				errs = append(errs, &Error{
					Field:   def.Name,
					Kind:    MissingRequiredArgument,
					Message: "is required",
				})
			}
			// optional and absent: nothing to check, no default injected
			continue
		}
		if err := v.check(baseDir, def, value); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// isEmpty treats nil and the empty string as an absent value
func isEmpty(value any) bool {
	if value == nil {
		return true
	}
	s, ok := value.(string)
	return ok && s == ""
}

func (v *Validator) check(baseDir string, def catalog.ArgumentDefinition, value any) *Error {
	switch def.Type {
	case catalog.TypeString:
		if _, ok := value.(string); !ok {
			return wrongType(def, value)
		}
	case catalog.TypeChoice:
		s, ok := value.(string)
		if !ok {
			return wrongType(def, value)
		}
		if !slices.Contains(def.Choices, s) {
			return &Error{
				Field:   def.Name,
				Kind:    InvalidChoice,
				Message: fmt.Sprintf("%q is not one of: %s", s, strings.Join(def.Choices, ", ")),
				Choices: def.Choices,
			}
		}
	case catalog.TypeNumber:
		if !isNumber(value) {
			return wrongType(def, value)
		}
	case catalog.TypeBoolean:
		if _, ok := value.(bool); !ok {
			return wrongType(def, value)
		}
	case catalog.TypeFile:
		p, ok := value.(string)
		if !ok {
			return wrongType(def, value)
		}
		info, err := v.stat(resolve(baseDir, p))
		if err != nil {
			return &Error{Field: def.Name, Kind: FileNotFound, Message: fmt.Sprintf("file not found: %s", p)}
		}
		if !info.Mode().IsRegular() {
			return &Error{Field: def.Name, Kind: NotAFile, Message: fmt.Sprintf("not a file: %s", p)}
		}
	case catalog.TypeDirectory:
		p, ok := value.(string)
		if !ok {
			return wrongType(def, value)
		}
		info, err := v.stat(resolve(baseDir, p))
		if err != nil {
			return &Error{Field: def.Name, Kind: DirectoryNotFound, Message: fmt.Sprintf("directory not found: %s", p)}
		}
		if !info.IsDir() {
			return &Error{Field: def.Name, Kind: NotADirectory, Message: fmt.Sprintf("not a directory: %s", p)}
		}
	default:
		return &Error{Field: def.Name, Kind: WrongType, Message: fmt.Sprintf("unsupported argument type %q", def.Type)}
	}
	return nil
}

func wrongType(def catalog.ArgumentDefinition, value any) *Error {
	return &Error{
		Field:   def.Name,
		Kind:    WrongType,
		Message: fmt.Sprintf("expected %s, got %T", def.Type, value),
	}
}

func isNumber(value any) bool {
	switch n := value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	case float32:
		return !math.IsNaN(float64(n))
	case float64:
		return !math.IsNaN(n)
	default:
		return false
	}
}

func resolve(baseDir, p string) string {
	if baseDir == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(baseDir, p)
}

// AsErrors extracts the field errors from err, if it carries any
func AsErrors(err error) (Errors, bool) {
	var errs Errors
	if errors.As(err, &errs) {
		return errs, true
	}
	return nil, false
}
