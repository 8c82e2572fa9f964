package catalog

import (
	"fmt"
	"sort"
	"strconv"
)

// ArgType is the declared type of an operation argument
type ArgType string

const (
	TypeString    ArgType = "string"
	TypeNumber    ArgType = "number"
	TypeBoolean   ArgType = "boolean"
	TypeFile      ArgType = "file"
	TypeDirectory ArgType = "directory"
	TypeChoice    ArgType = "choice"
)

// ArgumentDefinition describes one named argument of an operation
type ArgumentDefinition struct {
	Name        string   `yaml:"name"`
	Type        ArgType  `yaml:"type"`
	Description string   `yaml:"description,omitempty"`
	Required    bool     `yaml:"required,omitempty"`
	Default     any      `yaml:"default,omitempty"`
	Choices     []string `yaml:"choices,omitempty"`
}

// OperationDefinition is an immutable catalog entry for one bbdev operation,
// e.g. "verilator sim".
type OperationDefinition struct {
	Command     string               `yaml:"command"`
	Name        string               `yaml:"name"`
	Description string               `yaml:"description,omitempty"`
	Arguments   []ArgumentDefinition `yaml:"arguments,omitempty"`
}

// Key returns the "command.operation" identifier
func (o OperationDefinition) Key() string {
	return o.Command + "." + o.Name
}

// Argument looks up an argument definition by name
func (o OperationDefinition) Argument(name string) (ArgumentDefinition, bool) {
	for _, a := range o.Arguments {
		if a.Name == name {
			return a, true
		}
	}
	return ArgumentDefinition{}, false
}

// ArgumentNames returns argument names in declaration order
func (o OperationDefinition) ArgumentNames() []string {
	names := make([]string, 0, len(o.Arguments))
	for _, a := range o.Arguments {
		names = append(names, a.Name)
	}
	return names
}

// Validate checks the definition itself (not argument values)
func (o OperationDefinition) Validate() error {
	if o.Command == "" || o.Name == "" {
		return fmt.Errorf("operation definition needs both command and name (got %q)", o.Key())
	}
	seen := make(map[string]bool, len(o.Arguments))
	for _, a := range o.Arguments {
		if a.Name == "" {
			return fmt.Errorf("%s: argument with empty name", o.Key())
		}
		if seen[a.Name] {
			return fmt.Errorf("%s: duplicate argument %q", o.Key(), a.Name)
		}
		seen[a.Name] = true
		if err := a.validate(); err != nil {
			return fmt.Errorf("%s: %w", o.Key(), err)
		}
	}
	return nil
}

func (a ArgumentDefinition) validate() error {
	switch a.Type {
	case TypeString, TypeNumber, TypeBoolean, TypeFile, TypeDirectory:
		if len(a.Choices) > 0 {
			return fmt.Errorf("argument %q: choices are only allowed for type %q", a.Name, TypeChoice)
		}
	case TypeChoice:
		if len(a.Choices) == 0 {
			return fmt.Errorf("argument %q: type %q needs at least one choice", a.Name, TypeChoice)
		}
	default:
		return fmt.Errorf("argument %q: unknown type %q", a.Name, a.Type)
	}
	return nil
}

// Parse converts a raw command-line string into a value of the argument's type.
// Validation of the result (choices, file existence) is left to the validator.
func (a ArgumentDefinition) Parse(raw string) (any, error) {
	switch a.Type {
	case TypeNumber:
		if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return i, nil
		}
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("argument %q expects a number, got %q", a.Name, raw)
		}
		return f, nil
	case TypeBoolean:
		if raw == "" {
			return true, nil
		}
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("argument %q expects true or false, got %q", a.Name, raw)
		}
		return b, nil
	default:
		return raw, nil
	}
}

// Catalog is the read-only registry of known operations. It is built once and
// never mutated afterwards.
type Catalog struct {
	ops   map[string]OperationDefinition
	order []string
}

// New builds a catalog. A later definition with the same key replaces an
// earlier one, which is how user-defined operations override built-ins.
func New(defs ...OperationDefinition) (*Catalog, error) {
	c := &Catalog{ops: make(map[string]OperationDefinition, len(defs))}
	for _, d := range defs {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		key := d.Key()
		if _, exists := c.ops[key]; !exists {
			c.order = append(c.order, key)
		}
		c.ops[key] = d
	}
	return c, nil
}

// Default returns a catalog with only the built-in operations
func Default() *Catalog {
	c, err := New(Builtin()...)
	if err != nil {
		// built-in table is static; a failure here is a programming error
		panic(err)
	}
	return c
}

// Lookup finds an operation by command and operation name
func (c *Catalog) Lookup(command, operation string) (OperationDefinition, bool) {
	d, ok := c.ops[command+"."+operation]
	return d, ok
}

// All returns every operation in registration order
func (c *Catalog) All() []OperationDefinition {
	out := make([]OperationDefinition, 0, len(c.order))
	for _, k := range c.order {
		out = append(out, c.ops[k])
	}
	return out
}

// Commands returns the distinct command names, sorted
func (c *Catalog) Commands() []string {
	seen := make(map[string]bool)
	var cmds []string
	for _, d := range c.ops {
		if !seen[d.Command] {
			seen[d.Command] = true
			cmds = append(cmds, d.Command)
		}
	}
	sort.Strings(cmds)
	return cmds
}

// Operations returns the operations of one command in registration order
func (c *Catalog) Operations(command string) []OperationDefinition {
	var out []OperationDefinition
	for _, k := range c.order {
		if d := c.ops[k]; d.Command == command {
			out = append(out, d)
		}
	}
	return out
}
