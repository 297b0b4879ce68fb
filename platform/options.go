package platform

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
)

// Well-known option names.
const (
	OptionShared  = "shared"
	OptionFPIC    = "fPIC"
	OptionSysroot = "sysroot"
)

// Kind is the declared type of an option.
type Kind int

const (
	KindBool Kind = iota
	KindString
)

func (k Kind) String() string {
	if k == KindBool {
		return "bool"
	}
	return "string"
}

// Value is an option value: either a boolean or a string.
type Value struct {
	kind Kind
	b    bool
	s    string
}

// BoolValue returns a boolean Value.
func BoolValue(b bool) Value { return Value{kind: KindBool, b: b} }

// StringValue returns a string Value.
func StringValue(s string) Value { return Value{kind: KindString, s: s} }

// Kind returns the kind of v.
func (v Value) Kind() Kind { return v.kind }

// Bool returns the boolean held by v. ok is false for string values.
func (v Value) Bool() (b, ok bool) {
	return v.b, v.kind == KindBool
}

func (v Value) String() string {
	if v.kind == KindBool {
		return strconv.FormatBool(v.b)
	}
	return v.s
}

// Spec declares one option of a recipe.
type Spec struct {
	Kind    Kind
	Default Value
	// Allowed restricts string values. Empty means any string.
	Allowed []string
}

// Schema maps option names to their declaration.
type Schema map[string]Spec

// Bool declares a boolean option.
func Bool(def bool) Spec {
	return Spec{Kind: KindBool, Default: BoolValue(def)}
}

// String declares a string option. A nil allowed list accepts any value.
func String(def string, allowed ...string) Spec {
	return Spec{Kind: KindString, Default: StringValue(def), Allowed: allowed}
}

// Names returns the declared option names in sorted order.
func (s Schema) Names() []string {
	return slices.Sorted(maps.Keys(s))
}

// ValidateOptions checks every option of d against schema. An option absent
// from schema, or a value of the wrong kind or outside the allowed set, is a
// *ConfigurationError.
func (d Descriptor) ValidateOptions(schema Schema) error {
	for _, name := range d.OptionNames() {
		spec, ok := schema[name]
		if !ok {
			return &ConfigurationError{Option: name, Reason: "unknown option"}
		}
		if err := spec.check(d.options[name]); err != nil {
			return &ConfigurationError{Option: name, Reason: err.Error()}
		}
	}
	return nil
}

func (s Spec) check(v Value) error {
	if v.kind != s.Kind {
		return fmt.Errorf("expected %s value, got %s %q", s.Kind, v.kind, v.String())
	}
	if s.Kind == KindString && len(s.Allowed) > 0 && !slices.Contains(s.Allowed, v.s) {
		return fmt.Errorf("value %q not in %v", v.s, s.Allowed)
	}
	return nil
}

// Resolve coerces raw textual options (as given on the command line or in a
// batch file) to the kinds declared in schema, then fills in defaults for
// every option not given. Unknown names are rejected.
func (s Schema) Resolve(raw map[string]string) (map[string]Value, error) {
	out := make(map[string]Value, len(s))
	for _, name := range slices.Sorted(maps.Keys(raw)) {
		spec, ok := s[name]
		if !ok {
			return nil, &ConfigurationError{Option: name, Reason: "unknown option"}
		}
		v, err := spec.parse(raw[name])
		if err != nil {
			return nil, &ConfigurationError{Option: name, Reason: err.Error()}
		}
		out[name] = v
	}
	for name, spec := range s {
		if _, ok := out[name]; !ok {
			out[name] = spec.Default
		}
	}
	return out, nil
}

func (s Spec) parse(raw string) (Value, error) {
	if s.Kind == KindBool {
		b, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return Value{}, fmt.Errorf("expected bool value, got %q", raw)
		}
		return BoolValue(b), nil
	}
	v := StringValue(raw)
	if err := s.check(v); err != nil {
		return Value{}, err
	}
	return v, nil
}

// ParseAssignments parses "name=value" pairs. A bare "name" means "name=true".
func ParseAssignments(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, &ConfigurationError{Option: pair, Reason: "empty option name"}
		}
		if !ok {
			value = "true"
		}
		out[name] = value
	}
	return out, nil
}
