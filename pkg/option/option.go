// Package option models the configuration of a stage: a set of named, typed
// values with declared defaults.
package option

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ErrConfig is returned when a required option is missing or a value is out of its declared range.
var ErrConfig = errors.New("invalid stage configuration")

// Type is the value type of an option.
type Type int

const (
	String Type = iota
	Int
	Bool
	StringMap
)

func (t Type) String() string {
	switch t {
	case String:
		return "string"
	case Int:
		return "int"
	case Bool:
		return "bool"
	case StringMap:
		return "map"
	default:
		return "unknown"
	}
}

// Option is a single configuration entry.
type Option struct {
	Key      string
	Type     Type
	Default  any
	Required bool
	// Min is the inclusive lower bound of an Int option.
	Min *int

	value any
	set   bool
}

// Value returns the current value, or the default when unset.
func (o *Option) Value() any {
	if o.set {
		return o.value
	}

	return o.Default
}

// IsSet reports whether a value was supplied.
func (o *Option) IsSet() bool {
	return o.set
}

// Def is a functional modifier of an option declaration.
type Def func(o *Option)

// Required marks the option as mandatory.
func Required() Def {
	return func(o *Option) {
		o.Required = true
	}
}

// Min sets the inclusive minimum of an Int option.
func Min(m int) Def {
	return func(o *Option) {
		o.Min = &m
	}
}

// Options is an ordered set of options.
type Options struct {
	keys  []string
	items map[string]*Option
}

// New creates an empty option set.
func New() *Options {
	return &Options{items: make(map[string]*Option)}
}

func (o *Options) add(key string, typ Type, def any, defs ...Def) *Options {
	opt := &Option{Key: key, Type: typ, Default: def}
	for _, d := range defs {
		d(opt)
	}
	if _, ok := o.items[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.items[key] = opt

	return o
}

// AddString declares a string option.
func (o *Options) AddString(key, def string, defs ...Def) *Options {
	return o.add(key, String, def, defs...)
}

// AddInt declares an int option.
func (o *Options) AddInt(key string, def int, defs ...Def) *Options {
	return o.add(key, Int, def, defs...)
}

// AddBool declares a bool option.
func (o *Options) AddBool(key string, def bool, defs ...Def) *Options {
	return o.add(key, Bool, def, defs...)
}

// AddStringMap declares a string to string map option.
func (o *Options) AddStringMap(key string, defs ...Def) *Options {
	return o.add(key, StringMap, map[string]string{}, defs...)
}

// Keys returns the declared keys in declaration order.
func (o *Options) Keys() []string {
	return slices.Clone(o.keys)
}

// Get returns the option declared under key.
func (o *Options) Get(key string) (*Option, bool) {
	opt, ok := o.items[key]

	return opt, ok
}

// Set assigns a value. Unknown keys are ignored. The value is converted to the
// option type; a value that cannot be converted returns ErrConfig.
func (o *Options) Set(key string, value any) error {
	opt, ok := o.items[key]
	if !ok {
		return nil
	}
	converted, err := convert(opt.Type, value)
	if err != nil {
		return errors.Wrapf(ErrConfig, "option %q: %v", key, err)
	}
	opt.value = converted
	opt.set = true

	return nil
}

// Apply assigns every value of values, ignoring unknown keys, then validates
// the set. On error the options are left unchanged.
func (o *Options) Apply(values map[string]any) error {
	next := o.Clone()
	for _, key := range slices.Sorted(maps.Keys(values)) {
		err := next.Set(key, values[key])
		if err != nil {
			return err
		}
	}

	err := next.Validate()
	if err != nil {
		return err
	}
	o.items = next.items

	return nil
}

// Clone returns an independent copy of the option set.
func (o *Options) Clone() *Options {
	res := &Options{keys: slices.Clone(o.keys), items: make(map[string]*Option, len(o.items))}
	for key, opt := range o.items {
		cp := *opt
		if m, ok := cp.value.(map[string]string); ok {
			cp.value = maps.Clone(m)
		}
		res.items[key] = &cp
	}

	return res
}

// Validate checks required options and int bounds.
func (o *Options) Validate() error {
	for _, key := range o.keys {
		opt := o.items[key]
		if opt.Required && !opt.set {
			return errors.Wrapf(ErrConfig, "option %q is required", key)
		}
		if opt.Type == Int && opt.Min != nil {
			v, _ := opt.Value().(int)
			if v < *opt.Min {
				return errors.Wrapf(ErrConfig, "option %q must be >= %d, got %d", key, *opt.Min, v)
			}
		}
	}

	return nil
}

// Values returns the explicitly set values, suitable for persistence.
func (o *Options) Values() map[string]any {
	res := make(map[string]any)
	for _, key := range o.keys {
		opt := o.items[key]
		if opt.set {
			res[key] = opt.value
		}
	}

	return res
}

// String returns the string value of key.
func (o *Options) String(key string) string {
	v, _ := o.value(key).(string)

	return v
}

// Int returns the int value of key.
func (o *Options) Int(key string) int {
	v, _ := o.value(key).(int)

	return v
}

// Bool returns the bool value of key.
func (o *Options) Bool(key string) bool {
	v, _ := o.value(key).(bool)

	return v
}

// StringMap returns a copy of the map value of key.
func (o *Options) StringMap(key string) map[string]string {
	v, _ := o.value(key).(map[string]string)

	return maps.Clone(v)
}

func (o *Options) value(key string) any {
	opt, ok := o.items[key]
	if !ok {
		return nil
	}

	return opt.Value()
}

func convert(typ Type, value any) (any, error) {
	switch typ {
	case String:
		switch v := value.(type) {
		case string:
			return v, nil
		case fmt.Stringer:
			return v.String(), nil
		default:
			return fmt.Sprint(v), nil
		}
	case Int:
		return toInt(value)
	case Bool:
		switch v := value.(type) {
		case bool:
			return v, nil
		case string:
			return strconv.ParseBool(v)
		default:
			return nil, errors.Errorf("expected bool, got %T", value)
		}
	case StringMap:
		return toStringMap(value)
	default:
		return nil, errors.Errorf("unsupported option type %v", typ)
	}
}

func toInt(value any) (any, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v != float64(int(v)) {
			return nil, errors.Errorf("expected integer, got %v", v)
		}

		return int(v), nil
	case string:
		return strconv.Atoi(strings.TrimSpace(v))
	default:
		return nil, errors.Errorf("expected int, got %T", value)
	}
}

// toStringMap accepts a map or a "key=value;key=value" string.
func toStringMap(value any) (any, error) {
	switch v := value.(type) {
	case map[string]string:
		return maps.Clone(v), nil
	case map[string]any:
		res := make(map[string]string, len(v))
		for k, val := range v {
			res[k] = fmt.Sprint(val)
		}

		return res, nil
	case string:
		res := make(map[string]string)
		for _, pair := range strings.Split(v, ";") {
			if strings.TrimSpace(pair) == "" {
				continue
			}
			from, to, ok := strings.Cut(pair, "=")
			if !ok {
				return nil, errors.Errorf("invalid map entry %q", pair)
			}
			res[from] = to
		}

		return res, nil
	default:
		return nil, errors.Errorf("expected map, got %T", value)
	}
}
