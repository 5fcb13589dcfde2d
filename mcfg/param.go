package mcfg

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/mediocregopher/mediocredis/mcmp"
	"github.com/mediocregopher/mediocredis/mtime"
)

// Param describes a single configuration parameter which has been registered
// onto a Component via one of this package's constructor functions (String,
// Int, Bool, etc...).
type Param struct {
	Component *mcmp.Component
	Name      string
	Usage     string
	Required  bool
	IsBool    bool

	// Into is a pointer to the value which will be Populate'd.
	Into interface{}

	defaultVal json.RawMessage
}

func paramFullName(path []string, name string) string {
	full := make([]string, 0, len(path)+1)
	full = append(full, path...)
	full = append(full, name)
	return strings.Join(full, "-")
}

// fuzzyParse takes a raw string, as might be given on the command-line or in
// an environment variable, and turns it into a JSON value suitable for
// json.Unmarshal'ing into the Param's Into value.
func (p Param) fuzzyParse(s string) json.RawMessage {
	if p.IsBool {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "1", "t", "true", "yes", "y":
			return json.RawMessage("true")
		default:
			return json.RawMessage("false")
		}
	}

	if _, err := strconv.ParseFloat(s, 64); err == nil {
		return json.RawMessage(s)
	} else if s == "true" || s == "false" {
		return json.RawMessage(s)
	}

	b, err := json.Marshal(s)
	if err != nil {
		// s is a string, Marshal-ing a string should never fail.
		panic(err)
	}
	return json.RawMessage(b)
}

type paramsKey int

func getLocalParams(cmp *mcmp.Component) []Param {
	params, _ := cmp.Value(paramsKey(0)).([]Param)
	return params
}

func addLocalParam(cmp *mcmp.Component, p Param) {
	params := getLocalParams(cmp)
	params = append(params, p)
	cmp.SetValue(paramsKey(0), params)
}

// ParamOption is used to modify the behavior of a Param at the time it is
// registered via one of this package's constructor functions.
type ParamOption func(*Param)

// ParamDefault sets the default value of the Param. The default will be used
// if no Source ever provides a value for it. val is marshaled using
// encoding/json, so it should either be of the same type as the Param's Into
// value, or be otherwise compatible with it.
func ParamDefault(val interface{}) ParamOption {
	return func(p *Param) {
		b, err := json.Marshal(val)
		if err != nil {
			panic(err)
		}
		p.defaultVal = b
	}
}

// ParamUsage sets the descriptive usage string of the Param, to be displayed
// in help text.
func ParamUsage(usage string) ParamOption {
	return func(p *Param) {
		p.Usage = usage
	}
}

// ParamRequired indicates that the Param must have a value provided for it by
// a Source; Populate will return an error if one doesn't.
func ParamRequired() ParamOption {
	return func(p *Param) {
		p.Required = true
	}
}

func mkParam(
	cmp *mcmp.Component, name string, into interface{}, isBool bool, opts []ParamOption,
) Param {
	p := Param{
		Component: cmp,
		Name:      name,
		IsBool:    isBool,
		Into:      into,
	}
	for _, opt := range opts {
		opt(&p)
	}

	if p.defaultVal != nil {
		if err := json.Unmarshal(p.defaultVal, into); err != nil {
			panic(err)
		}
	}

	addLocalParam(cmp, p)
	return p
}

// String returns a *string which will be populated once Populate is called on
// the Component (or one of its ancestors).
func String(cmp *mcmp.Component, name string, opts ...ParamOption) *string {
	into := new(string)
	mkParam(cmp, name, into, false, opts)
	return into
}

// Int returns a *int which will be populated once Populate is called on the
// Component (or one of its ancestors).
func Int(cmp *mcmp.Component, name string, opts ...ParamOption) *int {
	into := new(int)
	mkParam(cmp, name, into, false, opts)
	return into
}

// Int64 returns a *int64 which will be populated once Populate is called on
// the Component (or one of its ancestors).
func Int64(cmp *mcmp.Component, name string, opts ...ParamOption) *int64 {
	into := new(int64)
	mkParam(cmp, name, into, false, opts)
	return into
}

// Bool returns a *bool which will be populated once Populate is called on the
// Component (or one of its ancestors). Unlike other Param types, a Bool
// defaults to being settable with no explicit value on the command-line (in
// which case it's considered to be true).
func Bool(cmp *mcmp.Component, name string, opts ...ParamOption) *bool {
	into := new(bool)
	mkParam(cmp, name, into, true, opts)
	return into
}

// Float64 returns a *float64 which will be populated once Populate is called
// on the Component (or one of its ancestors).
func Float64(cmp *mcmp.Component, name string, opts ...ParamOption) *float64 {
	into := new(float64)
	mkParam(cmp, name, into, false, opts)
	return into
}

// Duration returns an *mtime.Duration which will be populated once Populate is
// called on the Component (or one of its ancestors). Values are parsed with
// time.ParseDuration (e.g. "5s", "100ms"); ParamDefault, if given, should be
// an mtime.Duration or a duration string.
func Duration(cmp *mcmp.Component, name string, opts ...ParamOption) *mtime.Duration {
	into := new(mtime.Duration)
	mkParam(cmp, name, into, false, opts)
	return into
}

// JSON unmarshals a configuration value directly into the given pointer using
// encoding/json, once Populate is called on the Component (or one of its
// ancestors). into must be a non-nil pointer.
func JSON(cmp *mcmp.Component, name string, into interface{}, opts ...ParamOption) {
	mkParam(cmp, name, into, false, opts)
}
