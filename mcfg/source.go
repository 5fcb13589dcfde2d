package mcfg

import (
	"encoding/json"

	"github.com/mediocregopher/mediocredis/mcmp"
)

// ParamValue describes a value which should be used to populate a single
// Param. Path and Name are used to match the ParamValue up to its Param (see
// Param.Component.Path() and Param.Name).
type ParamValue struct {
	Path  []string
	Name  string
	Value json.RawMessage
}

// Source is a type which can produce a set of ParamValues given the Params
// registered on a Component (and its descendants).
type Source interface {
	Parse(cmp *mcmp.Component) ([]ParamValue, error)
}

// ParamValues is a static Source, useful for testing or for programmatically
// constructing configuration without an external Source like the CLI or the
// environment.
type ParamValues []ParamValue

// Parse implements the method for the Source interface.
func (pvs ParamValues) Parse(cmp *mcmp.Component) ([]ParamValue, error) {
	return pvs, nil
}

// Sources combines multiple Sources into one. ParamValues produced by later
// Sources in the slice take precedence over those produced by earlier ones,
// when they conflict.
type Sources []Source

// Parse implements the method for the Source interface.
func (ss Sources) Parse(cmp *mcmp.Component) ([]ParamValue, error) {
	var all []ParamValue
	for _, s := range ss {
		pvs, err := s.Parse(cmp)
		if err != nil {
			return nil, err
		}
		all = append(all, pvs...)
	}
	return all, nil
}
