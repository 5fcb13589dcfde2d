package mcfg

import (
	"os"
	"strings"

	"github.com/mediocregopher/mediocredis/mcmp"
)

// SourceEnv is a Source which parses configuration from environment
// variables.
//
// Environment variable names are generated by joining a Param's Component
// Path and Name with underscores and upper-casing the result, e.g. a Param
// named "addr" on a Component with Path []string{"foo", "bar"} becomes
// "FOO_BAR_ADDR".
type SourceEnv struct {
	// Env holds the environment variables to parse, in "key=value" form. If
	// nil, os.Environ() is used.
	Env []string
}

func envKey(path []string, name string) string {
	full := make([]string, 0, len(path)+1)
	full = append(full, path...)
	full = append(full, name)
	return strings.ToUpper(strings.Join(full, "_"))
}

// Parse implements the method for the Source interface.
func (se *SourceEnv) Parse(cmp *mcmp.Component) ([]ParamValue, error) {
	env := se.Env
	if env == nil {
		env = os.Environ()
	}

	envM := make(map[string]string, len(env))
	for _, kv := range env {
		i := strings.IndexByte(kv, '=')
		if i < 0 {
			continue
		}
		envM[kv[:i]] = kv[i+1:]
	}

	var pvs []ParamValue
	for _, p := range CollectParams(cmp) {
		path := p.Component.Path()
		strVal, ok := envM[envKey(path, p.Name)]
		if !ok {
			continue
		}
		pvs = append(pvs, ParamValue{
			Path:  path,
			Name:  p.Name,
			Value: p.fuzzyParse(strVal),
		})
	}
	return pvs, nil
}
