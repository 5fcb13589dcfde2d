package mcfg

import (
	"fmt"
	"io"
	"os"
	"reflect"
	"sort"
	"strings"

	"github.com/mediocregopher/mediocredis/mcmp"
	"github.com/mediocregopher/mediocredis/mctx"
	"github.com/mediocregopher/mediocredis/merr"
)

// SourceCLI is a Source which parses configuration from the command-line.
//
// Possible CLI options are generated by joining a Param's Component Path and
// Name with dashes, e.g. a Param named "addr" on a Component with Path
// []string{"foo", "bar"} becomes "--foo-bar-addr".
//
// If "-h" is given then a help page is printed to stderr and the process
// exits, unless DisableHelpPage is set.
//
// SourceCLI behaves a little differently with boolean parameters. Setting the
// value of one directly must be done with an equals, e.g. `--bool-flag=0` or
// `--bool-flag=true`. A boolean flag given with no value is assumed to be
// setting the value to true.
type SourceCLI struct {
	Args []string // if nil, os.Args[1:] is used

	DisableHelpPage bool
}

const (
	cliKeyJoin   = "-"
	cliKeyPrefix = "--"
	cliValSep    = "="
	cliHelpArg   = "-h"
)

// Parse implements the method for the Source interface.
func (cli *SourceCLI) Parse(cmp *mcmp.Component) ([]ParamValue, error) {
	args := cli.Args
	if args == nil {
		args = os.Args[1:]
	}

	params := CollectParams(cmp)
	pM := cli.cliParams(params)

	printHelpAndExit := func() {
		cli.printHelp(os.Stderr, params)
		os.Stderr.Sync()
		os.Exit(1)
	}

	var pvs []ParamValue
	var (
		key        string
		p          Param
		pOk        bool
		pvStrVal   string
		pvStrValOk bool
	)

	for _, arg := range args {
		if pOk {
			pvStrVal, pvStrValOk = arg, true
		} else if !cli.DisableHelpPage && arg == cliHelpArg {
			printHelpAndExit()
		} else {
			for key, p = range pM {
				if arg == key {
					pOk = true
					break
				}

				prefix := key + cliValSep
				if !strings.HasPrefix(arg, prefix) {
					continue
				}
				pOk = true
				pvStrVal, pvStrValOk = strings.TrimPrefix(arg, prefix), true
				break
			}
			if !pOk {
				return nil, merr.New("unexpected config parameter",
					mctx.Annotated("param", arg))
			}
		}

		// pOk is always true at this point, and so p is filled in.

		if p.IsBool && !pvStrValOk {
			pvStrVal = "true"
		} else if !pvStrValOk {
			// everything else should have a value; if pvStrVal isn't filled
			// it means the next arg should be one. Continue the loop, it'll
			// get filled with the next arg (hopefully).
			continue
		}

		pvs = append(pvs, ParamValue{
			Path:  p.Component.Path(),
			Name:  p.Name,
			Value: p.fuzzyParse(pvStrVal),
		})

		key, p, pOk, pvStrVal, pvStrValOk = "", Param{}, false, "", false
	}

	if pOk && !pvStrValOk {
		return nil, merr.New("param expected a value", mctx.Annotated("param", key))
	}

	return pvs, nil
}

func (cli *SourceCLI) cliParams(params []Param) map[string]Param {
	m := make(map[string]Param, len(params))
	for _, p := range params {
		key := cliKeyPrefix + strings.Join(append(p.Component.Path(), p.Name), cliKeyJoin)
		m[key] = p
	}
	return m
}

func (cli *SourceCLI) printHelp(w io.Writer, params []Param) {
	type pEntry struct {
		arg string
		Param
	}

	pA := make([]pEntry, 0, len(params))
	for arg, p := range cli.cliParams(params) {
		pA = append(pA, pEntry{arg: arg, Param: p})
	}

	sort.Slice(pA, func(i, j int) bool {
		if pA[i].Required != pA[j].Required {
			return pA[i].Required
		}
		return pA[i].arg < pA[j].arg
	})

	fmtDefaultVal := func(ptr interface{}) string {
		if ptr == nil {
			return ""
		}
		val := reflect.Indirect(reflect.ValueOf(ptr))
		zero := reflect.Zero(val.Type())
		if reflect.DeepEqual(val.Interface(), zero.Interface()) {
			return ""
		} else if val.Type().Kind() == reflect.String {
			return fmt.Sprintf("%q", val.Interface())
		}
		return fmt.Sprint(val.Interface())
	}

	fmt.Fprintf(w, "Usage: %s", os.Args[0])
	if len(pA) > 0 {
		fmt.Fprint(w, " [options]")
	}
	fmt.Fprint(w, "\n\n")

	if len(pA) > 0 {
		fmt.Fprint(w, "Options:\n\n")
		for _, p := range pA {
			fmt.Fprintf(w, "\t%s", p.arg)
			if p.IsBool {
				fmt.Fprint(w, " (Flag)")
			} else if p.Required {
				fmt.Fprint(w, " (Required)")
			} else if defVal := fmtDefaultVal(p.Into); defVal != "" {
				fmt.Fprintf(w, " (Default: %s)", defVal)
			}
			fmt.Fprint(w, "\n")
			if usage := strings.TrimSpace(p.Usage); usage != "" {
				if !strings.HasSuffix(usage, ".") {
					usage += "."
				}
				fmt.Fprintln(w, "\t\t"+usage)
			}
			fmt.Fprint(w, "\n")
		}
	}
}
