package mcfg

import (
	"bytes"
	"regexp"
	. "testing"

	"github.com/mediocregopher/mediocredis/mcmp"
	"github.com/mediocregopher/mediocredis/mtest/massert"
)

func TestSourceCLIHelp(t *T) {
	cmp := new(mcmp.Component)
	Int(cmp, "foo", ParamDefault(5), ParamUsage("Test int param  "))
	Bool(cmp, "bar", ParamUsage("Test bool param."))
	String(cmp, "baz", ParamDefault("baz"), ParamUsage("Test string param"))
	String(cmp, "baz2", ParamRequired())

	src := &SourceCLI{}
	buf := new(bytes.Buffer)
	src.printHelp(buf, CollectParams(cmp))

	exp := `^Usage: \S+ \[options\]

Options:

	--baz2 \(Required\)

	--bar \(Flag\)
		Test bool param.

	--baz \(Default: "baz"\)
		Test string param.

	--foo \(Default: 5\)
		Test int param.

$`
	out := buf.String()
	massert.Fatal(t, massert.Equal(true, regexp.MustCompile(exp).MatchString(out)))
}

func TestSourceCLI(t *T) {
	cmp := new(mcmp.Component)
	foo := Int(cmp, "foo")
	bar := Bool(cmp, "bar")
	child := cmp.Child("child")
	baz := String(child, "baz")

	src := &SourceCLI{Args: []string{
		"--foo", "1",
		"--bar",
		"--child-baz=hello",
	}}

	massert.Fatal(t, massert.Equal(nil, Populate(cmp, src)))
	massert.Fatal(t, massert.All(
		massert.Equal(1, *foo),
		massert.Equal(true, *bar),
		massert.Equal("hello", *baz),
	))
}

func TestSourceCLIUnexpected(t *T) {
	cmp := new(mcmp.Component)
	Int(cmp, "foo")

	src := &SourceCLI{Args: []string{"--bar", "1"}}
	_, err := src.Parse(cmp)
	massert.Fatal(t, massert.Equal(true, err != nil))
}
