package mcfg

import (
	. "testing"

	"github.com/mediocregopher/mediocredis/mcmp"
	"github.com/mediocregopher/mediocredis/mtest/massert"
)

func TestSourceEnv(t *T) {
	cmp := new(mcmp.Component)
	foo := Int(cmp, "foo")
	child := cmp.Child("child")
	bar := String(child, "bar")

	src := &SourceEnv{Env: []string{
		"FOO=1",
		"CHILD_BAR=hello",
		"UNRELATED=ignored",
	}}

	massert.Fatal(t, massert.Equal(nil, Populate(cmp, src)))
	massert.Fatal(t, massert.All(
		massert.Equal(1, *foo),
		massert.Equal("hello", *bar),
	))
}
