package mcfg

import (
	. "testing"

	"github.com/mediocregopher/mediocredis/mcmp"
	"github.com/mediocregopher/mediocredis/mtest/massert"
)

func TestPopulateDefault(t *T) {
	cmp := new(mcmp.Component)
	foo := String(cmp, "foo", ParamDefault("default"))
	massert.Fatal(t, massert.Equal(nil, Populate(cmp, nil)))
	massert.Fatal(t, massert.Equal("default", *foo))
}

func TestPopulateRequired(t *T) {
	cmp := new(mcmp.Component)
	String(cmp, "foo", ParamRequired())
	err := Populate(cmp, nil)
	massert.Fatal(t, massert.Equal(true, err != nil))
}

func TestPopulateSources(t *T) {
	cmp := new(mcmp.Component)
	foo := String(cmp, "foo", ParamDefault("default"))

	src := Sources{
		&SourceEnv{Env: []string{"FOO=from-env"}},
		ParamValues{{Name: "foo", Value: []byte(`"from-explicit"`)}},
	}

	massert.Fatal(t, massert.Equal(nil, Populate(cmp, src)))
	massert.Fatal(t, massert.Equal("from-explicit", *foo))
}

func TestCollectParamsOrdering(t *T) {
	cmp := new(mcmp.Component)
	String(cmp, "b")
	String(cmp, "a")
	child := cmp.Child("child")
	String(child, "c")

	params := CollectParams(cmp)
	var names []string
	for _, p := range params {
		names = append(names, p.Name)
	}
	massert.Fatal(t, massert.Equal([]string{"c", "a", "b"}, names))
}
