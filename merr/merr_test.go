package merr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/mediocregopher/mediocredis/mctx"
	"github.com/mediocregopher/mediocredis/mtest/massert"
)

func TestFullError(t *testing.T) {
	massert.Fatal(t, massert.Nil(Wrap(nil)))

	ctx := mctx.Annotated(
		"a", "aaa aaa\n",
		"c", "ccc\nccc\n",
	)

	e := New("foo", ctx)
	var asE Error
	massert.Fatal(t, massert.Equal(true, errors.As(e, &asE)))
	massert.Fatal(t, massert.Equal("foo", asE.Err.Error()))
}

func TestAsIs(t *testing.T) {
	errFoo := errors.New("foo")
	ctxA := mctx.Annotated("a", "1")

	wrapped := Wrap(errFoo, ctxA)

	var asE Error
	massert.Fatal(t, massert.Equal(true, errors.As(wrapped, &asE)))
	massert.Fatal(t, massert.Equal(true, errors.Is(wrapped, errFoo)))
	massert.Fatal(t, massert.Equal("foo", wrapped.Error()[:3]))

	// re-wrapping merges the new Context in, rather than nesting another
	// layer of Error.
	ctxB := mctx.Annotated("b", "2")
	wrapped2 := Wrap(wrapped, ctxB)
	var asE2 Error
	massert.Fatal(t, massert.Equal(true, errors.As(wrapped2, &asE2)))
	massert.Fatal(t, massert.Equal(errFoo, asE2.Err))
}

func TestContext(t *testing.T) {
	massert.Fatal(t, massert.Equal(nil, Context(nil).Err()))

	plain := errors.New("plain")
	ctx := Context(plain)
	aa := mctx.Annotations(ctx)
	massert.Fatal(t, massert.Equal(1, len(aa)))

	wrapped := New("wrapped", mctx.Annotated("k", "v"))
	ctx2 := Context(wrapped)
	aa2 := mctx.Annotations(ctx2)
	var foundK, foundLine bool
	for _, a := range aa2 {
		foundK = foundK || fmt.Sprint(a.Value) == "v"
		foundLine = foundLine || fmt.Sprint(a.Key) == "line"
	}
	massert.Fatal(t, massert.All(
		massert.Equal(true, foundK),
		massert.Equal(true, foundLine),

	))
}
