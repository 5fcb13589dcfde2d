// Package merr extends the errors package with features like contextual
// annotations for errors and embedded stacktraces.
//
// merr functions take in generic errors of the built-in type. The returned
// errors are wrapped by a type internal to merr, and appear to also be of the
// generic error type.
//
// As is generally recommended for go projects, errors.Is and errors.As should
// be used for equality checking.
package merr

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/mediocregopher/mediocredis/mctx"
)

var strBuilderPool = sync.Pool{
	New: func() interface{} { return new(strings.Builder) },
}

func putStrBuilder(sb *strings.Builder) {
	sb.Reset()
	strBuilderPool.Put(sb)
}

type annotateKey string

// Error wraps an error such that contextual and stacktrace information is
// captured alongside that error.
type Error struct {
	Err        error
	Ctx        context.Context
	Stacktrace Stacktrace
}

// Error implements the method for the error interface.
func (e Error) Error() string {
	sb := strBuilderPool.Get().(*strings.Builder)
	defer putStrBuilder(sb)
	sb.WriteString(strings.TrimSpace(e.Err.Error()))

	var aa mctx.AnnotationSet
	if e.Ctx != nil {
		aa = mctx.Annotations(e.Ctx)
	}
	aa = append(aa, mctx.Annotation{
		Key:   annotateKey("line"),
		Value: e.Stacktrace.String(),
	})

	for _, kve := range aa.StringSlice(true) {
		k, v := strings.TrimSpace(kve[0]), strings.TrimSpace(kve[1])
		sb.WriteString("\n\t* ")
		sb.WriteString(k)
		sb.WriteString(": ")

		// if there's no newlines then print v inline with k
		if !strings.Contains(v, "\n") {
			sb.WriteString(v)
			continue
		}

		for _, vLine := range strings.Split(v, "\n") {
			sb.WriteString("\n\t\t")
			sb.WriteString(strings.TrimSpace(vLine))
		}
	}

	return sb.String()
}

// Unwrap implements the method for the errors package.
func (e Error) Unwrap() error {
	return e.Err
}

func mergeCtxs(base context.Context, ctxs []context.Context) context.Context {
	if base == nil {
		base = context.Background()
	}
	all := append([]context.Context{base}, ctxs...)
	return mctx.MergeAnnotationsInto(all[0], all[1:]...)
}

// WrapSkip is like Wrap but also allows for skipping extra stack frames when
// embedding the stack into the error.
func WrapSkip(err error, skip int, ctxs ...context.Context) error {
	if err == nil {
		return nil
	}

	if e := (Error{}); errors.As(err, &e) {
		if _, ok := err.(Error); !ok {
			e.Err = err
		}
		e.Ctx = mergeCtxs(e.Ctx, ctxs)
		return e
	}

	var ctx context.Context
	if len(ctxs) > 0 {
		ctx = mergeCtxs(ctxs[0], ctxs[1:])
	}

	return Error{
		Err:        err,
		Ctx:        ctx,
		Stacktrace: newStacktrace(skip + 1),
	}
}

// Wrap returns a copy of the given error wrapped in an Error, annotated with
// any given Contexts. If the given error is already wrapped in an Error then
// the given Contexts are merged into the existing one instead.
//
// Wrapping nil returns nil.
func Wrap(err error, ctxs ...context.Context) error {
	return WrapSkip(err, 1, ctxs...)
}

// New is a shortcut for:
//
//	merr.WrapSkip(errors.New(descr), 1, ctxs...)
func New(descr string, ctxs ...context.Context) error {
	return WrapSkip(errors.New(descr), 1, ctxs...)
}

// Context returns a Context describing the given error, suitable for passing
// into mlog's logging methods. If the error was produced by this package then
// its annotations and stacktrace are preserved; otherwise the error's string
// is used as the only annotation.
func Context(err error) context.Context {
	if err == nil {
		return context.Background()
	}

	var e Error
	if !errors.As(err, &e) {
		return mctx.Annotated(annotateKey("err"), err.Error())
	}

	ctx := e.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	return mctx.Annotate(ctx,
		annotateKey("err"), e.Err.Error(),
		annotateKey("line"), e.Stacktrace.String(),
	)
}
