// Package mrun provides functionality for coordinating lifecycle events (e.g.
// initialization and shutdown) across a tree of Components.
package mrun

import (
	"context"

	"github.com/mediocregopher/mediocredis/mcmp"
	"github.com/mediocregopher/mediocredis/merr"
)

// Hook is a function which is run in response to a lifecycle event (Init or
// Shutdown) being triggered on a Component.
type Hook func(context.Context) error

type hookKey int

const (
	hookKeyInit hookKey = iota
	hookKeyShutdown
)

func addHook(cmp *mcmp.Component, key hookKey, hook Hook) {
	hooks, _ := cmp.Value(key).([]Hook)
	hooks = append(hooks, hook)
	cmp.SetValue(key, hooks)
}

func getHooks(cmp *mcmp.Component, key hookKey) []Hook {
	hooks, _ := cmp.Value(key).([]Hook)
	return hooks
}

// InitHook registers a Hook to be called when Init is called on this
// Component, or on any of its ancestors.
func InitHook(cmp *mcmp.Component, hook Hook) {
	addHook(cmp, hookKeyInit, hook)
}

// ShutdownHook registers a Hook to be called when Shutdown is called on this
// Component, or on any of its ancestors.
func ShutdownHook(cmp *mcmp.Component, hook Hook) {
	addHook(cmp, hookKeyShutdown, hook)
}

func breadthFirst(cmp *mcmp.Component, reverse bool) []*mcmp.Component {
	var cmps []*mcmp.Component
	mcmp.BreadthFirstVisit(cmp, func(c *mcmp.Component) bool {
		cmps = append(cmps, c)
		return true
	})
	if reverse {
		for i, j := 0, len(cmps)-1; i < j; i, j = i+1, j-1 {
			cmps[i], cmps[j] = cmps[j], cmps[i]
		}
	}
	return cmps
}

func runHooks(ctx context.Context, cmp *mcmp.Component, key hookKey, reverse bool) error {
	for _, c := range breadthFirst(cmp, reverse) {
		for _, hook := range getHooks(c, key) {
			if err := hook(ctx); err != nil {
				return merr.Wrap(err, c.Context())
			}
		}
	}
	return nil
}

// Init triggers the Init event on the given Component, running all Hooks
// which were registered on it, or any of its descendants, via InitHook. Hooks
// are run in breadth-first order, so a parent Component's hooks always run
// before its children's.
//
// If any Hook returns an error, Init stops and returns that error immediately.
func Init(ctx context.Context, cmp *mcmp.Component) error {
	return runHooks(ctx, cmp, hookKeyInit, false)
}

// Shutdown triggers the Shutdown event on the given Component, running all
// Hooks which were registered on it, or any of its descendants, via
// ShutdownHook. Hooks are run in reverse breadth-first order, so a child
// Component's hooks always run before its parent's.
//
// If any Hook returns an error, Shutdown stops and returns that error
// immediately; any remaining Hooks will not be run.
func Shutdown(ctx context.Context, cmp *mcmp.Component) error {
	return runHooks(ctx, cmp, hookKeyShutdown, true)
}
