package mctx

import "context"

// Annotated is a convenience function which returns context.Background()
// annotated with the given key/value pairs. See Annotate for more.
func Annotated(kvs ...interface{}) context.Context {
	return Annotate(context.Background(), kvs...)
}

type pathKey int

// Path returns the hierarchical path which has been associated with this
// Context, if any. Annotate uses this to tag each Annotation with the Path it
// was made at, so that identically keyed Annotations at different Paths don't
// collide with each other.
//
// Most Contexts won't have had a Path associated with them directly; this is
// mostly useful for code (like mcmp.Component) which manages its own notion of
// hierarchy and wants that reflected in annotation bookkeeping.
func Path(ctx context.Context) []string {
	path, _ := ctx.Value(pathKey(0)).([]string)
	return path
}

// WithPath returns a Context with the given Path associated with it, for use
// by Path/Annotate.
func WithPath(ctx context.Context, path []string) context.Context {
	return context.WithValue(ctx, pathKey(0), path)
}

func pathHash(path []string) string {
	b := make([]byte, 0, 32)
	for _, el := range path {
		b = append(b, el...)
		b = append(b, 0)
	}
	return string(b)
}
