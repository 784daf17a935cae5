package renderlog

import "context"

type renderKey struct{}

// Render describes the document a render was made from.
type Render struct {
	Source string
	Preset string
}

// WithRender attaches r to ctx so post-render hooks can record it.
func WithRender(ctx context.Context, r Render) context.Context {
	return context.WithValue(ctx, renderKey{}, r)
}

// RenderFromContext returns the Render attached to ctx.
func RenderFromContext(ctx context.Context) (Render, bool) {
	r, ok := ctx.Value(renderKey{}).(Render)
	return r, ok
}
