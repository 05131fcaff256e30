package ports

import "context"

// ComponentResolver turns a component name into a renderable component.
// Resolution may be slow (lazy loading) and must honor ctx.
type ComponentResolver interface {
	Resolve(ctx context.Context, name string) (any, error)
}
