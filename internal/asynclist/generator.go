package asynclist

import "context"

// Generator walks a list chunk by chunk, loading pages as it goes
type Generator[T Mergeable[T]] struct {
	list *List[T]
	next int
	opts LoadOptions
	done bool
}

// GenerateItems returns a generator starting at index
func (l *List[T]) GenerateItems(index int, opts LoadOptions) *Generator[T] {
	return &Generator[T]{list: l, next: index, opts: opts}
}

// Next returns the next chunk and whether more may follow
func (g *Generator[T]) Next(ctx context.Context) ([]T, bool, error) {
	if g.done {
		return nil, false, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	chunk := g.list.ChunkSize()
	if g.list.SizeKnown() && g.next >= g.list.Size() {
		g.done = true
		return nil, false, nil
	}

	items, err := g.list.GetItems(ctx, g.next, chunk, g.opts)
	if err != nil {
		return nil, false, err
	}
	g.next += chunk

	if g.list.SizeKnown() {
		g.done = g.next >= g.list.Size()
	} else {
		g.done = len(items) < chunk
	}
	return items, !g.done, nil
}

// All drains the generator
func (g *Generator[T]) All(ctx context.Context) ([]T, error) {
	var out []T
	for {
		items, more, err := g.Next(ctx)
		if err != nil {
			return out, err
		}
		out = append(out, items...)
		if !more {
			return out, nil
		}
	}
}
