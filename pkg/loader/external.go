package loader

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/withgalaxy/lazyload/pkg/dom"
)

// LoadExternalDependencies loads every url and calls callback once all of
// them loaded. The first failure is returned and callback is not called;
// sibling loads keep running and their outcomes are dropped. Loads are
// registered in the order given.
func (r *Runtime) LoadExternalDependencies(ctx context.Context, urls []string, callback func()) error {
	if !r.cfg.Features.ExternalSupport {
		return ErrExternalUnsupported
	}

	results := make([]chan dom.Event, len(urls))
	for i, u := range urls {
		ch := make(chan dom.Event, 1)
		results[i] = ch
		r.Load(u, func(ev dom.Event) { ch <- ev })
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, u := range urls {
		ch := results[i]
		url := u
		g.Go(func() error {
			select {
			case ev := <-ch:
				return OutcomeError(url, ev)
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	}

	if err := g.Wait(); err != nil {
		r.log.Warn().Err(err).Strs("urls", urls).Msg("external dependencies failed")
		return err
	}
	if callback != nil {
		callback()
	}
	return nil
}
