package inject

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// InsertCSS inserts every stylesheet of the bundle into its target. Sources are
// inserted in parallel; duplicate file paths are inserted once.
func (i *Injector) InsertCSS(ctx context.Context, bundle InjectionBundle, opts Options) error {
	if err := bundle.Validate(); err != nil {
		return err
	}
	files, dropped := NormalizeFiles(bundle.Files, nil)
	i.logDropped(bundle.target(), dropped)
	bundle.Files = files
	return i.insertCSS(ctx, bundle, opts)
}

func (i *Injector) insertCSS(ctx context.Context, bundle InjectionBundle, opts Options) error {
	settle := func(err error) error { return i.settle(KindCSS, err, opts) }

	var g errgroup.Group
	for _, source := range bundle.Files {
		g.Go(func() error {
			return i.strategy.insertCSS(ctx, bundle, source, settle)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("insert css into %s: %w", bundle.target(), err)
	}
	return nil
}
