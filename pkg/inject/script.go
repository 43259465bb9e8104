package inject

import (
	"context"
	"fmt"
)

// ExecuteScript runs the bundle's scripts in its target, in declared order as
// far as the capability allows. The scripting capability rejects inline code
// with ErrUnsupportedOperation before any call is made.
func (i *Injector) ExecuteScript(ctx context.Context, bundle InjectionBundle, opts Options) error {
	if err := bundle.Validate(); err != nil {
		return err
	}
	files, dropped := NormalizeFiles(bundle.Files, nil)
	i.logDropped(bundle.target(), dropped)
	bundle.Files = files
	return i.executeScript(ctx, bundle, opts)
}

func (i *Injector) executeScript(ctx context.Context, bundle InjectionBundle, opts Options) error {
	settle := func(err error) error { return i.settle(KindScript, err, opts) }
	if err := i.strategy.executeScript(ctx, bundle, settle); err != nil {
		return fmt.Errorf("execute script in %s: %w", bundle.target(), err)
	}
	return nil
}
