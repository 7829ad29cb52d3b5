package lifecycle

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
)

// Component is a long-lived part of the bot with an explicit lifecycle,
// such as the metrics server or the notice remover.
type Component interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Runtime starts components in registration order and stops them in
// reverse, so later components can rely on earlier ones.
type Runtime struct {
	components []Component
	started    []Component
}

func NewRuntime(components ...Component) *Runtime {
	return &Runtime{components: components}
}

func (r *Runtime) Register(component Component) {
	if component == nil {
		return
	}
	r.components = append(r.components, component)
}

// Start brings every component up. On failure the components already
// running are stopped before the error is returned.
func (r *Runtime) Start(ctx context.Context) error {
	for _, component := range r.components {
		if component == nil {
			continue
		}
		if err := component.Start(ctx); err != nil {
			log.WithError(err).Errorf("cant start %T, rolling back", component)
			_ = stopInReverse(ctx, r.started)
			r.started = nil
			return fmt.Errorf("start %T: %w", component, err)
		}
		r.started = append(r.started, component)
	}
	return nil
}

func (r *Runtime) Stop(ctx context.Context) error {
	err := stopInReverse(ctx, r.started)
	r.started = nil
	return err
}

func stopInReverse(ctx context.Context, components []Component) error {
	var stopErr error
	for i := len(components) - 1; i >= 0; i-- {
		component := components[i]
		if err := component.Stop(ctx); err != nil {
			stopErr = errors.Join(stopErr, fmt.Errorf("stop %T: %w", component, err))
		}
	}
	return stopErr
}
