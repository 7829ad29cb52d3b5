package lifecycle

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

type fakeComponent struct {
	name     string
	startErr error
	stopErr  error
	log      *[]string
}

func (c *fakeComponent) Start(_ context.Context) error {
	*c.log = append(*c.log, "start "+c.name)
	return c.startErr
}

func (c *fakeComponent) Stop(_ context.Context) error {
	*c.log = append(*c.log, "stop "+c.name)
	return c.stopErr
}

func TestRuntimeStopsInReverseOrder(t *testing.T) {
	t.Parallel()

	var events []string
	runtime := NewRuntime(
		&fakeComponent{name: "metrics", log: &events},
		&fakeComponent{name: "notifier", log: &events},
	)

	if err := runtime.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := runtime.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	want := []string{"start metrics", "start notifier", "stop notifier", "stop metrics"}
	if !reflect.DeepEqual(events, want) {
		t.Errorf("events = %v, want %v", events, want)
	}
}

func TestRuntimeRollsBackOnStartFailure(t *testing.T) {
	t.Parallel()

	var events []string
	boom := errors.New("boom")
	runtime := NewRuntime(
		&fakeComponent{name: "metrics", log: &events},
		&fakeComponent{name: "notifier", log: &events, startErr: boom},
		&fakeComponent{name: "extra", log: &events},
	)

	err := runtime.Start(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("Start err = %v, want the component failure", err)
	}

	want := []string{"start metrics", "start notifier", "stop metrics"}
	if !reflect.DeepEqual(events, want) {
		t.Errorf("events = %v, want rollback of the started component only", events)
	}

	// Stop after a failed start is a no-op.
	if err := runtime.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if len(events) != len(want) {
		t.Errorf("Stop after failed start touched components: %v", events)
	}
}

func TestRuntimeCollectsStopErrors(t *testing.T) {
	t.Parallel()

	var events []string
	stopBoom := errors.New("stop boom")
	runtime := NewRuntime(
		&fakeComponent{name: "metrics", log: &events, stopErr: stopBoom},
		&fakeComponent{name: "notifier", log: &events},
	)

	if err := runtime.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	err := runtime.Stop(context.Background())
	if !errors.Is(err, stopBoom) {
		t.Errorf("Stop err = %v, want the collected stop failure", err)
	}
	if events[len(events)-1] != "stop metrics" {
		t.Errorf("events = %v, a failing sibling must not skip the rest", events)
	}
}
