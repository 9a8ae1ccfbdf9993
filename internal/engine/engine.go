// Package engine drives the external media engine. Callers write input files
// into the engine's virtual filesystem, run command-line style filter
// commands against them and read the produced files back.
//
// Adapter owns the engine lifecycle (uninitialized, loading, ready, error)
// and lets at most one operation run at a time.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

var (
	ErrNotReady = errors.New("engine not ready")
	ErrBusy     = errors.New("engine is loading")
	ErrLoad     = errors.New("engine failed to load")
)

// State is the engine lifecycle state.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateLoading       State = "loading"
	StateReady         State = "ready"
	StateError         State = "error"
)

// Backend is the engine implementation behind the adapter.
type Backend interface {
	Load(ctx context.Context) error
	WriteFile(ctx context.Context, name string, r io.Reader) error
	Exec(ctx context.Context, args []string) error
	ReadFile(ctx context.Context, name string) ([]byte, error)
	Remove(ctx context.Context, name string) error
	Close() error
}

// Ops are the engine operations available inside a Do sequence.
type Ops interface {
	WriteFile(ctx context.Context, name string, r io.Reader) error
	Exec(ctx context.Context, args ...string) error
	ReadFile(ctx context.Context, name string) ([]byte, error)
	Remove(ctx context.Context, name string) error
}

type Adapter struct {
	backend Backend
	logger  *slog.Logger

	// slot is the single in-flight operation guard.
	slot chan struct{}

	mu        sync.RWMutex
	state     State
	err       error
	listeners []func(State, error)
}

func NewAdapter(backend Backend, logger *slog.Logger) *Adapter {
	return &Adapter{
		backend: backend,
		logger:  logger,
		slot:    make(chan struct{}, 1),
		state:   StateUninitialized,
	}
}

// State returns the current lifecycle state.
func (a *Adapter) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

// Err returns the load error when the engine is in StateError.
func (a *Adapter) Err() error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.err
}

// OnStateChange registers fn to be called after every state transition.
func (a *Adapter) OnStateChange(fn func(State, error)) {
	a.mu.Lock()
	a.listeners = append(a.listeners, fn)
	a.mu.Unlock()
}

// Load initializes the engine. It is a no-op once ready and may be retried
// after a failure.
func (a *Adapter) Load(ctx context.Context) error {
	a.mu.Lock()
	switch a.state {
	case StateReady:
		a.mu.Unlock()
		return nil
	case StateLoading:
		a.mu.Unlock()
		return ErrBusy
	}
	a.mu.Unlock()

	if err := a.acquire(ctx); err != nil {
		return err
	}
	defer a.release()

	if a.State() == StateReady {
		return nil
	}

	a.transition(StateLoading, nil)

	if err := a.backend.Load(ctx); err != nil {
		loadErr := fmt.Errorf("%w: %v", ErrLoad, err)
		a.transition(StateError, loadErr)
		return loadErr
	}

	a.transition(StateReady, nil)
	return nil
}

// Do runs fn while holding the engine, so a write, exec and read sequence
// cannot interleave with another caller's.
func (a *Adapter) Do(ctx context.Context, fn func(Ops) error) error {
	if err := a.acquire(ctx); err != nil {
		return err
	}
	defer a.release()

	if err := a.ready(); err != nil {
		return err
	}

	return fn(backendOps{a.backend})
}

func (a *Adapter) WriteFile(ctx context.Context, name string, r io.Reader) error {
	return a.Do(ctx, func(ops Ops) error {
		return ops.WriteFile(ctx, name, r)
	})
}

func (a *Adapter) Exec(ctx context.Context, args ...string) error {
	return a.Do(ctx, func(ops Ops) error {
		return ops.Exec(ctx, args...)
	})
}

func (a *Adapter) ReadFile(ctx context.Context, name string) ([]byte, error) {
	var data []byte
	err := a.Do(ctx, func(ops Ops) error {
		var err error
		data, err = ops.ReadFile(ctx, name)
		return err
	})
	return data, err
}

func (a *Adapter) Remove(ctx context.Context, name string) error {
	return a.Do(ctx, func(ops Ops) error {
		return ops.Remove(ctx, name)
	})
}

// Close waits for the in-flight operation and shuts the backend down.
func (a *Adapter) Close(ctx context.Context) error {
	if err := a.acquire(ctx); err != nil {
		return err
	}
	defer a.release()

	err := a.backend.Close()
	a.transition(StateUninitialized, nil)
	return err
}

func (a *Adapter) acquire(ctx context.Context) error {
	select {
	case a.slot <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Adapter) release() {
	<-a.slot
}

func (a *Adapter) ready() error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.state == StateReady {
		return nil
	}
	if a.err != nil {
		return fmt.Errorf("%w: %v", ErrNotReady, a.err)
	}
	return fmt.Errorf("%w: %s", ErrNotReady, a.state)
}

func (a *Adapter) transition(state State, err error) {
	a.mu.Lock()
	prev := a.state
	a.state = state
	a.err = err
	listeners := append([]func(State, error){}, a.listeners...)
	a.mu.Unlock()

	if a.logger != nil {
		if err != nil {
			a.logger.Error("engine state changed", "from", prev, "to", state, "error", err)
		} else {
			a.logger.Info("engine state changed", "from", prev, "to", state)
		}
	}

	for _, fn := range listeners {
		fn(state, err)
	}
}

type backendOps struct {
	b Backend
}

func (o backendOps) WriteFile(ctx context.Context, name string, r io.Reader) error {
	return o.b.WriteFile(ctx, name, r)
}

func (o backendOps) Exec(ctx context.Context, args ...string) error {
	return o.b.Exec(ctx, args)
}

func (o backendOps) ReadFile(ctx context.Context, name string) ([]byte, error) {
	return o.b.ReadFile(ctx, name)
}

func (o backendOps) Remove(ctx context.Context, name string) error {
	return o.b.Remove(ctx, name)
}
