// Package workers runs synthetic background load while a session samples the
// battery. Workers exchange no data with the session.
package workers

import (
	"context"
	"strings"
	"sync"

	"codeberg.org/mutker/socmonitor/internal/errors"
	"codeberg.org/mutker/socmonitor/internal/logger"
)

// Kind identifies a worker implementation.
type Kind int

const (
	KindCPULoad Kind = iota + 1
)

var kindNames = map[Kind]string{
	KindCPULoad: "cpuload",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// ParseKind maps a configured name onto a Kind. Matching ignores case.
func ParseKind(name string) (Kind, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	for kind, kindName := range kindNames {
		if kindName == normalized {
			return kind, nil
		}
	}

	return 0, errors.New().WithData(ErrUnknownKind, name)
}

// ParseKinds parses every name, failing on the first unknown one.
func ParseKinds(names []string) ([]Kind, error) {
	kinds := make([]Kind, 0, len(names))
	for _, name := range names {
		kind, err := ParseKind(name)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, kind)
	}

	return kinds, nil
}

// SpawnFunc runs a worker until ctx is cancelled.
type SpawnFunc func(ctx context.Context)

// Registry maps each Kind to the function that runs it.
type Registry map[Kind]SpawnFunc

// DefaultRegistry returns the built-in workers.
func DefaultRegistry() Registry {
	return Registry{
		KindCPULoad: cpuLoad,
	}
}

// Pool owns the running workers of one session.
type Pool struct {
	registry Registry

	mu      sync.Mutex
	cancel  context.CancelFunc
	running int
}

func NewPool(registry Registry) *Pool {
	if registry == nil {
		registry = DefaultRegistry()
	}

	return &Pool{registry: registry}
}

// Start spawns one goroutine per kind. Starting an already started pool
// stops the previous workers first.
func (p *Pool) Start(ctx context.Context, kinds []Kind) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		p.cancel()
	}

	workerCtx, cancel := context.WithCancel(ctx)
	for _, kind := range kinds {
		spawn, ok := p.registry[kind]
		if !ok {
			cancel()
			return errors.New().WithData(ErrNotSpawned, kind.String())
		}
		go spawn(workerCtx)
		logger.Debug().Str("kind", kind.String()).Msg("Worker started")
	}

	p.cancel = cancel
	p.running = len(kinds)

	return nil
}

// Stop asks all workers to terminate and returns without waiting for them.
func (p *Pool) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel == nil {
		return
	}

	p.cancel()
	p.cancel = nil
	logger.Debug().Int("workers", p.running).Msg("Workers told to stop")
	p.running = 0
}

// Running returns how many workers were spawned by the last Start.
func (p *Pool) Running() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.running
}
