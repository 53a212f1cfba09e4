package catalog

import (
	"fmt"
	"slices"
	"sync"

	"github.com/cesargomez89/mediacache/internal/logger"
)

// Manager is the registry of providers, keyed by name
type Manager struct {
	providers map[string]Provider
	logger    *logger.Logger
	mu        sync.RWMutex
}

func NewManager(log *logger.Logger) *Manager {
	if log == nil {
		log = logger.Default()
	}
	return &Manager{
		providers: make(map[string]Provider),
		logger:    log.WithComponent("catalog"),
	}
}

// Register adds p, replacing any provider with the same name
func (m *Manager) Register(p Provider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logger.Info("Registering provider", "provider", p.Name())
	m.providers[p.Name()] = p
}

func (m *Manager) Get(name string) (Provider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	return p, nil
}

// Names returns the registered provider names in sorted order
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.providers))
	for name := range m.providers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
