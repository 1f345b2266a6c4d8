package api

import (
	"sync"

	log "github.com/sirupsen/logrus"

	"trellis-api/board"
)

// Registry hands out one board store per project, created on first use. Each
// store owns its project's state exclusively; the registry only guards the
// map.
type Registry struct {
	gw     board.Gateway
	logger *log.Logger

	mu     sync.Mutex
	stores map[string]*board.Store
}

// NewRegistry creates a registry backed by the given gateway.
func NewRegistry(gw board.Gateway, logger *log.Logger) *Registry {
	return &Registry{
		gw:     gw,
		logger: logger,
		stores: make(map[string]*board.Store),
	}
}

func (r *Registry) Board(projectID string) Board {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.stores[projectID]
	if !ok {
		s = board.New(projectID, r.gw, r.logger)
		r.stores[projectID] = s
	}
	return s
}
