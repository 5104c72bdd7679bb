package health

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
)

// Manager tracks readiness per named dependency. Liveness is unconditional;
// readiness requires every registered component (db, kafka) to be up.
type Manager struct {
	mu         sync.RWMutex
	components map[string]bool
}

// NewManager registers the named components, all starting not-ready.
func NewManager(components ...string) *Manager {
	m := &Manager{components: make(map[string]bool, len(components))}
	for _, name := range components {
		m.components[name] = false
	}
	return m
}

func (m *Manager) SetReady(component string, ok bool) {
	m.mu.Lock()
	m.components[component] = ok
	m.mu.Unlock()
}

func (m *Manager) IsReady() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, ok := range m.components {
		if !ok {
			return false
		}
	}
	return true
}

// Snapshot reports overall readiness and the state of each component.
func (m *Manager) Snapshot() (bool, map[string]bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := true
	out := make(map[string]bool, len(m.components))
	for name, ok := range m.components {
		out[name] = ok
		if !ok {
			all = false
		}
	}
	return all, out
}

func LivenessHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func ReadinessHandler(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		ready, components := m.Snapshot()
		if ready {
			c.JSON(http.StatusOK, gin.H{"status": "ready", "components": components})
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "components": components})
	}
}
