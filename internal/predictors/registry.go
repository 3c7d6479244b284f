package predictors

import (
	"fmt"
	"sort"
	"sync"

	"github.com/forecastlab/ensemble/models"
)

// Registry is the static name → predictor table built at startup. It is the
// only place bots are looked up; nothing in the pipeline reflects over bot
// types at runtime.
type Registry struct {
	mu   sync.RWMutex
	bots map[string]models.Predictor
}

func NewRegistry() *Registry {
	return &Registry{bots: make(map[string]models.Predictor)}
}

// Register adds a predictor under its own name. Registering the same name
// twice is a programming error.
func (r *Registry) Register(p models.Predictor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := p.Name()
	if _, exists := r.bots[name]; exists {
		return fmt.Errorf("predictor %q already registered", name)
	}
	r.bots[name] = p
	return nil
}

// Get returns the predictor registered under name.
func (r *Registry) Get(name string) (models.Predictor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.bots[name]
	return p, ok
}

// Names lists registered bot names in stable order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.bots))
	for name := range r.bots {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Select resolves a requested subset to concrete predictors, silently
// skipping unknown names. An empty subset selects every registered bot.
func (r *Registry) Select(subset []string) map[string]models.Predictor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	selected := make(map[string]models.Predictor)
	if len(subset) == 0 {
		for name, p := range r.bots {
			selected[name] = p
		}
		return selected
	}
	for _, name := range subset {
		if p, ok := r.bots[name]; ok {
			selected[name] = p
		}
	}
	return selected
}
