package timer

import (
	"sort"

	"github.com/BTreeMap/Cockpit/internal/models"
)

// Status returns the current run snapshot. It never takes the engine lock and
// never mutates state, so it is safe to poll at any frequency.
func (e *Engine) Status() models.RunSnapshot {
	return e.registry.Snapshot(e.clock.Now())
}

// Profiles returns a copy of the static profile registry.
func (e *Engine) Profiles() map[string]models.PhaseProfile {
	out := make(map[string]models.PhaseProfile, len(e.profiles))
	for name, p := range e.profiles {
		out[name] = p
	}
	return out
}

// ProfileNames returns the registered profile names in sorted order.
func (e *Engine) ProfileNames() []string {
	names := make([]string, 0, len(e.profiles))
	for name := range e.profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Settings returns the operator defaults the engine was built with.
func (e *Engine) Settings() models.Settings {
	return e.settings
}
