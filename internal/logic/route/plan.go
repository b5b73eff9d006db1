package route

import "fmt"

// Plan is everything a single route run needs to know about its route.
type Plan struct {
	Route   string
	StopAt  int      // ordinal of the pickup intersection
	Total   int      // intersections expected over the whole run
	Actions []Action // post-pickup sequence; empty for fixed-count routes
}

// NewPlan resolves the route name against the table. Scripted routes expect
// StopAt + len(sequence) intersections; others keep the given total.
func NewPlan(name string, stopAt, total int, table Table) (Plan, error) {
	if stopAt < 1 {
		return Plan{}, fmt.Errorf("stop_at must be >= 1, got %d", stopAt)
	}
	p := Plan{Route: name, StopAt: stopAt, Total: total}
	if actions, ok := table.Lookup(name); ok && len(actions) > 0 {
		p.Actions = actions
		p.Total = stopAt + len(actions)
		return p, nil
	}
	if total < 1 {
		return Plan{}, fmt.Errorf("total_intersections must be >= 1, got %d", total)
	}
	return p, nil
}

// Scripted reports whether the plan carries a post-pickup sequence.
func (p Plan) Scripted() bool {
	return len(p.Actions) > 0
}
