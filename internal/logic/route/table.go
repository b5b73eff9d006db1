package route

import "strings"

// Definition binds a route-name key to its ordered action sequence.
type Definition struct {
	Key     string
	Actions []Action
}

// Table is an ordered list of definitions; the first key contained in a
// route name wins.
type Table []Definition

// DefaultTable returns the sequences of the standard course.
func DefaultTable() Table {
	return Table{
		{Key: "green", Actions: []Action{Straight, UTurn, Straight, Straight, Stop}},
		{Key: "blue", Actions: []Action{Left, Right, UTurn, Left, Right, Straight, Stop}},
		{Key: "yellow", Actions: []Action{Left, Straight, Right, UTurn, Left, Straight, Right, Straight, Stop}},
	}
}

// Lookup returns a copy of the sequence whose key is contained in the
// lowercased, trimmed route name.
func (t Table) Lookup(name string) ([]Action, bool) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	for _, def := range t {
		key := strings.ToLower(strings.TrimSpace(def.Key))
		if key == "" {
			continue
		}
		if strings.Contains(normalized, key) {
			return append([]Action(nil), def.Actions...), true
		}
	}
	return nil, false
}

// Keys lists the configured keys in lookup order.
func (t Table) Keys() []string {
	keys := make([]string, 0, len(t))
	for _, def := range t {
		keys = append(keys, def.Key)
	}
	return keys
}
