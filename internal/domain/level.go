package domain

import "fmt"

// Level is one tier of the level table: members holding this level need
// Threshold points to advance past it.
type Level struct {
	Threshold int
	Name      string
}

// LevelTable is the ordered tier sequence. Index 0 is the entry level.
type LevelTable []Level

// Validate checks the table is non-empty with strictly ascending,
// positive thresholds.
func (t LevelTable) Validate() error {
	if len(t) == 0 {
		return fmt.Errorf("level table is empty")
	}
	prev := 0
	for i, l := range t {
		if l.Threshold <= prev {
			return fmt.Errorf("level %d (%q): threshold %d not ascending", i, l.Name, l.Threshold)
		}
		if l.Name == "" {
			return fmt.Errorf("level %d: empty name", i)
		}
		prev = l.Threshold
	}
	return nil
}

// MaxLevel is the highest reachable level index.
func (t LevelTable) MaxLevel() int { return len(t) - 1 }
