// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package weight

import "sync/atomic"

// Activation is a table and the height at which it became active.
type Activation struct {
	Table  *Table
	Height int64
}

// Store holds the active weight table. Readers always see a whole table;
// Activate swaps the table and its activation height in a single atomic
// store. There is no history: replaying old heights requires re-activating
// the table that was valid then.
type Store struct {
	active atomic.Pointer[Activation]
}

// NewStore creates a Store with t active from height. A nil t activates
// Default().
func NewStore(t *Table, height int64) *Store {
	s := new(Store)
	if t == nil {
		t = Default()
	}
	s.Activate(t, height)
	return s
}

// Activate makes a copy of t the active table as of height.
func (s *Store) Activate(t *Table, height int64) {
	s.active.Store(&Activation{
		Table:  t.Clone(),
		Height: height,
	})
}

// Current is the active table with its activation height.
func (s *Store) Current() *Activation {
	return s.active.Load()
}

// Table is the active table. It must not be modified.
func (s *Store) Table() *Table {
	return s.active.Load().Table
}

// Height is the activation height of the active table.
func (s *Store) Height() int64 {
	return s.active.Load().Height
}
