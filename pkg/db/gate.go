package db

import "sync"

// WriteGate is the ledger-core critical section. The embedded store executes
// one statement at a time and offers no multi-statement transaction, so every
// multi-step mutation (invoice creation, payment settlement, customer merge)
// must run start to finish inside the gate, and the snapshot routine must only
// serialize the database between operations, never mid-operation.
//
// Reads that are single statements do not take the gate.
type WriteGate struct {
	mu sync.Mutex
}

func NewWriteGate() *WriteGate {
	return &WriteGate{}
}

func (g *WriteGate) Lock()   { g.mu.Lock() }
func (g *WriteGate) Unlock() { g.mu.Unlock() }

// Do runs fn while holding the gate.
func (g *WriteGate) Do(fn func() error) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return fn()
}
