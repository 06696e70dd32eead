package api

import "sync/atomic"

// CatastrophicGate tracks the §7 "Catastrophic" error kind: once tripped,
// POST /turns/run refuses to run until /admin/drop-database or a
// successful /saves/load clears it.
type CatastrophicGate struct {
	tripped atomic.Bool
}

func (g *CatastrophicGate) Trip()       { g.tripped.Store(true) }
func (g *CatastrophicGate) Clear()      { g.tripped.Store(false) }
func (g *CatastrophicGate) Tripped() bool { return g.tripped.Load() }
