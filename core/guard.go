package core

import "sync/atomic"

// reentrancyGuard keeps the preemption monitor out of scheduler critical
// sections. It is a flag, not a lock: nested suppression leaves it set and
// each restore puts back the value seen at the matching suppress.
type reentrancyGuard struct {
	held atomic.Bool
}

// suppress sets the guard and returns the function restoring its previous value.
func (g *reentrancyGuard) suppress() (restore func()) {
	prev := g.held.Swap(true)
	return func() { g.held.Store(prev) }
}

// hold sets the guard for a critical section that hands control to another
// thread without coming back; the next thread to run restores it.
func (g *reentrancyGuard) hold() {
	g.held.Store(true)
}

// reset clears the guard. Used when a new thread starts running.
func (g *reentrancyGuard) reset() {
	g.held.Store(false)
}

func (g *reentrancyGuard) Held() bool {
	return g.held.Load()
}
