package spatial

import "sync"

// A sequential object id generator. Released ids are handed out again before
// the sequence grows, keeping the id space dense for long-lived worlds.
type IDGenerator struct {
	mutex       sync.Mutex
	currentID   uint32
	reusableIDs map[uint32]struct{}
}

// Allocate returns a fresh id, preferring previously released ones.
func (g *IDGenerator) Allocate() uint32 {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	for id := range g.reusableIDs {
		delete(g.reusableIDs, id)
		return id
	}

	g.currentID++
	return g.currentID
}

// Release marks the given id as reusable.
func (g *IDGenerator) Release(id uint32) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if g.reusableIDs == nil {
		g.reusableIDs = make(map[uint32]struct{})
	}
	g.reusableIDs[id] = struct{}{}
}
