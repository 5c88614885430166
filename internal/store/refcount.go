package store

// refGuard is the explicit reference counting and deferred-destruction
// discipline every async callback path in this package uses. Registering a
// callback against an object locks it; the callback firing (or being
// abandoned) unlocks it. An object marked doomed is destroyed when the last
// reference drops, never from inside a callback that still holds one.
//
// All refGuard methods run on the event loop goroutine.
type refGuard struct {
	refs   int
	doomed bool
	gone   bool
}

func (g *refGuard) lock() {
	if g.gone {
		panic("logic error: lock of destroyed object")
	}
	g.refs++
}

// unlock drops one reference and runs destroy if this was the last
// reference on a doomed object.
func (g *refGuard) unlock(destroy func()) {
	if g.refs <= 0 {
		panic("logic error: unbalanced refGuard unlock")
	}
	g.refs--
	if g.refs == 0 && g.doomed && !g.gone {
		g.gone = true
		if destroy != nil {
			destroy()
		}
	}
}

// doom marks the object for destruction. Destruction happens now if nothing
// references it, otherwise when the last unlock drops the count to zero.
func (g *refGuard) doom(destroy func()) {
	g.doomed = true
	if g.refs == 0 && !g.gone {
		g.gone = true
		if destroy != nil {
			destroy()
		}
	}
}

// live reports whether callbacks should still be delivered to the object.
func (g *refGuard) live() bool {
	return !g.doomed
}

func (g *refGuard) refCount() int {
	return g.refs
}
