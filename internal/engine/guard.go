package engine

// guard is a node's "applying schema" flag. While held, the node's
// OnConnectionsChange ignores events its own structural edits raise.
type guard struct {
	active bool
}

// hold runs fn with the guard held and restores the previous state on
// every exit path, panics included.
func (g *guard) hold(fn func() error) error {
	prev := g.active
	g.active = true
	defer func() { g.active = prev }()
	return fn()
}

func (g *guard) held() bool { return g.active }
