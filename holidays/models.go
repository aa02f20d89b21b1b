package holidays

// Contact is one active client reachable for a seasonal greeting.
type Contact struct {
	ID       string
	Name     string
	RawPhone string
}
