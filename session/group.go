package session

// group is a named broadcast set. Membership keeps insertion order so group
// rosters render stably for clients.
type group struct {
	name    string
	members []string
}

func newGroup(name string) *group {
	return &group{name: name}
}

func (g *group) add(id string) {
	if g.has(id) {
		return
	}
	g.members = append(g.members, id)
}

func (g *group) remove(id string) {
	for i, m := range g.members {
		if m == id {
			g.members = append(g.members[:i], g.members[i+1:]...)
			return
		}
	}
}

func (g *group) has(id string) bool {
	for _, m := range g.members {
		if m == id {
			return true
		}
	}
	return false
}

func (g *group) roster() []string {
	out := make([]string, len(g.members))
	copy(out, g.members)
	return out
}
