package graph

// State is the playback classification of a node or link.
type State string

const (
	StateActive   State = "active"
	StateVisited  State = "visited"
	StateInactive State = "inactive"
)

// ElementState pairs a node key or link id with its state.
type ElementState struct {
	ID    string `json:"id"`
	State State  `json:"state"`
}

// Playback is the state of every node and link at one step. Slices follow the
// order of the inputs.
type Playback struct {
	Step  int            `json:"step"`
	Nodes []ElementState `json:"nodes"`
	Links []ElementState `json:"links"`
}

// PlaybackAt classifies nodes and links at step n. A node is active if step n
// lists it, visited if an earlier step does, inactive otherwise. A link is
// active in its own step and visited afterwards. A negative n is the state
// before the first step, with every element inactive and Step -1; an n past the
// end is the last step. Nothing is cached between calls.
func PlaybackAt(nodes []Node, steps []Step, links []Link, n int) Playback {
	if n < 0 || len(steps) == 0 {
		n = -1
	} else {
		n = min(n, len(steps)-1)
	}

	active := make(map[string]bool)
	earlier := make(map[string]bool)
	for i := 0; i <= n; i++ {
		for _, key := range steps[i].ActiveNodes {
			if i == n {
				active[key] = true
			} else {
				earlier[key] = true
			}
		}
	}

	pb := Playback{
		Step:  n,
		Nodes: make([]ElementState, 0, len(nodes)),
		Links: make([]ElementState, 0, len(links)),
	}
	for _, node := range nodes {
		st := StateInactive
		switch {
		case active[node.Key]:
			st = StateActive
		case earlier[node.Key]:
			st = StateVisited
		}
		pb.Nodes = append(pb.Nodes, ElementState{ID: node.Key, State: st})
	}
	for _, link := range links {
		st := StateInactive
		switch {
		case n < 0:
		case link.Step == n:
			st = StateActive
		case link.Step < n:
			st = StateVisited
		}
		pb.Links = append(pb.Links, ElementState{ID: link.ID, State: st})
	}
	return pb
}

// Count returns how many entries of states are in st.
func Count(states []ElementState, st State) int {
	var n int
	for _, s := range states {
		if s.State == st {
			n++
		}
	}
	return n
}
