package internal

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Node is one resolved module of a matched chain with its hook output.
type Node struct {
	LoaderData any
	ActionData any
	Module     *Module
	ModulePath string
}

// Tree is the ordered module chain handed to the renderer.
// Nodes are ordered outside-in: layouts first, leaf last.
type Tree struct {
	Vars   Variables
	Nodes  []Node
	Status int
}

func newTree(chain []*Module, vars Variables) *Tree {
	t := &Tree{
		Nodes:  make([]Node, len(chain)),
		Vars:   vars,
		Status: http.StatusOK,
	}
	for i, m := range chain {
		t.Nodes[i] = Node{ModulePath: m.ID, Module: m}
	}
	return t
}

// Leaf returns the innermost node.
func (t *Tree) Leaf() *Node {
	if len(t.Nodes) == 0 {
		return nil
	}
	return &t.Nodes[len(t.Nodes)-1]
}

// SnapshotNode is the serialized form of a Node.
type SnapshotNode struct {
	ModulePath string `json:"modulePath"`
	LoaderData any    `json:"loaderData"`
	ActionData any    `json:"actionData"`
}

// Snapshot is the hydration payload embedded into the document.
type Snapshot struct {
	Variables  Variables         `json:"variables"`
	Routes     map[string]string `json:"routes,omitempty"`
	ModuleTree []SnapshotNode    `json:"moduleTree"`
	Files      []string          `json:"files"`
}

// Snapshot returns the hydration payload for t. files lists the client
// bundles of the page and routes maps module paths to their bundle.
func (t *Tree) Snapshot(files []string, routes map[string]string) Snapshot {
	s := Snapshot{
		Variables:  t.Vars,
		Routes:     routes,
		ModuleTree: make([]SnapshotNode, len(t.Nodes)),
		Files:      files,
	}
	if s.Files == nil {
		s.Files = []string{}
	}
	for i, n := range t.Nodes {
		s.ModuleTree[i] = SnapshotNode{
			ModulePath: n.ModulePath,
			LoaderData: n.LoaderData,
			ActionData: n.ActionData,
		}
	}
	return s
}

// Hydrate rebuilds a Tree from a snapshot using the registered modules.
// Rendering the result produces the same markup as the tree the snapshot was
// taken from.
func Hydrate(registry *Registry, s Snapshot) (*Tree, error) {
	t := &Tree{
		Vars:   s.Variables,
		Nodes:  make([]Node, len(s.ModuleTree)),
		Status: http.StatusOK,
	}
	if t.Vars == nil {
		t.Vars = Variables{}
	}
	for i, sn := range s.ModuleTree {
		m, ok := registry.Lookup(sn.ModulePath)
		if !ok {
			return nil, fmt.Errorf("hydrate: %w: %q", ErrUnknownModule, sn.ModulePath)
		}
		t.Nodes[i] = Node{
			ModulePath: sn.ModulePath,
			LoaderData: sn.LoaderData,
			ActionData: sn.ActionData,
			Module:     m,
		}
	}
	return t, nil
}

// ParseSnapshot decodes a snapshot produced by json.Marshal.
func ParseSnapshot(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("hydrate: decode snapshot: %w", err)
	}
	return s, nil
}
