// Package fleet defines the node and session model shared by all deployment
// stages. Nodes are derived from provisioner outputs at the start of a run
// and are immutable for the session; nothing in this package is persisted.
package fleet

import (
	"fmt"
	"time"
)

// Role identifies what a node does in the fleet.
type Role string

const (
	RoleControl  Role = "control"
	RoleFrontend Role = "frontend"
	RoleBackend  Role = "backend"
)

// Node is a provisioned compute instance with a role. The SSH key is
// referenced by path, never loaded into the struct.
type Node struct {
	Role    Role
	Address string
	KeyPath string
}

// Name returns the operator-facing name for the node.
func (n Node) Name() string {
	return string(n.Role)
}

// IsApp reports whether the node hosts part of the application workload
// (everything except the control node).
func (n Node) IsApp() bool {
	return n.Role != RoleControl
}

// TrustState is the certificate state of a node as seen on the control
// node's certificate authority.
type TrustState string

const (
	TrustRequested TrustState = "requested"
	TrustPending   TrustState = "pending"
	TrustSigned    TrustState = "signed"
)

// Outcome is a per-node result within a stage.
type Outcome struct {
	Node   Node
	OK     bool
	Detail string
	Err    error
}

// Session tracks one orchestrator invocation. It exists only for the
// duration of a run; re-running recomputes everything from the live fleet.
type Session struct {
	Stage     string
	StartedAt time.Time
	Results   []Outcome
}

// NewSession starts a session for the named stage.
func NewSession(stage string) *Session {
	return &Session{Stage: stage, StartedAt: time.Now()}
}

// Record appends a per-node outcome.
func (s *Session) Record(node Node, err error, detail string) {
	s.Results = append(s.Results, Outcome{
		Node:   node,
		OK:     err == nil,
		Detail: detail,
		Err:    err,
	})
}

// Failures returns the number of failed outcomes.
func (s *Session) Failures() int {
	n := 0
	for _, r := range s.Results {
		if !r.OK {
			n++
		}
	}
	return n
}

// Fleet is the set of nodes under management for one run.
type Fleet struct {
	Control  Node
	Frontend Node
	Backend  Node
}

// All returns every node, control first.
func (f Fleet) All() []Node {
	return []Node{f.Control, f.Frontend, f.Backend}
}

// Agents returns the nodes managed by the control node.
func (f Fleet) Agents() []Node {
	return []Node{f.Frontend, f.Backend}
}

// Validate checks that every node has an address.
func (f Fleet) Validate() error {
	for _, n := range f.All() {
		if n.Address == "" {
			return fmt.Errorf("node %s has no address", n.Name())
		}
	}
	return nil
}
