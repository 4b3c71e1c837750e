package models

import "fmt"

// NodeState is the security state of a single network node.
type NodeState string

const (
	NodeStateClean       NodeState = "clean"       // Untouched by the attacker
	NodeStateCompromised NodeState = "compromised" // Attacker holds a foothold
	NodeStatePatched     NodeState = "patched"     // Remediated, harder to compromise
	NodeStateIsolated    NodeState = "isolated"    // Cut off from the network, terminal
	NodeStateHoneypot    NodeState = "honeypot"    // Decoy overlay, reverted after the attack resolves
)

// AllNodeStates lists every node state in a stable order.
func AllNodeStates() []NodeState {
	return []NodeState{
		NodeStateClean,
		NodeStateCompromised,
		NodeStatePatched,
		NodeStateIsolated,
		NodeStateHoneypot,
	}
}

// IsTerminal reports whether no further transitions may leave this state.
func (s NodeState) IsTerminal() bool {
	return s == NodeStateIsolated
}

// Valid reports whether s is a known node state.
func (s NodeState) Valid() bool {
	switch s {
	case NodeStateClean, NodeStateCompromised, NodeStatePatched, NodeStateIsolated, NodeStateHoneypot:
		return true
	}
	return false
}

// Action is a defender action.
type Action string

const (
	ActionRestoreNode Action = "RESTORE_NODE"
	ActionIsolate     Action = "ISOLATE"
	ActionDeceive     Action = "DECEIVE"
	ActionNoOp        Action = "NO_OP"
)

// AllActions lists every defender action in a stable order.
func AllActions() []Action {
	return []Action{ActionRestoreNode, ActionIsolate, ActionDeceive, ActionNoOp}
}

// ParseAction converts a string to an Action.
func ParseAction(s string) (Action, error) {
	for _, a := range AllActions() {
		if string(a) == s {
			return a, nil
		}
	}
	return "", fmt.Errorf("unknown action: %q", s)
}
