package models

import (
	"sort"

	"github.com/google/uuid"
)

// Action is a named workflow step requested by an actor.
type Action string

const (
	ActionView      Action = "view"
	ActionEdit      Action = "edit"
	ActionPublish   Action = "publish"
	ActionClose     Action = "close"
	ActionComplete  Action = "complete"
	ActionCancel    Action = "cancel"
	ActionRepublish Action = "republish"
	ActionApply     Action = "apply"
	ActionAccept    Action = "accept"
	ActionReject    Action = "reject"
	ActionSend      Action = "send"
	ActionRespond   Action = "respond"
)

// EntityType names the kinds of records the workflow engine drives.
type EntityType string

const (
	EntityCampaign                   EntityType = "campaign"
	EntityApplication                EntityType = "application"
	EntityProposal                   EntityType = "proposal"
	EntityProposalApplication        EntityType = "proposal_application"
	EntityAdvertiserProposal         EntityType = "advertiser_proposal"
	EntityAdvertiserProposalResponse EntityType = "advertiser_proposal_response"
)

var AllEntityTypes = []EntityType{
	EntityCampaign, EntityApplication, EntityProposal,
	EntityProposalApplication, EntityAdvertiserProposal, EntityAdvertiserProposalResponse,
}

func (t EntityType) Valid() bool {
	for _, et := range AllEntityTypes {
		if et == t {
			return true
		}
	}
	return false
}

// EntityRef points at one stored record.
type EntityRef struct {
	Type EntityType `json:"entity_type"`
	ID   uuid.UUID  `json:"entity_id"`
}

// Entity is implemented by every record the orchestrator can return.
type Entity interface {
	Ref() EntityRef
	CurrentStatus() string
}

// Machine is a declarative transition table: from -> action -> to.
// A status with no row is undefined and rejects every action.
type Machine[S ~string] struct {
	name     string
	edges    map[S]map[Action]S
	terminal map[S]bool
}

func NewMachine[S ~string](name string, edges map[S]map[Action]S, terminal ...S) Machine[S] {
	m := Machine[S]{name: name, edges: edges, terminal: make(map[S]bool, len(terminal))}
	for _, s := range terminal {
		m.terminal[s] = true
	}
	return m
}

func (m Machine[S]) Name() string { return m.name }

// Next returns the status reached by applying action to from.
func (m Machine[S]) Next(from S, action Action) (S, bool) {
	row, ok := m.edges[from]
	if !ok {
		var zero S
		return zero, false
	}
	to, ok := row[action]
	return to, ok
}

// Can reports whether action is legal from the given status.
func (m Machine[S]) Can(from S, action Action) bool {
	_, ok := m.Next(from, action)
	return ok
}

// Actions lists the legal actions from a status in stable order.
func (m Machine[S]) Actions(from S) []Action {
	row := m.edges[from]
	out := make([]Action, 0, len(row))
	for a := range row {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Knows reports whether s is a status defined by this machine.
func (m Machine[S]) Knows(s S) bool {
	_, ok := m.edges[s]
	return ok
}

func (m Machine[S]) IsTerminal(s S) bool {
	return m.terminal[s]
}

// States lists every defined status in stable order.
func (m Machine[S]) States() []S {
	out := make([]S, 0, len(m.edges))
	for s := range m.edges {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
