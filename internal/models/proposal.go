package models

import (
	"time"

	"github.com/google/uuid"
)

// ProposalType identifies the remediation a proposal carries.
type ProposalType string

const (
	ProposalCreateIndex  ProposalType = "create_index"
	ProposalDropIndex    ProposalType = "drop_index"
	ProposalAnalyzeTable ProposalType = "analyze_table"
)

// ProposalStatus tracks the proposal lifecycle:
// pending → {approved, rejected}; approved → executed.
// rejected and executed are terminal.
type ProposalStatus string

const (
	ProposalStatusPending  ProposalStatus = "pending"
	ProposalStatusApproved ProposalStatus = "approved"
	ProposalStatusRejected ProposalStatus = "rejected"
	ProposalStatusExecuted ProposalStatus = "executed"
)

// Terminal reports whether no further transition is allowed from this status.
func (s ProposalStatus) Terminal() bool {
	return s == ProposalStatusRejected || s == ProposalStatusExecuted
}

// CanTransitionTo reports whether the lifecycle permits moving to next.
// No transition skips a state: pending cannot jump to executed.
func (s ProposalStatus) CanTransitionTo(next ProposalStatus) bool {
	switch s {
	case ProposalStatusPending:
		return next == ProposalStatusApproved || next == ProposalStatusRejected
	case ProposalStatusApproved:
		return next == ProposalStatusExecuted
	default:
		return false
	}
}

// Proposal is one concrete remediation synthesized from a signal.
type Proposal struct {
	ID              uuid.UUID      `json:"id"`
	DatabaseID      uuid.UUID      `json:"database_id"`
	SignalID        *uuid.UUID     `json:"signal_id,omitempty"`
	Type            ProposalType   `json:"proposal_type"`
	Table           string         `json:"table"`
	SQLCommand      string         `json:"sql_command"`
	Justification   string         `json:"justification"`
	EstimatedImpact string         `json:"estimated_impact"`
	Confidence      float64        `json:"confidence"`
	Status          ProposalStatus `json:"status"`
	CreatedAt       time.Time      `json:"created_at"`
	DecidedAt       *time.Time     `json:"decided_at,omitempty"`
	ExecutedAt      *time.Time     `json:"executed_at,omitempty"`
}
