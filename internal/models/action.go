package models

import (
	"time"

	"github.com/google/uuid"
)

// Action is one append-only audit record for an attempted execution,
// automatic or manual. Actions are never mutated after creation.
type Action struct {
	ID         uuid.UUID  `json:"id"`
	DatabaseID uuid.UUID  `json:"database_id"`
	ProposalID *uuid.UUID `json:"proposal_id,omitempty"`
	Agent      string     `json:"agent"`
	ActionType string     `json:"action_type"`
	SQLCommand string     `json:"sql_command"`
	Success    bool       `json:"success"`
	DurationMs int64      `json:"duration_ms"`
	Result     string     `json:"result,omitempty"`
	Error      string     `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}
