package model

type ActionStatus string

const (
	ActionStatusPending ActionStatus = "pending"
	ActionStatusDryRun  ActionStatus = "dry_run"
	ActionStatusEtched  ActionStatus = "etched"
	ActionStatusFailed  ActionStatus = "failed"
)

const (
	ActionKindSend     = "send"
	ActionKindInscribe = "inscribe"
	ActionKindMint     = "mint"
	ActionKindBatch    = "batch"
	ActionKindEtching  = "etching"
)

// Action is an unsigned wallet intent recorded for a signer to complete.
type Action struct {
	ActionID    string         `json:"action_id"`
	Wallet      string         `json:"wallet"`
	Kind        string         `json:"kind"`
	Status      ActionStatus   `json:"status"`
	Chain       string         `json:"chain"`
	FeeRate     float64        `json:"fee_rate,omitempty"`
	Destination string         `json:"destination,omitempty"`
	Transaction string         `json:"transaction,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
	CreatedAt   string         `json:"created_at"`
	UpdatedAt   string         `json:"updated_at"`
}
