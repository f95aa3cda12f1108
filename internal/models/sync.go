package models

// Action codes a broker action task can carry. The action selects which
// trigger method runs; only holdings sync is wired today.
const (
	ActionHoldings = "holdings"
)

// Terminal statuses recorded for a broker action execution.
const (
	SyncStatusSucceeded        = "succeeded"
	SyncStatusFailed           = "failed"
	SyncStatusSkippedNoTrigger = "skipped_no_trigger"
)

// DispatchPayload is the (empty) payload of a sync:dispatch task.
type DispatchPayload struct{}

// PortfolioSyncPayload parameterizes one portfolio-level fan-out task.
// Actions defaults to {holdings} when empty.
type PortfolioSyncPayload struct {
	PortfolioId string   `json:"portfolio_id"`
	Actions     []string `json:"actions,omitempty"`
}

// BrokerActionPayload parameterizes one broker action execution.
type BrokerActionPayload struct {
	PortfolioId     string `json:"portfolio_id"`
	BrokerAccountId string `json:"broker_account_id"`
	Action          string `json:"action"`
}
