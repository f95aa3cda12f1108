package triggers

import (
	"context"

	"portfolio-sync-go/internal/models"
)

// Trigger is the capability set every broker integration implements.
// FetchHoldings returns the normalized point-in-time position snapshot for
// the bound account. Business-level failures (expired token, upstream
// errors, malformed responses) come back as errors; a trigger never panics
// on them.
type Trigger interface {
	FetchHoldings(ctx context.Context) (*models.Snapshot, error)
}

// Factory builds a trigger bound to one broker account.
type Factory func(account *models.BrokerAccount) (Trigger, error)
