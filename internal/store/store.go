package store

import (
	"context"
	"encoding/json"
	"errors"

	"portfolio-sync-go/internal/models"
)

// Sentinel errors shared across store implementations.
var (
	ErrNotFound         = errors.New("record not found")
	ErrDuplicateAccount = errors.New("broker account already exists")
)

// CreateBrokerAccountParams contains the parameters for registering a broker
// account under a portfolio.
type CreateBrokerAccountParams struct {
	PortfolioId       string
	BrokerTypeCode    string
	ExternalAccountId string
	DisplayName       string
}

// UpsertCredentialParams contains the parameters for storing the durable
// credential payload of a broker account.
type UpsertCredentialParams struct {
	BrokerAccountId string
	Credentials     json.RawMessage
	Encrypted       bool
}

// RecordSyncResultParams captures the terminal outcome of one broker action
// execution.
type RecordSyncResultParams struct {
	PortfolioId     string
	BrokerAccountId string
	Action          string
	Status          string
	Message         string
	TokenSource     string
	PersistedCount  int
}

// SyncStore defines the contract the sync pipeline and the CLI tooling need
// from the persistence layer.
type SyncStore interface {
	// --- Users / portfolios ---
	GetActiveUsers(ctx context.Context) ([]models.User, error)
	GetActivePortfolios(ctx context.Context, userId string) ([]models.Portfolio, error)
	GetPortfolio(ctx context.Context, portfolioId string) (*models.Portfolio, error)
	CreateUser(ctx context.Context, userId, name, email string) (*models.User, error)
	CreatePortfolio(ctx context.Context, userId, name, description string, isDefault bool) (*models.Portfolio, error)

	// --- Broker catalog / accounts ---
	SeedBrokerTypes(ctx context.Context, types []models.BrokerType) error
	GetBrokerAccount(ctx context.Context, brokerAccountId string) (*models.BrokerAccount, error)
	ListBrokerAccounts(ctx context.Context, portfolioId string) ([]models.BrokerAccount, error)
	CreateBrokerAccount(ctx context.Context, params CreateBrokerAccountParams) (*models.BrokerAccount, error)
	UpsertCredential(ctx context.Context, params UpsertCredentialParams) error

	// --- Holdings ---
	PersistHoldings(ctx context.Context, brokerAccountId string, snapshot *models.Snapshot) (int, error)
	GetHoldings(ctx context.Context, portfolioId string) ([]models.Holding, error)

	// --- Sync results ---
	RecordSyncResult(ctx context.Context, params RecordSyncResultParams) error

	// --- Lifecycle ---
	Close()
}
