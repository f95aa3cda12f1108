/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"context"
	"database/sql"
	"fmt"

	"portfolio-sync-go/internal/models"
	"portfolio-sync-go/internal/store"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Compile-time check: *Service must satisfy store.SyncStore.
var _ store.SyncStore = (*Service)(nil)

type Service struct {
	db *sql.DB
}

func NewService(ctx context.Context, cfg models.DatabaseConfig) (*Service, error) {
	// Validate configuration
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if cfg.MaxOpenConns <= 0 {
		return nil, fmt.Errorf("max open connections must be positive, got %d", cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns < 0 {
		return nil, fmt.Errorf("max idle connections cannot be negative, got %d", cfg.MaxIdleConns)
	}
	if cfg.PingTimeout <= 0 {
		return nil, fmt.Errorf("ping timeout must be positive, got %v", cfg.PingTimeout)
	}

	zap.L().Info("Opening SQLite database", zap.String("file", cfg.Path))
	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=1000")
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	// Set connection timeouts and limits
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Test connection with timeout
	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, closeErr
		}
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	service := &Service{db: db}
	if err := service.initSchema(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, closeErr
		}
		return nil, fmt.Errorf("unable to initialize schema: %w", err)
	}

	zap.L().Info("Database service initialized successfully")
	return service, nil
}

func (s *Service) Close() {
	if err := s.db.Close(); err != nil {
		zap.L().Warn("Failed to close database connection", zap.Error(err))
	}
}

func (s *Service) initSchema() error {
	schema := `
	-- Create users table
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		active BOOLEAN NOT NULL DEFAULT 1,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);
	CREATE INDEX IF NOT EXISTS idx_users_active ON users(active);

	-- Create portfolios table
	CREATE TABLE IF NOT EXISTS portfolios (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		is_default BOOLEAN NOT NULL DEFAULT 0,
		active BOOLEAN NOT NULL DEFAULT 1,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_portfolios_user ON portfolios(user_id);
	CREATE INDEX IF NOT EXISTS idx_portfolios_active ON portfolios(active);

	-- Create broker type catalog
	CREATE TABLE IF NOT EXISTS broker_types (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL
	);

	-- Create broker accounts table
	CREATE TABLE IF NOT EXISTS broker_accounts (
		id TEXT PRIMARY KEY,
		portfolio_id TEXT NOT NULL REFERENCES portfolios(id) ON DELETE CASCADE,
		broker_type_id TEXT NOT NULL REFERENCES broker_types(id),
		external_account_id TEXT NOT NULL,
		display_name TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'active',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(broker_type_id, external_account_id)
	);

	CREATE INDEX IF NOT EXISTS idx_broker_accounts_portfolio ON broker_accounts(portfolio_id);

	-- Create broker account credentials table (one credential per account)
	CREATE TABLE IF NOT EXISTS broker_account_credentials (
		id TEXT PRIMARY KEY,
		broker_account_id TEXT NOT NULL UNIQUE REFERENCES broker_accounts(id) ON DELETE CASCADE,
		credentials TEXT NOT NULL,
		encrypted BOOLEAN NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	-- Create stock price cache. isin is '' when the instrument has none so
	-- the uniqueness constraint applies (SQLite treats NULLs as distinct).
	CREATE TABLE IF NOT EXISTS stock_prices (
		id TEXT PRIMARY KEY,
		symbol TEXT NOT NULL,
		isin TEXT NOT NULL DEFAULT '',
		asset_type TEXT NOT NULL,
		as_of TIMESTAMP NOT NULL,
		last_price TEXT NOT NULL,
		close_price TEXT,
		received_at TIMESTAMP NOT NULL,
		UNIQUE(symbol, isin, asset_type)
	);

	CREATE INDEX IF NOT EXISTS idx_stock_prices_symbol ON stock_prices(symbol);
	CREATE INDEX IF NOT EXISTS idx_stock_prices_as_of ON stock_prices(as_of);

	-- Create holdings table (one row per broker account and stock)
	CREATE TABLE IF NOT EXISTS holdings (
		id TEXT PRIMARY KEY,
		broker_account_id TEXT NOT NULL REFERENCES broker_accounts(id) ON DELETE CASCADE,
		stock_id TEXT NOT NULL REFERENCES stock_prices(id),
		quantity TEXT NOT NULL,
		avg_price TEXT NOT NULL,
		currency TEXT NOT NULL DEFAULT 'INR',
		as_of TIMESTAMP NOT NULL,
		source_snapshot_id TEXT NOT NULL DEFAULT '',
		meta TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(broker_account_id, stock_id)
	);

	CREATE INDEX IF NOT EXISTS idx_holdings_account ON holdings(broker_account_id);
	CREATE INDEX IF NOT EXISTS idx_holdings_stock ON holdings(stock_id);

	-- Create transactions table (append-only trade log)
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		broker_account_id TEXT NOT NULL REFERENCES broker_accounts(id) ON DELETE CASCADE,
		stock_id TEXT NOT NULL REFERENCES stock_prices(id),
		side TEXT NOT NULL,
		quantity TEXT NOT NULL,
		price TEXT NOT NULL,
		executed_at TIMESTAMP NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_account ON transactions(broker_account_id);

	-- Create sync results table (per-account outcome of each sync task)
	CREATE TABLE IF NOT EXISTS sync_results (
		id TEXT PRIMARY KEY,
		portfolio_id TEXT NOT NULL,
		broker_account_id TEXT NOT NULL,
		action TEXT NOT NULL,
		status TEXT NOT NULL,
		message TEXT NOT NULL DEFAULT '',
		token_source TEXT NOT NULL DEFAULT '',
		persisted_count INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_sync_results_account ON sync_results(broker_account_id);
	CREATE INDEX IF NOT EXISTS idx_sync_results_created_at ON sync_results(created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}
