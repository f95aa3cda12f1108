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

const (
	// User queries
	queryGetActiveUsers = `
		SELECT id, name, email, active, created_at
		FROM users
		WHERE active = 1
		ORDER BY created_at`

	queryInsertUser = `
		INSERT OR IGNORE INTO users (id, name, email) VALUES (?, ?, ?)`

	queryGetUserByEmail = `
		SELECT id, name, email, active, created_at
		FROM users
		WHERE email = ?`

	// Portfolio queries
	queryGetActivePortfolios = `
		SELECT id, user_id, name, description, is_default, active, created_at
		FROM portfolios
		WHERE user_id = ? AND active = 1
		ORDER BY created_at`

	queryGetPortfolio = `
		SELECT id, user_id, name, description, is_default, active, created_at
		FROM portfolios
		WHERE id = ?`

	queryInsertPortfolio = `
		INSERT INTO portfolios (id, user_id, name, description, is_default)
		VALUES (?, ?, ?, ?, ?)`

	// Broker type queries
	queryInsertBrokerType = `
		INSERT OR IGNORE INTO broker_types (id, code, display_name) VALUES (?, ?, ?)`

	queryGetBrokerTypeByCode = `
		SELECT id, code, display_name
		FROM broker_types
		WHERE code = ?`

	// Broker account queries
	queryGetBrokerAccount = `
		SELECT a.id, a.portfolio_id, a.broker_type_id, a.external_account_id,
		       a.display_name, a.status, a.created_at, t.code,
		       c.id, c.credentials, c.encrypted, c.created_at, c.updated_at
		FROM broker_accounts a
		JOIN broker_types t ON t.id = a.broker_type_id
		LEFT JOIN broker_account_credentials c ON c.broker_account_id = a.id
		WHERE a.id = ?`

	queryListBrokerAccounts = `
		SELECT a.id, a.portfolio_id, a.broker_type_id, a.external_account_id,
		       a.display_name, a.status, a.created_at, t.code
		FROM broker_accounts a
		JOIN broker_types t ON t.id = a.broker_type_id
		WHERE a.portfolio_id = ?
		ORDER BY a.created_at`

	queryInsertBrokerAccount = `
		INSERT INTO broker_accounts (id, portfolio_id, broker_type_id, external_account_id, display_name)
		VALUES (?, ?, ?, ?, ?)`

	queryUpsertCredential = `
		INSERT INTO broker_account_credentials (id, broker_account_id, credentials, encrypted)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(broker_account_id) DO UPDATE SET
			credentials = excluded.credentials,
			encrypted = excluded.encrypted,
			updated_at = CURRENT_TIMESTAMP`

	// Holdings queries
	queryUpsertStock = `
		INSERT INTO stock_prices (id, symbol, isin, asset_type, as_of, last_price, close_price, received_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol, isin, asset_type) DO UPDATE SET
			as_of = excluded.as_of,
			last_price = excluded.last_price,
			close_price = excluded.close_price,
			received_at = excluded.received_at`

	queryGetStockId = `
		SELECT id FROM stock_prices
		WHERE symbol = ? AND isin = ? AND asset_type = ?`

	queryUpsertHolding = `
		INSERT INTO holdings (id, broker_account_id, stock_id, quantity, avg_price, currency, as_of, source_snapshot_id, meta)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(broker_account_id, stock_id) DO UPDATE SET
			quantity = excluded.quantity,
			avg_price = excluded.avg_price,
			currency = excluded.currency,
			as_of = excluded.as_of,
			source_snapshot_id = excluded.source_snapshot_id,
			meta = excluded.meta,
			updated_at = CURRENT_TIMESTAMP`

	queryGetPortfolioHoldings = `
		SELECT h.id, h.broker_account_id, h.stock_id, h.quantity, h.avg_price,
		       h.currency, h.as_of, h.source_snapshot_id, h.meta, h.created_at, h.updated_at,
		       s.symbol, s.asset_type, s.last_price
		FROM holdings h
		JOIN stock_prices s ON s.id = h.stock_id
		JOIN broker_accounts a ON a.id = h.broker_account_id
		WHERE a.portfolio_id = ?
		ORDER BY s.symbol`

	// Sync result queries
	queryInsertSyncResult = `
		INSERT INTO sync_results (id, portfolio_id, broker_account_id, action, status, message, token_source, persisted_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
)
