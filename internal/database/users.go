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
	"errors"
	"fmt"

	"portfolio-sync-go/internal/models"
	"portfolio-sync-go/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func (s *Service) GetActiveUsers(ctx context.Context) ([]models.User, error) {
	zap.L().Debug("Querying active users")

	rows, err := s.db.QueryContext(ctx, queryGetActiveUsers)
	if err != nil {
		zap.L().Error("Failed to query users", zap.Error(err))
		return nil, fmt.Errorf("unable to query users: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var users []models.User
	for rows.Next() {
		var user models.User
		err := rows.Scan(&user.Id, &user.Name, &user.Email, &user.Active, &user.CreatedAt)
		if err != nil {
			zap.L().Error("Failed to scan user row", zap.Error(err))
			return nil, fmt.Errorf("unable to scan user row: %w", err)
		}

		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		zap.L().Error("Error during user row iteration", zap.Error(err))
		return nil, fmt.Errorf("error iterating user rows: %w", err)
	}

	return users, nil
}

func (s *Service) CreateUser(ctx context.Context, userId, name, email string) (*models.User, error) {
	zap.L().Info("Creating user", zap.String("id", userId), zap.String("name", name), zap.String("email", email))

	result, err := s.db.ExecContext(ctx, queryInsertUser, userId, name, email)
	if err != nil {
		zap.L().Error("Failed to insert user", zap.String("email", email), zap.Error(err))
		return nil, fmt.Errorf("unable to insert user: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("unable to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, fmt.Errorf("user with email %s already exists", email)
	}

	var user models.User
	err = s.db.QueryRowContext(ctx, queryGetUserByEmail, email).Scan(
		&user.Id, &user.Name, &user.Email, &user.Active, &user.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("unable to read back created user: %w", err)
	}

	return &user, nil
}

func (s *Service) GetActivePortfolios(ctx context.Context, userId string) ([]models.Portfolio, error) {
	zap.L().Debug("Querying active portfolios", zap.String("user_id", userId))

	rows, err := s.db.QueryContext(ctx, queryGetActivePortfolios, userId)
	if err != nil {
		zap.L().Error("Failed to query portfolios", zap.String("user_id", userId), zap.Error(err))
		return nil, fmt.Errorf("unable to query portfolios: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var portfolios []models.Portfolio
	for rows.Next() {
		var p models.Portfolio
		err := rows.Scan(&p.Id, &p.UserId, &p.Name, &p.Description, &p.IsDefault, &p.Active, &p.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("unable to scan portfolio row: %w", err)
		}
		portfolios = append(portfolios, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating portfolio rows: %w", err)
	}

	return portfolios, nil
}

func (s *Service) GetPortfolio(ctx context.Context, portfolioId string) (*models.Portfolio, error) {
	var p models.Portfolio
	err := s.db.QueryRowContext(ctx, queryGetPortfolio, portfolioId).Scan(
		&p.Id, &p.UserId, &p.Name, &p.Description, &p.IsDefault, &p.Active, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("portfolio %s: %w", portfolioId, store.ErrNotFound)
		}
		zap.L().Error("Failed to query portfolio", zap.String("portfolio_id", portfolioId), zap.Error(err))
		return nil, fmt.Errorf("unable to query portfolio: %w", err)
	}

	return &p, nil
}

func (s *Service) CreatePortfolio(ctx context.Context, userId, name, description string, isDefault bool) (*models.Portfolio, error) {
	id := uuid.New().String()
	zap.L().Info("Creating portfolio",
		zap.String("id", id),
		zap.String("user_id", userId),
		zap.String("name", name))

	_, err := s.db.ExecContext(ctx, queryInsertPortfolio, id, userId, name, description, isDefault)
	if err != nil {
		zap.L().Error("Failed to insert portfolio", zap.String("user_id", userId), zap.Error(err))
		return nil, fmt.Errorf("unable to insert portfolio: %w", err)
	}

	return s.GetPortfolio(ctx, id)
}
