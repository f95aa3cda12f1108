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

package main

import (
	"context"
	"flag"
	"fmt"
	"regexp"

	"portfolio-sync-go/internal/common"
	"portfolio-sync-go/internal/config"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

func validateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email cannot be empty")
	}
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format: %s", email)
	}
	return nil
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if len(name) < 2 {
		return fmt.Errorf("name must be at least 2 characters")
	}
	return nil
}

func main() {
	name := flag.String("name", "", "User's display name")
	email := flag.String("email", "", "User's email address (unique)")
	portfolioName := flag.String("portfolio", "Default Portfolio", "Name of the user's first portfolio")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	if err := validateName(*name); err != nil {
		zap.L().Fatal("Invalid name", zap.Error(err))
	}
	if err := validateEmail(*email); err != nil {
		zap.L().Fatal("Invalid email", zap.Error(err))
	}

	ctx := context.Background()
	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	user, err := dbService.CreateUser(ctx, uuid.New().String(), *name, *email)
	if err != nil {
		zap.L().Fatal("Failed to create user", zap.Error(err))
	}

	portfolio, err := dbService.CreatePortfolio(ctx, user.Id, *portfolioName, "", true)
	if err != nil {
		zap.L().Fatal("Failed to create portfolio", zap.Error(err))
	}

	fmt.Printf("User created:      %s (%s)\n", user.Id, user.Email)
	fmt.Printf("Portfolio created: %s (%s)\n", portfolio.Id, portfolio.Name)
}
