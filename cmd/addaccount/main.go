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
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"portfolio-sync-go/internal/common"
	"portfolio-sync-go/internal/config"
	"portfolio-sync-go/internal/store"

	"go.uber.org/zap"
)

func main() {
	portfolioId := flag.String("portfolio-id", "", "Portfolio to attach the account to")
	brokerCode := flag.String("broker", "", "Broker type code (e.g. zerodha, coinswitch)")
	externalId := flag.String("external-id", "", "Account identifier at the broker")
	displayName := flag.String("display-name", "", "Optional display name")
	credsJson := flag.String("credentials", "", "Credential payload as inline JSON")
	credsFile := flag.String("credentials-file", "", "Path to a JSON file with the credential payload")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	if *portfolioId == "" || *brokerCode == "" || *externalId == "" {
		zap.L().Fatal("Flags -portfolio-id, -broker and -external-id are required")
	}

	payload := []byte(*credsJson)
	if *credsFile != "" {
		payload, err = os.ReadFile(*credsFile)
		if err != nil {
			zap.L().Fatal("Failed to read credentials file", zap.Error(err))
		}
	}
	if len(payload) > 0 && !json.Valid(payload) {
		zap.L().Fatal("Credential payload is not valid JSON")
	}

	ctx := context.Background()
	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	// The catalog seeds broker types; make sure the code exists before
	// creating an account that references it.
	catalog, err := config.LoadBrokerCatalog(cfg.Brokers.CatalogFile)
	if err == nil {
		if err := dbService.SeedBrokerTypes(ctx, catalog); err != nil {
			zap.L().Fatal("Failed to seed broker types", zap.Error(err))
		}
	}

	if _, err := dbService.GetPortfolio(ctx, *portfolioId); err != nil {
		zap.L().Fatal("Portfolio lookup failed", zap.Error(err))
	}

	account, err := dbService.CreateBrokerAccount(ctx, store.CreateBrokerAccountParams{
		PortfolioId:       *portfolioId,
		BrokerTypeCode:    *brokerCode,
		ExternalAccountId: *externalId,
		DisplayName:       *displayName,
	})
	if err != nil {
		zap.L().Fatal("Failed to create broker account", zap.Error(err))
	}

	if len(payload) > 0 {
		err := dbService.UpsertCredential(ctx, store.UpsertCredentialParams{
			BrokerAccountId: account.Id,
			Credentials:     payload,
		})
		if err != nil {
			zap.L().Fatal("Failed to store credential", zap.Error(err))
		}
	}

	fmt.Printf("Broker account created: %s (%s/%s)\n", account.Id, *brokerCode, *externalId)
}
