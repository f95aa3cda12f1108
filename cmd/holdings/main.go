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

// Read-only view of a portfolio's synced holdings.
package main

import (
	"context"
	"flag"
	"fmt"

	"portfolio-sync-go/internal/common"
	"portfolio-sync-go/internal/config"

	"go.uber.org/zap"
)

func main() {
	portfolioId := flag.String("portfolio-id", "", "Portfolio to display")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	if *portfolioId == "" {
		zap.L().Fatal("Flag -portfolio-id is required")
	}

	ctx := context.Background()
	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	portfolio, err := dbService.GetPortfolio(ctx, *portfolioId)
	if err != nil {
		zap.L().Fatal("Portfolio lookup failed", zap.Error(err))
	}

	holdings, err := dbService.GetHoldings(ctx, portfolio.Id)
	if err != nil {
		zap.L().Fatal("Failed to load holdings", zap.Error(err))
	}

	fmt.Printf("Holdings for portfolio %q (%d positions)\n\n", portfolio.Name, len(holdings))
	fmt.Printf("%-16s %-8s %16s %14s %14s %16s %16s\n",
		"SYMBOL", "TYPE", "QUANTITY", "AVG PRICE", "LAST PRICE", "COST VALUE", "MARKET VALUE")
	for _, h := range holdings {
		fmt.Printf("%-16s %-8s %16s %14s %14s %16s %16s\n",
			h.Symbol, h.AssetType,
			h.Quantity.String(), h.AvgPrice.StringFixed(2), h.LastPrice.StringFixed(2),
			h.CostValue().StringFixed(2), h.MarketValue().StringFixed(2))
	}
}
