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

package config

import (
	"fmt"
	"os"

	"portfolio-sync-go/internal/models"

	"gopkg.in/yaml.v2"
)

type brokerCatalogFile struct {
	Brokers []brokerCatalogEntry `yaml:"brokers"`
}

type brokerCatalogEntry struct {
	Code        string `yaml:"code"`
	DisplayName string `yaml:"display_name"`
}

// LoadBrokerCatalog reads the broker type catalog from a YAML file. The
// catalog seeds the broker_types table at worker startup.
func LoadBrokerCatalog(path string) ([]models.BrokerType, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read broker catalog %s: %w", path, err)
	}

	var file brokerCatalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("unable to parse broker catalog %s: %w", path, err)
	}

	types := make([]models.BrokerType, 0, len(file.Brokers))
	for _, entry := range file.Brokers {
		if entry.Code == "" {
			return nil, fmt.Errorf("broker catalog %s contains an entry without a code", path)
		}
		displayName := entry.DisplayName
		if displayName == "" {
			displayName = entry.Code
		}
		types = append(types, models.BrokerType{Code: entry.Code, DisplayName: displayName})
	}

	return types, nil
}
