package triggers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"portfolio-sync-go/internal/credentials"
	"portfolio-sync-go/internal/models"

	"github.com/shopspring/decimal"
	kiteconnect "github.com/zerodha/gokiteconnect/v4"
	"go.uber.org/zap"
)

// Compile-time check: *ZerodhaTrigger must satisfy Trigger.
var _ Trigger = (*ZerodhaTrigger)(nil)

// ZerodhaTrigger fetches holdings from Zerodha's Kite API. Kite access
// tokens are short-lived and minted by an interactive login flow outside
// this service, so every fetch resolves the current token from the
// credential cache; the database credential only backs up api_key and
// api_secret.
type ZerodhaTrigger struct {
	account    *models.BrokerAccount
	resolver   *credentials.Resolver
	baseURL    string
	httpClient *http.Client
}

// NewZerodhaFactory returns the factory registered under the "zerodha"
// broker type code. An empty baseURL keeps the SDK's default endpoint.
func NewZerodhaFactory(resolver *credentials.Resolver, baseURL string, httpClient *http.Client) Factory {
	return func(account *models.BrokerAccount) (Trigger, error) {
		return &ZerodhaTrigger{
			account:    account,
			resolver:   resolver,
			baseURL:    baseURL,
			httpClient: httpClient,
		}, nil
	}
}

func (t *ZerodhaTrigger) FetchHoldings(ctx context.Context) (*models.Snapshot, error) {
	bundle, err := t.resolver.ResolveToken(ctx, t.account)
	if err != nil {
		if errors.Is(err, credentials.ErrCredentialMissing) || errors.Is(err, credentials.ErrCredentialExpired) {
			return nil, fmt.Errorf("kite access token unavailable, regenerate it with the kite token bootstrap flow: %w", err)
		}
		return nil, err
	}
	if bundle.ApiKey == "" {
		return nil, fmt.Errorf("api_key missing in both token cache and durable credentials for broker account %s", t.account.Id)
	}

	kc := kiteconnect.New(bundle.ApiKey)
	if t.baseURL != "" {
		kc.SetBaseURI(t.baseURL)
	}
	if t.httpClient != nil {
		kc.SetHTTPClient(t.httpClient)
	}
	kc.SetAccessToken(bundle.AccessToken)

	holdings, err := kc.GetHoldings()
	if err != nil {
		zap.L().Error("Kite holdings request failed",
			zap.String("broker_account_id", t.account.Id),
			zap.Error(err))
		return nil, fmt.Errorf("unable to fetch kite holdings: %w", err)
	}

	now := time.Now().UTC()
	return &models.Snapshot{
		Records:     normalizeKiteHoldings(holdings, now),
		FetchedAt:   now,
		TokenSource: bundle.Source,
	}, nil
}

func normalizeKiteHoldings(holdings kiteconnect.Holdings, now time.Time) []models.HoldingRecord {
	records := make([]models.HoldingRecord, 0, len(holdings))
	for _, h := range holdings {
		if h.Tradingsymbol == "" {
			continue
		}

		var closePrice *decimal.Decimal
		if h.ClosePrice != 0 {
			cp := decimal.NewFromFloat(h.ClosePrice)
			closePrice = &cp
		}

		meta, err := json.Marshal(h)
		if err != nil {
			meta = nil
		}

		records = append(records, models.HoldingRecord{
			Symbol:           h.Tradingsymbol,
			Isin:             h.ISIN,
			AssetType:        "equity",
			Quantity:         decimal.NewFromInt(int64(h.Quantity)),
			AvgPrice:         decimal.NewFromFloat(h.AveragePrice),
			LastPrice:        decimal.NewFromFloat(h.LastPrice),
			ClosePrice:       closePrice,
			Currency:         "INR",
			AsOf:             now,
			SourceSnapshotId: strconv.FormatUint(uint64(h.InstrumentToken), 10),
			Meta:             meta,
		})
	}
	return records
}
