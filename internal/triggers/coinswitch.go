package triggers

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"portfolio-sync-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	coinSwitchTimePath      = "/trade/api/v2/time"
	coinSwitchPortfolioPath = "/trade/api/v2/user/portfolio"
)

// Compile-time check: *CoinSwitchTrigger must satisfy Trigger.
var _ Trigger = (*CoinSwitchTrigger)(nil)

// CoinSwitchTrigger fetches holdings from CoinSwitch PRO. Authentication is
// stateless: every request is signed with the account's durable Ed25519
// private key over method + path + server epoch, so no token cache is
// involved.
type CoinSwitchTrigger struct {
	account    *models.BrokerAccount
	httpClient *http.Client
	baseURL    string
}

// NewCoinSwitchFactory returns the factory registered under the
// "coinswitch" broker type code.
func NewCoinSwitchFactory(baseURL string, httpClient *http.Client) Factory {
	return func(account *models.BrokerAccount) (Trigger, error) {
		return &CoinSwitchTrigger{
			account:    account,
			httpClient: httpClient,
			baseURL:    baseURL,
		}, nil
	}
}

// serverTimeResponse is the /time payload; epoch milliseconds.
type serverTimeResponse struct {
	ServerTime int64 `json:"serverTime"`
}

// coinSwitchPosition mirrors one portfolio row. The API serves most numbers
// as quoted strings, so the numeric fields use flexNumber.
type coinSwitchPosition struct {
	Currency        string     `json:"currency"`
	MainBalance     flexNumber `json:"main_balance"`
	BuyAveragePrice flexNumber `json:"buy_average_price"`
	SellRate        flexNumber `json:"sell_rate"`
	BuyRate         flexNumber `json:"buy_rate"`
	CurrentValue    flexNumber `json:"current_value"`
}

// flexNumber decodes a JSON number whether it arrives quoted, bare or null.
type flexNumber string

func (n *flexNumber) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "null" {
		s = ""
	}
	*n = flexNumber(s)
	return nil
}

func (t *CoinSwitchTrigger) FetchHoldings(ctx context.Context) (*models.Snapshot, error) {
	creds := t.account.Credential.DecodedCredentials()
	apiKey := creds["api_key"]
	secretKeyHex := creds["secret_key_hex"]
	if secretKeyHex == "" {
		secretKeyHex = creds["secret_key"]
	}
	if apiKey == "" {
		return nil, fmt.Errorf("api_key missing in broker credentials for account %s", t.account.Id)
	}
	if secretKeyHex == "" {
		return nil, fmt.Errorf("secret_key_hex missing in broker credentials for account %s", t.account.Id)
	}

	epochMs, err := t.fetchServerTime(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to fetch coinswitch server time: %w", err)
	}

	signature, err := signRequest(secretKeyHex, http.MethodGet, coinSwitchPortfolioPath, epochMs)
	if err != nil {
		return nil, fmt.Errorf("unable to sign coinswitch request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+coinSwitchPortfolioPath, nil)
	if err != nil {
		return nil, fmt.Errorf("unable to build coinswitch request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-AUTH-APIKEY", apiKey)
	req.Header.Set("X-AUTH-SIGNATURE", signature)
	req.Header.Set("X-AUTH-EPOCH", epochMs)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coinswitch portfolio request failed: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			zap.L().Warn("Failed to close response body", zap.Error(err))
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("unable to read coinswitch response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		zap.L().Error("CoinSwitch portfolio request returned non-200",
			zap.String("broker_account_id", t.account.Id),
			zap.Int("status", resp.StatusCode))
		return nil, fmt.Errorf("coinswitch portfolio request returned status %d", resp.StatusCode)
	}

	var payload struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.Data == nil {
		zap.L().Error("Unexpected CoinSwitch portfolio format",
			zap.String("broker_account_id", t.account.Id),
			zap.ByteString("body", truncate(body, 512)))
		return nil, fmt.Errorf("unexpected coinswitch portfolio format")
	}

	now := time.Now().UTC()
	return &models.Snapshot{
		Records:     normalizeCoinSwitchPositions(payload.Data, now),
		FetchedAt:   now,
		TokenSource: "broker_credentials",
	}, nil
}

func (t *CoinSwitchTrigger) fetchServerTime(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+coinSwitchTimePath, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			zap.L().Warn("Failed to close response body", zap.Error(err))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("time endpoint returned status %d", resp.StatusCode)
	}

	var st serverTimeResponse
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return "", fmt.Errorf("unable to decode server time: %w", err)
	}

	return fmt.Sprintf("%d", st.ServerTime), nil
}

// signRequest signs method + path + epoch with the hex-encoded Ed25519 seed
// and returns the hex signature, per the CoinSwitch auth scheme.
func signRequest(secretKeyHex, method, path, epochMs string) (string, error) {
	seed, err := hex.DecodeString(secretKeyHex)
	if err != nil {
		return "", fmt.Errorf("secret key is not valid hex: %w", err)
	}

	var key ed25519.PrivateKey
	switch len(seed) {
	case ed25519.SeedSize:
		key = ed25519.NewKeyFromSeed(seed)
	case ed25519.PrivateKeySize:
		key = ed25519.PrivateKey(seed)
	default:
		return "", fmt.Errorf("secret key has unexpected length %d", len(seed))
	}

	message := []byte(method + path + epochMs)
	return hex.EncodeToString(ed25519.Sign(key, message)), nil
}

func normalizeCoinSwitchPositions(raw []json.RawMessage, now time.Time) []models.HoldingRecord {
	records := make([]models.HoldingRecord, 0, len(raw))
	for _, item := range raw {
		var pos coinSwitchPosition
		if err := json.Unmarshal(item, &pos); err != nil {
			zap.L().Warn("Skipping malformed coinswitch position",
				zap.ByteString("item", truncate(item, 256)),
				zap.Error(err))
			continue
		}

		// The INR row is a fiat balance summary, not a position.
		if pos.Currency == "" || pos.Currency == "INR" {
			continue
		}

		quantity := decimalFromNumber(pos.MainBalance)
		avgPrice := decimalFromNumber(pos.BuyAveragePrice)

		// Last price preference: sell_rate, then buy_rate, then inferred
		// from current_value / quantity.
		lastPrice := decimalFromNumber(pos.SellRate)
		if lastPrice.IsZero() {
			lastPrice = decimalFromNumber(pos.BuyRate)
		}
		if lastPrice.IsZero() && !quantity.IsZero() {
			lastPrice = decimalFromNumber(pos.CurrentValue).Div(quantity)
		}

		records = append(records, models.HoldingRecord{
			Symbol:           pos.Currency,
			Isin:             "",
			AssetType:        "crypto",
			Quantity:         quantity,
			AvgPrice:         avgPrice,
			LastPrice:        lastPrice,
			ClosePrice:       nil,
			Currency:         "INR",
			AsOf:             now,
			SourceSnapshotId: pos.Currency,
			Meta:             item,
		})
	}
	return records
}

func decimalFromNumber(n flexNumber) decimal.Decimal {
	if n == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(string(n))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
