package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	domainerrors "courtpay/contexts/settlement-core/settlement-service/domain/errors"
	"courtpay/contexts/settlement-core/settlement-service/ports"

	"github.com/shopspring/decimal"
)

// AccountClient resolves credit account state from the accounts service.
type AccountClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewAccountClient(baseURL string) AccountClient {
	return AccountClient{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type accountBody struct {
	AccountNumber    string          `json:"account_number"`
	AccountName      string          `json:"account_name"`
	Status           string          `json:"status"`
	AvailableBalance decimal.Decimal `json:"available_balance"`
}

func (c AccountClient) GetAccount(ctx context.Context, pbaAccountNumber string) (ports.AccountInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.BaseURL+"/accounts/"+url.PathEscape(pbaAccountNumber), nil)
	if err != nil {
		return ports.AccountInfo{}, err
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return ports.AccountInfo{}, mapTransportError(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ports.AccountInfo{}, domainerrors.ErrAccountNotFound
	case resp.StatusCode >= http.StatusInternalServerError:
		return ports.AccountInfo{}, domainerrors.ErrGatewayUnavailable
	case resp.StatusCode != http.StatusOK:
		return ports.AccountInfo{}, fmt.Errorf("accounts service returned status %d", resp.StatusCode)
	}

	var parsed accountBody
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return ports.AccountInfo{}, err
	}
	return ports.AccountInfo{
		AccountNumber:    parsed.AccountNumber,
		AccountName:      parsed.AccountName,
		Status:           ports.AccountStatus(parsed.Status),
		AvailableBalance: parsed.AvailableBalance,
	}, nil
}
