package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	domainerrors "courtpay/contexts/settlement-core/settlement-service/domain/errors"
	"courtpay/contexts/settlement-core/settlement-service/ports"

	"github.com/shopspring/decimal"
)

// GatewayClient talks to the downstream card payment gateway over REST and
// maps transport failures to the typed gateway errors.
type GatewayClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewGatewayClient(baseURL string) GatewayClient {
	return GatewayClient{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type gatewayPaymentBody struct {
	PaymentID string `json:"payment_id"`
	State     struct {
		Status string `json:"status"`
	} `json:"state"`
	Amount int64 `json:"amount"`
	Links  struct {
		NextURL struct {
			Href string `json:"href"`
		} `json:"next_url"`
	} `json:"_links"`
}

func (c GatewayClient) CreatePayment(ctx context.Context, input ports.CreateGatewayPaymentInput) (ports.GatewayPayment, error) {
	body, err := json.Marshal(map[string]any{
		// The gateway expects amounts in pence.
		"amount":      input.Amount.Mul(decimal.NewFromInt(100)).IntPart(),
		"currency":    input.Currency,
		"description": input.Description,
		"return_url":  input.ReturnURL,
		"language":    input.Language,
	})
	if err != nil {
		return ports.GatewayPayment{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/payments", bytes.NewReader(body))
	if err != nil {
		return ports.GatewayPayment{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return ports.GatewayPayment{}, mapTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return ports.GatewayPayment{}, domainerrors.ErrGatewayUnavailable
	}
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return ports.GatewayPayment{}, fmt.Errorf("gateway create returned status %d", resp.StatusCode)
	}

	var parsed gatewayPaymentBody
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return ports.GatewayPayment{}, err
	}
	return toGatewayPayment(parsed), nil
}

func (c GatewayClient) RetrievePayment(ctx context.Context, externalReference string) (ports.GatewayPayment, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.BaseURL+"/v1/payments/"+url.PathEscape(externalReference), nil)
	if err != nil {
		return ports.GatewayPayment{}, err
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return ports.GatewayPayment{}, mapTransportError(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ports.GatewayPayment{}, domainerrors.ErrGatewayNotFound
	case resp.StatusCode >= http.StatusInternalServerError:
		return ports.GatewayPayment{}, domainerrors.ErrGatewayUnavailable
	case resp.StatusCode != http.StatusOK:
		return ports.GatewayPayment{}, fmt.Errorf("gateway retrieve returned status %d", resp.StatusCode)
	}

	var parsed gatewayPaymentBody
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return ports.GatewayPayment{}, err
	}
	return toGatewayPayment(parsed), nil
}

func (c GatewayClient) CancelPayment(ctx context.Context, externalReference string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.BaseURL+"/v1/payments/"+url.PathEscape(externalReference)+"/cancel", nil)
	if err != nil {
		return err
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return mapTransportError(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domainerrors.ErrGatewayNotFound
	case resp.StatusCode >= http.StatusInternalServerError:
		return domainerrors.ErrGatewayUnavailable
	case resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK:
		return fmt.Errorf("gateway cancel returned status %d", resp.StatusCode)
	}
	return nil
}

func toGatewayPayment(parsed gatewayPaymentBody) ports.GatewayPayment {
	return ports.GatewayPayment{
		ExternalReference: parsed.PaymentID,
		Status:            parsed.State.Status,
		Amount:            decimal.NewFromInt(parsed.Amount).Div(decimal.NewFromInt(100)),
		NextURL:           parsed.Links.NextURL.Href,
	}
}

func mapTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return domainerrors.ErrGatewayTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domainerrors.ErrGatewayTimeout
	}
	return domainerrors.ErrGatewayUnavailable
}
