package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	domainerrors "courtpay/contexts/settlement-core/payment-group-service/domain/errors"
)

// OrgLookupClient resolves case types against the organisational reference
// data service.
type OrgLookupClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewOrgLookupClient(baseURL string) OrgLookupClient {
	return OrgLookupClient{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type orgServiceBody struct {
	ServiceCode string `json:"service_code"`
}

func (c OrgLookupClient) ServiceCodeForCaseType(ctx context.Context, caseType string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.BaseURL+"/refdata/services?ccd_case_type="+url.QueryEscape(caseType), nil)
	if err != nil {
		return "", err
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", domainerrors.ErrGatewayTimeout
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return "", domainerrors.ErrGatewayTimeout
		}
		return "", err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", domainerrors.ErrNoServiceFound
	case resp.StatusCode >= http.StatusInternalServerError:
		return "", domainerrors.ErrGatewayTimeout
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("org lookup returned status %d", resp.StatusCode)
	}

	var parsed []orgServiceBody
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}
	if len(parsed) == 0 || parsed[0].ServiceCode == "" {
		return "", domainerrors.ErrNoServiceFound
	}
	return parsed[0].ServiceCode, nil
}
