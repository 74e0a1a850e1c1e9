package external

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"benefitclaims/internal/types"
)

// CardClient talks to the card issuer's REST API.
type CardClient struct {
	*BaseClient
	baseURL string
	apiKey  types.SecretString
}

var _ CardIssuer = (*CardClient)(nil)

// NewCardClient creates a CardClient.
func NewCardClient(base *BaseClient, baseURL string, apiKey types.SecretString) *CardClient {
	return &CardClient{
		BaseClient: base,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
	}
}

func (c *CardClient) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + c.apiKey.Unmask()}
}

// CreateCard opens a card account.
func (c *CardClient) CreateCard(ctx context.Context, req CardRequest) (*CardResponse, error) {
	var out CardResponse
	if err := c.doJSON(ctx, http.MethodPost, c.baseURL+"/v1/cards", c.headers(), req, &out); err != nil {
		return nil, err
	}
	if out.CardAccountID == "" {
		return nil, types.NewAppError(types.ErrCodeUpstreamCardIssuer, "card issuer returned no card account id", nil)
	}
	return &out, nil
}

// GetBalance reads the card's balance.
func (c *CardClient) GetBalance(ctx context.Context, cardAccountID string) (*CardBalance, error) {
	var out CardBalance
	u := fmt.Sprintf("%s/v1/cards/%s/balance", c.baseURL, url.PathEscape(cardAccountID))
	if err := c.doJSON(ctx, http.MethodGet, u, c.headers(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Deposit loads funds onto the card.
func (c *CardClient) Deposit(ctx context.Context, req DepositRequest) (*DepositResponse, error) {
	if !req.Amount.IsPositive() {
		return nil, types.NewAppError(types.ErrCodeValidationAmount,
			fmt.Sprintf("deposit amount must be positive, got %s", req.Amount), nil)
	}
	var out DepositResponse
	u := fmt.Sprintf("%s/v1/cards/%s/deposit", c.baseURL, url.PathEscape(req.CardAccountID))
	if err := c.doJSON(ctx, http.MethodPost, u, c.headers(), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
