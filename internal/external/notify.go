package external

import (
	"context"
	"net/http"
	"strings"

	"benefitclaims/internal/types"
)

// NotifyClient sends SMS and letters through the notification gateway.
type NotifyClient struct {
	*BaseClient
	baseURL string
	apiKey  types.SecretString
}

var _ Notifier = (*NotifyClient)(nil)

// NewNotifyClient creates a NotifyClient.
func NewNotifyClient(base *BaseClient, baseURL string, apiKey types.SecretString) *NotifyClient {
	return &NotifyClient{
		BaseClient: base,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
	}
}

type notificationResponse struct {
	ID string `json:"id"`
}

func (c *NotifyClient) send(ctx context.Context, path string, body any) (string, error) {
	var out notificationResponse
	err := c.doJSON(ctx, http.MethodPost, c.baseURL+path,
		map[string]string{"Authorization": "Bearer " + c.apiKey.Unmask()}, body, &out)
	if err != nil {
		return "", err
	}
	return out.ID, nil
}

// SendText sends an SMS.
func (c *NotifyClient) SendText(ctx context.Context, req TextRequest) (string, error) {
	if req.PhoneNumber == "" {
		return "", types.NewAppError(types.ErrCodeValidationMissingField, "phone number is required", nil)
	}
	return c.send(ctx, "/v2/notifications/sms", req)
}

// SendLetter sends a letter. The address lines travel in Personalisation
// as address_line_1..n.
func (c *NotifyClient) SendLetter(ctx context.Context, req LetterRequest) (string, error) {
	if req.Personalisation["address_line_1"] == "" {
		return "", types.NewAppError(types.ErrCodeValidationMissingField, "letter address is required", nil)
	}
	return c.send(ctx, "/v2/notifications/letter", req)
}
