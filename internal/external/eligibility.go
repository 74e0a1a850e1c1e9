package external

import (
	"context"
	"net/http"
	"strings"

	"benefitclaims/internal/types"
)

// EligibilityClient talks to the eligibility service.
type EligibilityClient struct {
	*BaseClient
	baseURL string
	apiKey  types.SecretString
}

var _ EligibilityService = (*EligibilityClient)(nil)

// NewEligibilityClient creates an EligibilityClient.
func NewEligibilityClient(base *BaseClient, baseURL string, apiKey types.SecretString) *EligibilityClient {
	return &EligibilityClient{
		BaseClient: base,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
	}
}

type eligibilityRequest struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	NINO        string `json:"nino"`
	DateOfBirth string `json:"date_of_birth"`
	Postcode    string `json:"postcode"`
}

// Check asks for an eligibility verdict. An unrecognised verdict is an
// error rather than silently treated as ineligible.
func (c *EligibilityClient) Check(ctx context.Context, claimant types.Claimant) (*EligibilityResult, error) {
	req := eligibilityRequest{
		FirstName:   claimant.FirstName,
		LastName:    claimant.LastName,
		NINO:        claimant.NINO,
		DateOfBirth: claimant.DateOfBirth.Format("2006-01-02"),
		Postcode:    claimant.Postcode,
	}
	var out EligibilityResult
	err := c.doJSON(ctx, http.MethodPost, c.baseURL+"/v1/eligibility",
		map[string]string{"X-Api-Key": c.apiKey.Unmask()}, req, &out)
	if err != nil {
		return nil, err
	}

	switch out.Status {
	case types.EligibilityEligible, types.EligibilityIneligible, types.EligibilityNoMatch,
		types.EligibilityPending, types.EligibilityDuplicate:
		return &out, nil
	default:
		return nil, types.NewAppError(types.ErrCodeUpstreamEligibility,
			"unrecognised eligibility status "+string(out.Status), nil)
	}
}
