package external

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	sestypes "github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"benefitclaims/internal/types"
)

// mockSESAPI implements SESAPI for testing.
type mockSESAPI struct {
	sendEmailFunc func(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

func (m *mockSESAPI) SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	return m.sendEmailFunc(ctx, params, optFns...)
}

func TestSESSend_Success(t *testing.T) {
	var captured *sesv2.SendEmailInput
	api := &mockSESAPI{
		sendEmailFunc: func(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
			captured = params
			return &sesv2.SendEmailOutput{MessageId: aws.String("ses-1")}, nil
		},
	}
	client := NewSESClientWithAPI(api, SESClientConfig{
		FromAddress:   "no-reply@example.gov.uk",
		FromName:      "Benefit Claims",
		ConfigSetName: "claims-tracking",
	})

	id, err := client.Send(context.Background(), EmailInput{
		To:           "ann@example.com",
		TemplateName: "new-card",
		TemplateData: map[string]string{"first_name": "Ann"},
		ReferenceID:  "msg-1",
	})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if id != "ses-1" {
		t.Errorf("message id = %q", id)
	}

	if got := aws.ToString(captured.FromEmailAddress); got != "Benefit Claims <no-reply@example.gov.uk>" {
		t.Errorf("from = %q", got)
	}
	if got := captured.Destination.ToAddresses; len(got) != 1 || got[0] != "ann@example.com" {
		t.Errorf("to = %v", got)
	}
	if got := aws.ToString(captured.Content.Template.TemplateName); got != "new-card" {
		t.Errorf("template = %q", got)
	}
	if got := aws.ToString(captured.Content.Template.TemplateData); got != `{"first_name":"Ann"}` {
		t.Errorf("template data = %q", got)
	}
	if got := aws.ToString(captured.ConfigurationSetName); got != "claims-tracking" {
		t.Errorf("configuration set = %q", got)
	}
	if len(captured.EmailTags) != 1 || aws.ToString(captured.EmailTags[0].Value) != "msg-1" {
		t.Errorf("tags = %+v", captured.EmailTags)
	}
}

func TestSESSend_Validation(t *testing.T) {
	client := NewSESClientWithAPI(&mockSESAPI{}, SESClientConfig{FromAddress: "a@b.c"})

	if _, err := client.Send(context.Background(), EmailInput{TemplateName: "x"}); err == nil {
		t.Error("expected error for missing recipient")
	}
	if _, err := client.Send(context.Background(), EmailInput{To: "a@b.c"}); err == nil {
		t.Error("expected error for missing template")
	}
}

func TestSESSend_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want types.ErrorCode
	}{
		{"rejected", &sestypes.MessageRejected{Message: aws.String("bad address")}, types.ErrCodeUpstreamRejected},
		{"throttled", &sestypes.TooManyRequestsException{Message: aws.String("slow down")}, types.ErrCodeUpstreamRateLimited},
		{"paused", &sestypes.SendingPausedException{Message: aws.String("paused")}, types.ErrCodeUpstreamUnavailable},
		{"other", errors.New("boom"), types.ErrCodeUpstreamEmailProvider},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &mockSESAPI{
				sendEmailFunc: func(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
					return nil, tt.err
				},
			}
			client := NewSESClientWithAPI(api, SESClientConfig{FromAddress: "a@b.c"})

			_, err := client.Send(context.Background(), EmailInput{To: "x@y.z", TemplateName: "t"})

			var appErr *types.AppError
			if !errors.As(err, &appErr) {
				t.Fatalf("expected *types.AppError, got %T", err)
			}
			if appErr.Code != tt.want {
				t.Errorf("code = %s, want %s", appErr.Code, tt.want)
			}
		})
	}
}
