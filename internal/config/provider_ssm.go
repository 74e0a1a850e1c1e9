package config

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// GetParameters accepts at most ten names per request.
const ssmNamesPerRequest = 10

type ssmClient interface {
	GetParameters(ctx context.Context, params *ssm.GetParametersInput, optFns ...func(*ssm.Options)) (*ssm.GetParametersOutput, error)
}

// SSMProvider reads claim-engine secrets from Parameter Store. SecureString
// values are decrypted.
type SSMProvider struct {
	region string

	once    sync.Once
	client  ssmClient
	initErr error
}

func NewSSMProvider(region string) *SSMProvider {
	return &SSMProvider{region: region}
}

func newSSMProviderWithClient(region string, client ssmClient) *SSMProvider {
	p := &SSMProvider{region: region, client: client}
	p.once.Do(func() {})
	return p
}

func (p *SSMProvider) sdkClient(ctx context.Context) (ssmClient, error) {
	p.once.Do(func() {
		cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(p.region))
		if err != nil {
			p.initErr = fmt.Errorf("ssm provider: aws config for region %q: %w", p.region, err)
			return
		}
		p.client = ssm.NewFromConfig(cfg)
	})
	return p.client, p.initErr
}

// GetParametersBatch resolves every key or fails. Names SSM does not know are
// collected across all requests and reported together.
func (p *SSMProvider) GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error) {
	values := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return values, nil
	}

	client, err := p.sdkClient(ctx)
	if err != nil {
		return nil, err
	}

	var missing []string
	for names := range slices.Chunk(keys, ssmNamesPerRequest) {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("ssm provider: %d of %d parameters read: %w", len(values), len(keys), err)
		}

		out, err := client.GetParameters(ctx, &ssm.GetParametersInput{
			Names:          names,
			WithDecryption: aws.Bool(true),
		})
		if err != nil {
			return nil, fmt.Errorf("ssm provider: get %s: %w", strings.Join(names, ","), err)
		}

		for _, param := range out.Parameters {
			if param.Name == nil || param.Value == nil {
				continue
			}
			values[*param.Name] = *param.Value
		}
		missing = append(missing, out.InvalidParameters...)
	}

	if len(missing) > 0 {
		slices.Sort(missing)
		return nil, fmt.Errorf("ssm provider: parameters not found: %s", strings.Join(slices.Compact(missing), ", "))
	}
	return values, nil
}
