package aws

import (
	"context"
	"fmt"
	"strings"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
)

// DefaultRegion is used when no region is configured.
const DefaultRegion = "us-east-1"

// Settings selects the region and, for local stacks such as LocalStack,
// an endpoint that replaces every service's default endpoint.
type Settings struct {
	Region           string
	EndpointOverride string
}

func LoadAWSConfig(ctx context.Context, s Settings) (sdkaws.Config, error) {
	region := strings.TrimSpace(s.Region)
	if region == "" {
		region = DefaultRegion // default fallback
	}

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
	)
	if err != nil {
		return cfg, fmt.Errorf("failed to load AWS config: %w", err)
	}

	if ep := strings.TrimSpace(s.EndpointOverride); ep != "" {
		cfg.BaseEndpoint = sdkaws.String(ep)
	}

	return cfg, nil
}
