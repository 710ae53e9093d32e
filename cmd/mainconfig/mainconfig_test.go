package mainconfig

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	appconfig "github.com/wolfman30/guardian-ai/internal/config"
)

func TestNeedsAWS(t *testing.T) {
	if NeedsAWS(&appconfig.Config{}) {
		t.Fatalf("expected no AWS without bucket, sender or model")
	}
	if !NeedsAWS(&appconfig.Config{EvidenceBucket: "evidence"}) {
		t.Fatalf("expected AWS for evidence bucket")
	}
}

func TestLoadAWSConfigEndpointOverride(t *testing.T) {
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")
	cfg := &appconfig.Config{
		AWSRegion:           "us-east-1",
		AWSAccessKeyID:      "test",
		AWSSecretAccessKey:  "test",
		AWSEndpointOverride: "http://localhost:4566",
	}
	awsCfg, err := LoadAWSConfig(context.Background(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if awsCfg.Region != "us-east-1" {
		t.Fatalf("expected region, got %s", awsCfg.Region)
	}

	ep, err := awsCfg.EndpointResolverWithOptions.ResolveEndpoint(s3.ServiceID, "us-east-1")
	if err != nil || ep.URL != "http://localhost:4566" {
		t.Fatalf("expected s3 override, got %+v / %v", ep, err)
	}
	if _, err := awsCfg.EndpointResolverWithOptions.ResolveEndpoint("DynamoDB", "us-east-1"); err == nil {
		t.Fatalf("expected unrelated services to keep default endpoints")
	}
}
