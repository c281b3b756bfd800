// Package awsboot holds the shared AWS bootstrap used by both entry points:
// SDK config, the S3 media store, the DynamoDB posts table, the EventBridge
// notifier, and the JWT signing key from SSM Parameter Store.
package awsboot

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"

	"github.com/fpang/create-post-pipeline/internal/events"
	"github.com/fpang/create-post-pipeline/internal/identity"
	"github.com/fpang/create-post-pipeline/internal/logging"
	"github.com/fpang/create-post-pipeline/internal/storage"
	"github.com/fpang/create-post-pipeline/internal/store"
)

// Clients holds the loaded AWS config and the SSM client.
type Clients struct {
	Config aws.Config
	SSM    *ssm.Client
}

// InitAWS loads the default AWS config.
func InitAWS(ctx context.Context) (Clients, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return Clients{}, fmt.Errorf("load AWS config: %w", err)
	}
	log.Debug().Str("region", cfg.Region).Msg("AWS config loaded")
	return Clients{Config: cfg, SSM: ssm.NewFromConfig(cfg)}, nil
}

// InitS3 creates the S3 media store for bucket, with a presigner.
func InitS3(cfg aws.Config, bucket, baseURL string) *storage.S3Store {
	client := s3.NewFromConfig(cfg)
	return storage.NewS3Store(client, bucket, cfg.Region, baseURL).
		WithPresigner(s3.NewPresignClient(client))
}

// InitDynamo creates the DynamoDB document store for table.
func InitDynamo(cfg aws.Config, table string) *store.DynamoStore {
	return store.NewDynamoStore(dynamodb.NewFromConfig(cfg), table)
}

// InitEventBridge creates a notifier for bus; "default" selects the
// account's default bus.
func InitEventBridge(cfg aws.Config, bus string) *events.EventBridgeNotifier {
	if bus == "default" {
		bus = ""
	}
	return events.NewEventBridgeNotifier(eventbridge.NewFromConfig(cfg), bus)
}

// ParameterAPI is the subset of *ssm.Client used by LoadSigningKey.
type ParameterAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// LoadSigningKey returns the JWT signing key. CREATE_JWT_SECRET wins;
// otherwise the SecureString parameter param is read and decrypted.
func LoadSigningKey(ctx context.Context, client ParameterAPI, param string) ([]byte, error) {
	if key := os.Getenv(identity.SigningKeyEnvVar); key != "" {
		return []byte(key), nil
	}
	if client == nil {
		return nil, fmt.Errorf("%w: no SSM client", identity.ErrNoSigningKey)
	}

	start := time.Now()
	result, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(param),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("read signing key %s from SSM: %w", param, err)
	}
	if result.Parameter == nil || aws.ToString(result.Parameter.Value) == "" {
		return nil, fmt.Errorf("%w: SSM parameter %s is empty", identity.ErrNoSigningKey, param)
	}
	log.Debug().Str("param", param).Dur("elapsed", time.Since(start)).Msg("Signing key loaded from SSM")
	return []byte(aws.ToString(result.Parameter.Value)), nil
}

// StartupLog is a convenience wrapper for the startup logger.
func StartupLog(name string, initStart time.Time) *logging.StartupLogger {
	return logging.NewStartupLogger(name).InitDuration(time.Since(initStart))
}
