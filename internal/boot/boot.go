// Package boot provides the startup wiring shared by the approval-bot
// subcommands: AWS config, SSM secret fetch, pending-store selection and
// outcome sinks. Each helper takes the already-validated config so main
// stays a short composition of calls.
package boot

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"

	"github.com/Sahanuj/telegram-post-approve/internal/config"
	"github.com/Sahanuj/telegram-post-approve/internal/outcome"
	"github.com/Sahanuj/telegram-post-approve/internal/store"
)

// NeedsAWS reports whether any configured component talks to AWS.
func NeedsAWS(cfg *config.Config) bool {
	return cfg.Store.Backend == config.BackendDynamo ||
		cfg.Outcomes.EventBus != "" ||
		cfg.Outcomes.ArchiveBucket != "" ||
		(cfg.BotToken == "" && cfg.BotTokenParam != "") ||
		(cfg.WebhookSecret == "" && cfg.WebhookSecretParam != "")
}

// InitAWS loads the default AWS config (env, shared profile, instance role).
func InitAWS(ctx context.Context) (aws.Config, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load AWS config: %w", err)
	}
	log.Debug().Str("region", cfg.Region).Msg("AWS config loaded")
	return cfg, nil
}

type ssmAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// LoadSecret returns value if already set, otherwise the decrypted SSM
// parameter named param. Both empty yields "".
func LoadSecret(ctx context.Context, client ssmAPI, value, param string) (string, error) {
	if value != "" || param == "" {
		return value, nil
	}
	start := time.Now()
	result, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(param),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("read SSM parameter %s: %w", param, err)
	}
	if result.Parameter == nil || result.Parameter.Value == nil {
		return "", fmt.Errorf("SSM parameter %s has no value", param)
	}
	log.Debug().Str("param", param).Dur("elapsed", time.Since(start)).Msg("Secret loaded from SSM")
	return *result.Parameter.Value, nil
}

// ResolveSecrets fills the bot token and webhook secret from SSM where only
// a parameter name was configured.
func ResolveSecrets(ctx context.Context, client ssmAPI, cfg *config.Config) error {
	token, err := LoadSecret(ctx, client, cfg.BotToken, cfg.BotTokenParam)
	if err != nil {
		return err
	}
	if token == "" {
		return fmt.Errorf("bot token is empty")
	}
	cfg.BotToken = token

	secret, err := LoadSecret(ctx, client, cfg.WebhookSecret, cfg.WebhookSecretParam)
	if err != nil {
		return err
	}
	cfg.WebhookSecret = secret
	return nil
}

// OpenStore constructs the configured pending-store backend. The returned
// close function releases its connections and is never nil. awsCfg is only
// consulted for the dynamo backend.
func OpenStore(ctx context.Context, cfg config.StoreConfig, awsCfg aws.Config) (store.PendingStore, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Backend {
	case config.BackendMemory:
		log.Warn().Msg("Memory store selected; pending submissions are lost on restart")
		return store.NewMemoryStore(), noop, nil

	case config.BackendSQLite:
		s, err := store.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil

	case config.BackendDynamo:
		return store.NewDynamoStore(dynamodb.NewFromConfig(awsCfg), cfg.DynamoTable, cfg.TTL), noop, nil

	case config.BackendRedis:
		s, err := store.NewRedisStore(ctx, cfg.RedisURL, cfg.RedisPrefix, cfg.TTL)
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil

	default:
		return nil, noop, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// OutcomeSinks returns the log sink plus any AWS sinks enabled in cfg.
func OutcomeSinks(cfg config.OutcomeConfig, awsCfg aws.Config) []outcome.Sink {
	sinks := []outcome.Sink{outcome.LogSink{}}
	if cfg.EventBus != "" {
		sinks = append(sinks, outcome.NewEventBridgeSink(eventbridge.NewFromConfig(awsCfg), cfg.EventBus))
	}
	if cfg.ArchiveBucket != "" {
		sinks = append(sinks, outcome.NewArchiveSink(s3.NewFromConfig(awsCfg), cfg.ArchiveBucket, cfg.ArchivePrefix))
	}
	return sinks
}
