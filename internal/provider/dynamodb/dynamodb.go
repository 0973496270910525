// Package dynamodb implements the DocumentStore interface using AWS DynamoDB.
package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/dwsmith1983/clearmail/internal/provider"
	"github.com/dwsmith1983/clearmail/pkg/types"
)

// Compile-time interface satisfaction check.
var _ provider.DocumentStore = (*Store)(nil)

// DDBAPI is the subset of the DynamoDB client used by Store.
type DDBAPI interface {
	GetItem(ctx context.Context, input *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, input *dynamodb.UpdateItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DescribeTable(ctx context.Context, input *dynamodb.DescribeTableInput, opts ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	CreateTable(ctx context.Context, input *dynamodb.CreateTableInput, opts ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

// Store implements provider.DocumentStore backed by a single DynamoDB table.
type Store struct {
	client    DDBAPI
	tableName string
	logger    *slog.Logger
}

// Open creates a DynamoDB client using the configured credential strategy.
//
// With an endpoint (DynamoDB Local) static credentials are used. In a managed
// environment the default credential chain is used. Otherwise the shared
// credentials file at creds.FilePath is tried first and the default chain is
// used if it is missing or holds no keys. A *provider.ConfigError is returned
// when no strategy yields credentials.
func Open(ctx context.Context, cfg *types.DynamoDBConfig, creds types.CredentialConfig, logger *slog.Logger) (*Store, error) {
	s, err := open(ctx, cfg, creds, logger)
	if err != nil {
		return nil, err
	}
	if cfg.CreateTable {
		if err := s.EnsureTable(ctx); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func open(ctx context.Context, cfg *types.DynamoDBConfig, creds types.CredentialConfig, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg == nil || cfg.TableName == "" {
		return nil, &provider.ConfigError{Provider: types.ProviderDynamoDB, Err: errors.New("tableName is required")}
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}

	// For DynamoDB Local: use static credentials and custom endpoint.
	if cfg.Endpoint != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider("local", "local", ""),
		))
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, &provider.ConfigError{Provider: types.ProviderDynamoDB, Err: fmt.Errorf("loading AWS config: %w", err)}
		}
		return newStore(awsCfg, cfg, logger), nil
	}

	if !creds.Managed {
		fileCreds, err := loadFileCredentials(ctx, creds.FilePath, cfg.Profile)
		if err == nil {
			fileOpts := append(slices.Clone(opts), awsconfig.WithCredentialsProvider(
				credentials.StaticCredentialsProvider{Value: fileCreds},
			))
			awsCfg, err := awsconfig.LoadDefaultConfig(ctx, fileOpts...)
			if err == nil {
				logger.Info("dynamodb initialized with credential file", "path", creds.FilePath)
				return newStore(awsCfg, cfg, logger), nil
			}
			logger.Warn("loading AWS config with credential file failed", "error", err)
		} else {
			logger.Warn("credential file unusable, falling back to ambient credentials",
				"path", creds.FilePath, "error", err)
		}
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, &provider.ConfigError{Provider: types.ProviderDynamoDB, Err: fmt.Errorf("loading AWS config: %w", err)}
	}
	if _, err := awsCfg.Credentials.Retrieve(ctx); err != nil {
		return nil, &provider.ConfigError{Provider: types.ProviderDynamoDB, Err: fmt.Errorf("retrieving ambient credentials: %w", err)}
	}
	logger.Info("dynamodb initialized with ambient credentials")
	return newStore(awsCfg, cfg, logger), nil
}

func newStore(awsCfg aws.Config, cfg *types.DynamoDBConfig, logger *slog.Logger) *Store {
	var clientOpts []func(*dynamodb.Options)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *dynamodb.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	return &Store{
		client:    dynamodb.NewFromConfig(awsCfg, clientOpts...),
		tableName: cfg.TableName,
		logger:    logger,
	}
}

// NewFromClient creates a Store from an existing client (useful for testing).
func NewFromClient(client DDBAPI, tableName string) *Store {
	return &Store{client: client, tableName: tableName, logger: slog.Default()}
}

// loadFileCredentials reads static keys for profile from a shared
// credentials file, ignoring every other credential source.
func loadFileCredentials(ctx context.Context, path, profile string) (aws.Credentials, error) {
	if path == "" {
		return aws.Credentials{}, errors.New("no credential file configured")
	}
	if _, err := os.Stat(path); err != nil {
		return aws.Credentials{}, fmt.Errorf("reading credential file: %w", err)
	}
	if profile == "" {
		profile = "default"
	}
	sc, err := awsconfig.LoadSharedConfigProfile(ctx, profile, func(o *awsconfig.LoadSharedConfigOptions) {
		o.CredentialsFiles = []string{path}
		o.ConfigFiles = []string{}
	})
	if err != nil {
		return aws.Credentials{}, fmt.Errorf("parsing credential file: %w", err)
	}
	if !sc.Credentials.HasKeys() {
		return aws.Credentials{}, fmt.Errorf("credential file has no keys for profile %q", profile)
	}
	sc.Credentials.Source = "SharedCredentialsFile"
	return sc.Credentials, nil
}

// Ping checks connectivity by describing the table.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: &s.tableName,
	})
	if err != nil {
		return fmt.Errorf("dynamodb ping failed: %w", err)
	}
	return nil
}

// EnsureTable creates the table if it does not exist.
func (s *Store) EnsureTable(ctx context.Context) error {
	_, err := s.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: &s.tableName,
		KeySchema: []ddbtypes.KeySchemaElement{
			{AttributeName: aws.String(attrPK), KeyType: ddbtypes.KeyTypeHash},
			{AttributeName: aws.String(attrSK), KeyType: ddbtypes.KeyTypeRange},
		},
		AttributeDefinitions: []ddbtypes.AttributeDefinition{
			{AttributeName: aws.String(attrPK), AttributeType: ddbtypes.ScalarAttributeTypeS},
			{AttributeName: aws.String(attrSK), AttributeType: ddbtypes.ScalarAttributeTypeS},
		},
		BillingMode: ddbtypes.BillingModePayPerRequest,
	})
	if err != nil {
		var riue *ddbtypes.ResourceInUseException
		if errors.As(err, &riue) {
			return nil // table already exists
		}
		return fmt.Errorf("creating table: %w", err)
	}
	return nil
}

// Close is a no-op for DynamoDB (no persistent connections to close).
func (s *Store) Close() error {
	return nil
}
