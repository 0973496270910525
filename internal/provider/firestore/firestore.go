// Package firestore implements the DocumentStore interface using Google Cloud Firestore Native Mode.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"

	"github.com/dwsmith1983/clearmail/internal/provider"
	"github.com/dwsmith1983/clearmail/pkg/types"
)

// Compile-time interface satisfaction check.
var _ provider.DocumentStore = (*Store)(nil)

// Store implements provider.DocumentStore backed by Firestore.
type Store struct {
	client *firestore.Client
	logger *slog.Logger
}

// Open creates a Firestore client using the configured credential strategy.
//
// In a managed environment the ambient (ADC) credentials are used. Otherwise
// the service account file at creds.FilePath is tried first and ambient
// credentials are used if it is missing or invalid. A *provider.ConfigError is
// returned when neither works.
func Open(ctx context.Context, cfg *types.FirestoreConfig, creds types.CredentialConfig, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	projectID := firestore.DetectProjectID
	if cfg != nil && cfg.ProjectID != "" {
		projectID = cfg.ProjectID
	}

	// Support the Firestore emulator via FIRESTORE_EMULATOR_HOST or config.
	if cfg != nil && cfg.Emulator != "" {
		os.Setenv("FIRESTORE_EMULATOR_HOST", cfg.Emulator)
	}

	if !creds.Managed {
		client, err := openWithFile(ctx, projectID, creds.FilePath)
		if err == nil {
			logger.Info("firestore initialized with credential file", "path", creds.FilePath)
			return &Store{client: client, logger: logger}, nil
		}
		logger.Warn("credential file unusable, falling back to ambient credentials",
			"path", creds.FilePath, "error", err)
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, &provider.ConfigError{
			Provider: types.ProviderFirestore,
			Err:      fmt.Errorf("creating Firestore client with ambient credentials: %w", err),
		}
	}
	logger.Info("firestore initialized with ambient credentials")
	return &Store{client: client, logger: logger}, nil
}

// NewFromClient wraps an existing client (useful for testing).
func NewFromClient(client *firestore.Client) *Store {
	return &Store{client: client, logger: slog.Default()}
}

func openWithFile(ctx context.Context, projectID, path string) (*firestore.Client, error) {
	if err := validateCredentialFile(path); err != nil {
		return nil, err
	}
	client, err := firestore.NewClient(ctx, projectID, option.WithCredentialsFile(path))
	if err != nil {
		return nil, fmt.Errorf("creating Firestore client: %w", err)
	}
	return client, nil
}

// GetDocument reads collection/document.
func (s *Store) GetDocument(ctx context.Context, collection, document string) (map[string]any, error) {
	snap, err := s.client.Collection(collection).Doc(document).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, provider.ErrNotFound
		}
		return nil, fmt.Errorf("reading %s/%s: %w", collection, document, err)
	}
	if !snap.Exists() {
		return nil, provider.ErrNotFound
	}
	return snap.Data(), nil
}

// MergeFields sets fields on collection/document with merge semantics.
func (s *Store) MergeFields(ctx context.Context, collection, document string, fields map[string]any) error {
	if len(fields) == 0 {
		return errors.New("no fields to merge")
	}
	_, err := s.client.Collection(collection).Doc(document).Set(ctx, fields, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("writing %s/%s: %w", collection, document, err)
	}
	return nil
}

// Close closes the Firestore client.
func (s *Store) Close() error {
	return s.client.Close()
}
