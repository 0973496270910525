//go:build integration

package dynamodb

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/dwsmith1983/clearmail/internal/provider/providertest"
	"github.com/dwsmith1983/clearmail/pkg/types"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	tableName := fmt.Sprintf("clearmail-test-%d", time.Now().UnixNano())
	cfg := &types.DynamoDBConfig{
		TableName:   tableName,
		Region:      "us-east-1",
		Endpoint:    "http://localhost:8000",
		CreateTable: true,
	}
	s, err := Open(ctx, cfg, types.CredentialConfig{}, nil)
	if err != nil {
		t.Skipf("DynamoDB Local not available: %v", err)
	}
	if err := s.Ping(ctx); err != nil {
		t.Skipf("DynamoDB Local not available: %v", err)
	}
	t.Cleanup(func() {
		if c, ok := s.client.(*dynamodb.Client); ok {
			_, _ = c.DeleteTable(context.Background(), &dynamodb.DeleteTableInput{
				TableName: &tableName,
			})
		}
	})
	return s
}

func TestConformance(t *testing.T) {
	providertest.RunAll(t, setupTestStore(t))
}
