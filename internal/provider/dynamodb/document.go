package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/dwsmith1983/clearmail/internal/provider"
)

func (s *Store) itemKey(collection, document string) map[string]ddbtypes.AttributeValue {
	return map[string]ddbtypes.AttributeValue{
		attrPK: &ddbtypes.AttributeValueMemberS{Value: collectionPK(collection)},
		attrSK: &ddbtypes.AttributeValueMemberS{Value: documentSK(document)},
	}
}

// GetDocument reads the item for collection/document with a consistent read.
func (s *Store) GetDocument(ctx context.Context, collection, document string) (map[string]any, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      &s.tableName,
		Key:            s.itemKey(collection, document),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("reading %s/%s: %w", collection, document, err)
	}
	if len(out.Item) == 0 {
		return nil, provider.ErrNotFound
	}

	var doc map[string]any
	if err := attributevalue.UnmarshalMap(out.Item, &doc); err != nil {
		return nil, fmt.Errorf("unmarshaling %s/%s: %w", collection, document, err)
	}
	delete(doc, attrPK)
	delete(doc, attrSK)
	return doc, nil
}

// MergeFields SETs each field on the item, creating it if needed.
func (s *Store) MergeFields(ctx context.Context, collection, document string, fields map[string]any) error {
	if len(fields) == 0 {
		return errors.New("no fields to merge")
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		if name == attrPK || name == attrSK {
			return fmt.Errorf("field %q is reserved", name)
		}
		names = append(names, name)
	}
	slices.Sort(names)

	exprNames := make(map[string]string, len(names))
	exprValues := make(map[string]ddbtypes.AttributeValue, len(names))
	sets := make([]string, 0, len(names))
	for i, name := range names {
		av, err := attributevalue.Marshal(fields[name])
		if err != nil {
			return fmt.Errorf("marshaling field %q: %w", name, err)
		}
		n := fmt.Sprintf("#f%d", i)
		v := fmt.Sprintf(":v%d", i)
		exprNames[n] = name
		exprValues[v] = av
		sets = append(sets, n+" = "+v)
	}

	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 &s.tableName,
		Key:                       s.itemKey(collection, document),
		UpdateExpression:          aws.String("SET " + strings.Join(sets, ", ")),
		ExpressionAttributeNames:  exprNames,
		ExpressionAttributeValues: exprValues,
	})
	if err != nil {
		return fmt.Errorf("writing %s/%s: %w", collection, document, err)
	}
	return nil
}
