package dynamodb

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"go.uber.org/zap"

	"github.com/BajKull/Valks-backend/application/ports"
)

// CategoryStore implements ports.CategoryStore. Usage is one item per
// category under CATEGORY_USAGE; the featured category is a single item.
type CategoryStore struct {
	table *Table
}

var _ ports.CategoryStore = (*CategoryStore)(nil)

// NewCategoryStore creates a category store on table
func NewCategoryStore(table *Table) *CategoryStore {
	return &CategoryStore{table: table}
}

// LoadUsage reads the whole usage partition
func (s *CategoryStore) LoadUsage(ctx context.Context) (map[string][]time.Time, error) {
	items, err := s.table.queryPartition(ctx, "LoadUsage", usagePK)
	if err != nil {
		return nil, err
	}

	usage := make(map[string][]time.Time, len(items))
	for _, item := range items {
		var ui usageItem
		if err := attributevalue.UnmarshalMap(item, &ui); err != nil {
			s.table.logger.Warn("Skipping unreadable usage item", zap.Error(err))
			continue
		}
		times := make([]time.Time, 0, len(ui.Timestamps))
		for _, ms := range ui.Timestamps {
			times = append(times, fromMillis(ms))
		}
		usage[ui.SK] = times
	}
	return usage, nil
}

// AppendUsage appends at to the category's timestamp list
func (s *CategoryStore) AppendUsage(ctx context.Context, category string, at time.Time) error {
	timestamps := expression.Name("Timestamps")
	update := expression.Set(timestamps, expression.ListAppend(
		expression.IfNotExists(timestamps, expression.Value(emptyList{})),
		expression.Value([]int64{toMillis(at)}),
	))
	return s.table.upsert(ctx, "AppendUsage", documentKey(usagePK, category), update)
}

// GetFeatured reads the featured category, "" when none
func (s *CategoryStore) GetFeatured(ctx context.Context) (string, error) {
	item, err := s.table.get(ctx, "GetFeatured", documentKey(featuredPK, featuredSK))
	if err != nil || item == nil {
		return "", err
	}
	var fi featuredItem
	if err := attributevalue.UnmarshalMap(item, &fi); err != nil {
		return "", err
	}
	return fi.Category, nil
}

// SetFeatured overwrites the featured category
func (s *CategoryStore) SetFeatured(ctx context.Context, category string) error {
	item, err := attributevalue.MarshalMap(featuredItem{PK: featuredPK, SK: featuredSK, Category: category})
	if err != nil {
		return err
	}
	return s.table.put(ctx, "SetFeatured", item)
}
