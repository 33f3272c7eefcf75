// Package memory holds the process-local featured category cell
package memory

import (
	"context"
	"sync"
)

// FeaturedCell is a process-local ports.FeaturedCell
type FeaturedCell struct {
	mu       sync.RWMutex
	category string
}

// NewFeaturedCell creates an empty cell
func NewFeaturedCell() *FeaturedCell {
	return &FeaturedCell{}
}

// Get returns the featured category
func (c *FeaturedCell) Get(ctx context.Context) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.category, nil
}

// Set replaces the featured category
func (c *FeaturedCell) Set(ctx context.Context, category string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.category = category
	return nil
}
