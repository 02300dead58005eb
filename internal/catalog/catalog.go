// Package catalog caches card template metadata (name, image, type, rank) fetched from
// GET /cards/{id}. Entries are fetched lazily and never invalidated within a session.
package catalog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jason-s-yu/holosync/internal/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// prefetchLimit bounds concurrent lookups during Prefetch.
const prefetchLimit = 4

// Fetcher loads one template (api.Client implements it).
type Fetcher interface {
	GetCard(ctx context.Context, templateID string) (models.CardInfo, error)
}

type Cache struct {
	fetcher Fetcher
	logger  *logrus.Logger

	mu      sync.RWMutex
	entries map[string]models.CardInfo
	flight  singleflight.Group
}

func New(fetcher Fetcher, logger *logrus.Logger) *Cache {
	return &Cache{
		fetcher: fetcher,
		logger:  logger,
		entries: make(map[string]models.CardInfo),
	}
}

// fetchTimeout bounds one shared fetch, which no single caller owns.
const fetchTimeout = 10 * time.Second

// Get returns the metadata for templateID, fetching it on first use. Concurrent first
// lookups of the same id share one request, which runs detached from any one caller's ctx.
func (c *Cache) Get(ctx context.Context, templateID string) (models.CardInfo, error) {
	if info, ok := c.Peek(templateID); ok {
		return info, nil
	}
	ch := c.flight.DoChan(templateID, func() (interface{}, error) {
		if info, ok := c.Peek(templateID); ok {
			return info, nil
		}
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		defer cancel()
		info, err := c.fetcher.GetCard(fctx, templateID)
		if err != nil {
			return nil, fmt.Errorf("fetch card %s: %w", templateID, err)
		}
		if info.TemplateID == "" {
			info.TemplateID = templateID
		}
		c.mu.Lock()
		c.entries[templateID] = info
		c.mu.Unlock()
		return info, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return models.CardInfo{}, res.Err
		}
		return res.Val.(models.CardInfo), nil
	case <-ctx.Done():
		return models.CardInfo{}, ctx.Err()
	}
}

// Peek returns a cached entry without fetching.
func (c *Cache) Peek(templateID string) (models.CardInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	info, ok := c.entries[templateID]
	return info, ok
}

// Prefetch loads every template visible in snap that is not cached yet. Failures are logged
// and skipped; decoration is best effort.
func (c *Cache) Prefetch(ctx context.Context, snap *models.GameSnapshot) {
	if snap == nil {
		return
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(prefetchLimit)
	for _, id := range snap.TemplateIDs() {
		if _, ok := c.Peek(id); ok {
			continue
		}
		g.Go(func() error {
			if _, err := c.Get(ctx, id); err != nil {
				c.logger.WithError(err).WithField("template_id", id).Debug("card prefetch failed")
			}
			return nil
		})
	}
	_ = g.Wait()
}

// Lookup is Get with the error folded into ok, for legality checks that treat an unknown
// template as missing metadata.
func (c *Cache) Lookup(ctx context.Context, templateID string) (models.CardInfo, bool) {
	info, err := c.Get(ctx, templateID)
	if err != nil {
		c.logger.WithError(err).WithField("template_id", templateID).Warn("card metadata unavailable")
		return models.CardInfo{TemplateID: templateID}, false
	}
	return info, true
}
