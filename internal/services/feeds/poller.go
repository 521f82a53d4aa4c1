package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/recondo/internal/interfaces"
	"github.com/ternarybob/recondo/internal/models"
)

// MetadataQueueName receives one job per newly-discovered bookmark
const MetadataQueueName = "metadata"

// Poller drives the configured feed sources: conditional fetch, two-level
// dedup (per-source guid, then global canonical URL), and fan-out to the
// metadata queue. Dedup marks land before fan-out; a crash in between drops
// the item rather than duplicating it, and the weekly bin store downstream
// keeps reprocessing idempotent.
type Poller struct {
	sources   []Source
	dedup     interfaces.DedupStorage
	feedCache interfaces.FeedCacheStorage
	queue     interfaces.QueueService
	events    interfaces.EventService
	logger    arbor.ILogger

	mu       sync.Mutex
	lastPoll time.Time
}

// NewPoller creates a feed poller over the given sources
func NewPoller(sources []Source, dedup interfaces.DedupStorage, feedCache interfaces.FeedCacheStorage, queue interfaces.QueueService, events interfaces.EventService, logger arbor.ILogger) *Poller {
	return &Poller{
		sources:   sources,
		dedup:     dedup,
		feedCache: feedCache,
		queue:     queue,
		events:    events,
		logger:    logger,
	}
}

// PollAll polls every configured source, continuing past per-source errors
func (p *Poller) PollAll(ctx context.Context) error {
	var firstErr error
	for _, source := range p.sources {
		if err := p.Poll(ctx, source); err != nil {
			p.logger.Warn().
				Err(err).
				Str("source", string(source.Name())).
				Msg("Feed poll failed")
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	p.mu.Lock()
	p.lastPoll = time.Now()
	p.mu.Unlock()

	return firstErr
}

// LastPollAt reports when the last full poll round completed
func (p *Poller) LastPollAt() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastPoll
}

// PollSource polls the source with the given name
func (p *Poller) PollSource(ctx context.Context, name models.FeedSource) error {
	for _, source := range p.sources {
		if source.Name() == name {
			return p.Poll(ctx, source)
		}
	}
	return fmt.Errorf("unknown feed source: %s", name)
}

// Poll fetches one source and fans new items out to the metadata queue
func (p *Poller) Poll(ctx context.Context, source Source) error {
	name := string(source.Name())

	cache, err := p.feedCache.GetCache(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to load feed cache: %w", err)
	}

	items, newCache, err := source.Fetch(ctx, cache)
	if err != nil {
		return err
	}

	enqueued := 0
	for _, item := range items {
		seen, err := p.dedup.IsGUIDSeen(ctx, item.Source, item.GUID)
		if err != nil {
			return fmt.Errorf("guid lookup failed: %w", err)
		}
		if seen {
			continue
		}
		if err := p.dedup.MarkGUIDSeen(ctx, item.Source, item.GUID); err != nil {
			return fmt.Errorf("failed to mark guid: %w", err)
		}

		urlSeen, err := p.dedup.IsURLSeen(ctx, item.CanonicalURL)
		if err != nil {
			return fmt.Errorf("url lookup failed: %w", err)
		}
		if urlSeen {
			p.logger.Debug().
				Str("source", name).
				Str("url", item.CanonicalURL).
				Msg("URL already seen, skipping")
			continue
		}
		if err := p.dedup.MarkURLSeen(ctx, item.CanonicalURL, item.Source); err != nil {
			return fmt.Errorf("failed to mark url: %w", err)
		}

		data, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("failed to marshal bookmark: %w", err)
		}
		if _, err := p.queue.Add(ctx, MetadataQueueName, data, nil); err != nil {
			return fmt.Errorf("failed to enqueue metadata job: %w", err)
		}
		enqueued++
	}

	if newCache != nil && newCache != cache {
		if err := p.feedCache.SetCache(ctx, newCache); err != nil {
			p.logger.Warn().Err(err).Str("source", name).Msg("Failed to persist feed cache")
		}
	}

	p.logger.Info().
		Str("source", name).
		Int("items", len(items)).
		Int("new", enqueued).
		Msg("Feed polled")

	p.events.Publish(ctx, models.Event{
		Type:      models.EventFeedPolled,
		Timestamp: time.Now(),
		Payload: map[string]interface{}{
			"source": name,
			"items":  len(items),
			"new":    enqueued,
		},
	})

	return nil
}
