package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/recondo/internal/common"
	"github.com/ternarybob/recondo/internal/httpclient"
	"github.com/ternarybob/recondo/internal/interfaces"
	"github.com/ternarybob/recondo/internal/models"
	"github.com/ternarybob/recondo/internal/queue"
	"github.com/ternarybob/recondo/internal/services/archive"
	"github.com/ternarybob/recondo/internal/services/binstore"
	"github.com/ternarybob/recondo/internal/services/browser"
	"github.com/ternarybob/recondo/internal/services/convert"
	"github.com/ternarybob/recondo/internal/services/enricher"
	"github.com/ternarybob/recondo/internal/services/events"
	"github.com/ternarybob/recondo/internal/services/feeds"
	"github.com/ternarybob/recondo/internal/services/llm"
	"github.com/ternarybob/recondo/internal/services/media"
	"github.com/ternarybob/recondo/internal/services/podcast"
	"github.com/ternarybob/recondo/internal/services/scheduler"
	"github.com/ternarybob/recondo/internal/services/verifier"
	storagebadger "github.com/ternarybob/recondo/internal/storage/badger"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	StorageManager interfaces.StorageManager
	QueueService   *queue.Service
	EventService   interfaces.EventService
	BrowserService interfaces.BrowserService
	BinStore       *binstore.Store
	ArchiveService *archive.Service
	Scheduler      *scheduler.Service

	feedSources []models.FeedSource
}

// queueDefaults configures each queue's retry, backoff, and retention policy
func queueDefaults() map[string]interfaces.QueueOptions {
	return map[string]interfaces.QueueOptions{
		feeds.MetadataQueueName: {
			Attempts:         3,
			Backoff:          interfaces.Backoff{Base: 30 * time.Second},
			RemoveOnComplete: interfaces.Retention{MaxCount: 100, MaxAge: 24 * time.Hour},
			RemoveOnFail:     interfaces.Retention{MaxCount: 500},
		},
		enricher.ConversionQueueName: {
			Attempts:         3,
			Backoff:          interfaces.Backoff{Base: 2 * time.Minute},
			RemoveOnComplete: interfaces.Retention{MaxCount: 200, MaxAge: 7 * 24 * time.Hour},
			RemoveOnFail:     interfaces.Retention{Never: true},
		},
		enricher.MediaQueueName: {
			Attempts:         5,
			Backoff:          interfaces.Backoff{Base: time.Minute},
			RemoveOnComplete: interfaces.Retention{MaxCount: 100, MaxAge: 24 * time.Hour},
			RemoveOnFail:     interfaces.Retention{MaxCount: 500},
		},
		enricher.PodcastQueueName: {
			Attempts:         2,
			Backoff:          interfaces.Backoff{Base: 5 * time.Minute},
			RemoveOnComplete: interfaces.Retention{MaxCount: 50, MaxAge: 7 * 24 * time.Hour},
			RemoveOnFail:     interfaces.Retention{Never: true},
		},
		"feed-poll": {
			Attempts:         1,
			RemoveOnComplete: interfaces.Retention{MaxCount: 20},
			RemoveOnFail:     interfaces.Retention{MaxCount: 20},
		},
	}
}

// New wires the application together
func New(config *common.Config, logger arbor.ILogger) (*App, error) {
	a := &App{Config: config, Logger: logger}

	// Storage
	db, err := storagebadger.NewBadgerDB(logger, &config.Storage.Badger)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	storageManager := storagebadger.NewManager(db, logger)
	a.StorageManager = storageManager

	// Core substrate
	pollInterval, err := time.ParseDuration(config.Queue.PollInterval)
	if err != nil {
		pollInterval = time.Second
	}
	a.QueueService = queue.NewService(db.Badger(), queueDefaults(), pollInterval, logger)
	a.EventService = events.NewService(logger)
	a.BinStore = binstore.NewStore(config.Storage.DataDir, logger)

	// Browser + verification
	cookies := browser.NewCookieFile(config.Storage.CookiesFile, logger)
	a.BrowserService = browser.NewService(config.Browser, cookies, config.Privacy.FilterTerms, logger)
	vision := llm.NewVisionService(&config.LLM, logger)
	verify := verifier.NewService(vision, config.Quality.Threshold, logger)

	// LLM text provider for transcript reformatting
	textLLM, err := llm.NewTextService(&config.LLM, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build llm provider: %w", err)
	}

	// Pipeline workers
	shortClient := httpclient.NewDefaultHTTPClient(30 * time.Second)
	conversionWorker := convert.NewWorker(
		a.BrowserService, verify, a.BinStore, a.EventService,
		storageManager.FailureStorage(), httpclient.NewDownloadHTTPClient(),
		config.Browser.UserAgent, config.Storage.DataDir, logger,
	)
	mediaWorker := media.NewWorker(
		a.BinStore, a.EventService, httpclient.NewDownloadHTTPClient(),
		config.Browser.UserAgent, config.Feeds.LinkstashURL, logger,
	)
	podcastWorker := podcast.NewWorker(
		config.Podcast.ASRHost, textLLM, a.BinStore, a.EventService,
		shortClient, httpclient.NewASRHTTPClient(), logger,
	)

	// Enrichment + routing
	extractor := enricher.NewExtractor(httpclient.NewDefaultHTTPClient(20*time.Second), config.Browser.UserAgent, logger)
	router := enricher.NewRouter(extractor, a.QueueService, logger)

	// Feed sources
	var sources []feeds.Source
	if config.Feeds.RSSURL != "" {
		sources = append(sources, feeds.NewRSSSource(config.Feeds.RSSURL, shortClient, logger))
		a.feedSources = append(a.feedSources, models.SourceRSS)
	}
	if config.Feeds.LinkstashURL != "" {
		sources = append(sources, feeds.NewLinkstashSource(config.Feeds.LinkstashURL, shortClient, storageManager.DedupStorage(), logger))
		a.feedSources = append(a.feedSources, models.SourceLinkstash)
	}
	poller := feeds.NewPoller(sources, storageManager.DedupStorage(), storageManager.FeedCacheStorage(), a.QueueService, a.EventService, logger)

	// Subscriptions
	if err := a.QueueService.Subscribe(feeds.MetadataQueueName, 2, router.Handle); err != nil {
		return nil, err
	}
	if err := a.QueueService.Subscribe(enricher.ConversionQueueName, convert.Concurrency, conversionWorker.Handle); err != nil {
		return nil, err
	}
	if err := a.QueueService.Subscribe(enricher.MediaQueueName, media.Concurrency, mediaWorker.Handle); err != nil {
		return nil, err
	}
	if err := a.QueueService.Subscribe(enricher.PodcastQueueName, podcast.Concurrency, podcastWorker.Handle); err != nil {
		return nil, err
	}
	if err := a.QueueService.Subscribe("feed-poll", 1, func(ctx context.Context, job interfaces.Job) ([]byte, error) {
		return nil, poller.PollAll(ctx)
	}); err != nil {
		return nil, err
	}

	// Recurring work
	a.Scheduler = scheduler.NewService(poller, logger)

	// Exposed facade
	a.ArchiveService = archive.NewService(
		a.QueueService, a.BinStore, storageManager.FailureStorage(),
		config.Storage.DataDir, config.Storage.CookiesFile, logger,
	)

	return a, nil
}

// Start brings the application up: browser, queue workers, recurring polls
func (a *App) Start(ctx context.Context) error {
	if err := a.BrowserService.Init(ctx); err != nil {
		return fmt.Errorf("failed to start browser: %w", err)
	}
	if err := a.QueueService.Start(); err != nil {
		return err
	}

	// The durable queue scheduler drives feed polls, epoch-aligned; the cron
	// scheduler supervises with an offset watchdog tick
	if len(a.feedSources) > 0 {
		every := time.Duration(a.Config.Feeds.PollIntervalMinutes) * time.Minute
		if err := a.QueueService.UpsertScheduler(ctx, "feed-poll", every, nil, "feed-poll", []byte(`{}`)); err != nil {
			return fmt.Errorf("failed to schedule feed polls: %w", err)
		}
	}
	if err := a.Scheduler.Start(a.Config.Feeds.PollIntervalMinutes, a.feedSources); err != nil {
		return err
	}
	if len(a.feedSources) > 0 {
		a.Scheduler.PollNow(a.feedSources)
	}
	a.Logger.Info().Msg("Application started")
	return nil
}

// Shutdown stops components in dependency order: no new work, drain
// handlers, close the browser last so no capture is severed mid-flight, then
// close storage.
func (a *App) Shutdown(timeout time.Duration) {
	a.Logger.Info().Msg("Shutting down")

	if err := a.Scheduler.Stop(); err != nil {
		a.Logger.Warn().Err(err).Msg("Scheduler stop failed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := a.QueueService.Stop(ctx); err != nil {
		a.Logger.Warn().Err(err).Msg("Queue drain incomplete")
	}

	if err := a.BrowserService.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("Browser close failed")
	}
	if err := a.EventService.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("Event service close failed")
	}
	if err := a.StorageManager.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("Storage close failed")
	}

	a.Logger.Info().Msg("Shutdown complete")
}
