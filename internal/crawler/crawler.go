package crawler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"optionsMirror/internal/metrics"
	"optionsMirror/internal/model"
	"optionsMirror/internal/notify"
	"optionsMirror/internal/storage"
)

// ErrCrawlFailed is returned when a crawl hit a hard error and its events were discarded.
var ErrCrawlFailed = errors.New("crawl failed")

// Config holds crawler settings.
type Config struct {
	// GenesisBlock is the first block crawled for a protocol with no persisted events.
	GenesisBlock   uint64
	PageLimit      int
	PageDelay      time.Duration
	RateLimitDelay time.Duration
}

// Options are the optional bounds of one crawl.
type Options struct {
	ToBlock *uint64
	// Cutoff stops paging at the first record with timestamp <= Cutoff.
	Cutoff *uint64
}

// Sink receives every complete crawl window in addition to the store.
type Sink interface {
	PutEvents(events []model.Event) error
}

// Crawler walks the indexer's paginated event feed per protocol address.
type Crawler struct {
	cfg      Config
	client   *Client
	store    storage.EventStore
	notifier notify.Notifier
	sink     Sink
	logger   *zap.Logger
}

func New(cfg Config, client *Client, store storage.EventStore, notifier notify.Notifier, logger *zap.Logger) *Crawler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = notify.NewLogNotifier(logger)
	}
	if cfg.PageLimit <= 0 || cfg.PageLimit > 100 {
		cfg.PageLimit = 100
	}
	if cfg.RateLimitDelay <= 0 {
		cfg.RateLimitDelay = 10 * time.Second
	}
	return &Crawler{cfg: cfg, client: client, store: store, notifier: notifier, logger: logger}
}

// WithSink also hands every persisted window to sink.
func (c *Crawler) WithSink(sink Sink) *Crawler {
	c.sink = sink
	return c
}

// FromBlock returns the block a crawl of protocol starts at.
func (c *Crawler) FromBlock(ctx context.Context, protocol string) (uint64, error) {
	last, ok, err := c.store.MaxEventBlock(ctx, protocol)
	if err != nil {
		return 0, fmt.Errorf("load event cursor: %w", err)
	}
	if !ok {
		return c.cfg.GenesisBlock, nil
	}
	return last + 1, nil
}

// Crawl returns every normalized event of protocol from its cursor on. The result is
// either the complete window or empty: on a hard transport or parse error everything
// collected so far is discarded, the operator is alerted and ErrCrawlFailed is returned.
func (c *Crawler) Crawl(ctx context.Context, protocol string, opts Options) ([]model.Event, error) {
	from, err := c.FromBlock(ctx, protocol)
	if err != nil {
		return nil, err
	}
	logger := c.logger.With(zap.String("protocol", protocol))

	events, dropped, err := c.walk(ctx, logger, Query{
		FromAddress: protocol,
		FromBlock:   from,
		ToBlock:     opts.ToBlock,
		Limit:       c.cfg.PageLimit,
	}, opts.Cutoff)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		metrics.CrawlFailures.WithLabelValues(protocol).Inc()
		logger.Error("crawl failed, discarding window", zap.Int("discarded", len(events)), zap.Error(err))
		c.notifier.Notify(ctx, fmt.Sprintf("event crawl for %s from block %d failed: %v", protocol, from, err))
		return []model.Event{}, fmt.Errorf("%w: %s: %w", ErrCrawlFailed, protocol, err)
	}

	metrics.EventsCrawled.WithLabelValues(protocol).Add(float64(len(events)))
	metrics.EventsDropped.WithLabelValues(protocol).Add(float64(dropped))
	logger.Info("crawl complete", zap.Uint64("from_block", from), zap.Int("events", len(events)), zap.Int("dropped", dropped))
	return events, nil
}

// walk follows next_url until the feed ends or the cutoff is reached. On error the
// partial accumulator is returned only for logging.
func (c *Crawler) walk(ctx context.Context, logger *zap.Logger, q Query, cutoff *uint64) ([]model.Event, int, error) {
	var (
		events  []model.Event
		dropped int
	)

	pageURL := c.client.FirstPageURL(q)
	for page := 1; ; {
		resp, err := c.client.Get(ctx, pageURL)
		if err != nil {
			return events, dropped, fmt.Errorf("page %d: %w", page, err)
		}
		if resp.Throttled() {
			logger.Warn("indexer rate limited", zap.String("url", pageURL), zap.String("message", *resp.Message))
			if err := sleepCtx(ctx, c.cfg.RateLimitDelay); err != nil {
				return events, dropped, err
			}
			continue
		}

		for _, raw := range resp.Data {
			if cutoff != nil && raw.Timestamp <= *cutoff {
				logger.Debug("cutoff reached", zap.Int("page", page), zap.Uint64("timestamp", raw.Timestamp))
				return events, dropped, nil
			}
			event, ok := Normalize(raw)
			if !ok {
				dropped++
				continue
			}
			events = append(events, event)
		}

		if resp.NextURL == nil || *resp.NextURL == "" {
			return events, dropped, nil
		}
		next, err := c.client.Resolve(*resp.NextURL)
		if err != nil {
			return events, dropped, fmt.Errorf("page %d: %w", page, err)
		}
		if err := sleepCtx(ctx, c.cfg.PageDelay); err != nil {
			return events, dropped, err
		}
		pageURL = next
		page++
	}
}

// RunResult summarizes a multi-protocol crawl.
type RunResult struct {
	RunID    string
	Inserted map[string]int
	Failed   []string
}

// Run crawls every protocol concurrently and persists each complete window.
// Failed crawls are reported in the result; a store failure aborts the run.
func (c *Crawler) Run(ctx context.Context, protocols []string, opts Options) (RunResult, error) {
	result := RunResult{RunID: uuid.NewString(), Inserted: make(map[string]int, len(protocols))}
	logger := c.logger.With(zap.String("run_id", result.RunID))
	logger.Info("crawl run start", zap.Int("protocols", len(protocols)))

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		firstErr error
	)
	for _, protocol := range protocols {
		protocol := protocol
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := c.crawlAndStore(ctx, protocol, opts, func(n int) {
				mu.Lock()
				result.Inserted[protocol] = n
				mu.Unlock()
			})
			if err == nil {
				return
			}

			mu.Lock()
			defer mu.Unlock()
			if errors.Is(err, ErrCrawlFailed) {
				result.Failed = append(result.Failed, protocol)
				return
			}
			if firstErr == nil {
				firstErr = err
			}
		}()
	}
	wg.Wait()

	if firstErr != nil {
		return result, firstErr
	}
	logger.Info("crawl run done", zap.Any("inserted", result.Inserted), zap.Strings("failed", result.Failed))
	return result, nil
}

func (c *Crawler) crawlAndStore(ctx context.Context, protocol string, opts Options, done func(int)) error {
	events, err := c.Crawl(ctx, protocol, opts)
	if err != nil {
		return err
	}
	if len(events) > 0 {
		if err := c.store.InsertEvents(ctx, events); err != nil {
			return fmt.Errorf("persist events for %s: %w", protocol, err)
		}
		if c.sink != nil {
			if err := c.sink.PutEvents(events); err != nil {
				return fmt.Errorf("dump events for %s: %w", protocol, err)
			}
		}
	}
	done(len(events))
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
