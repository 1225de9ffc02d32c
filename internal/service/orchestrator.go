package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"storysync/internal/config"
	"storysync/internal/domain"
)

// Orchestrator implements the offline-first read policy: reads go to the
// network when it is reachable, successful results are written through to
// the cache, and failures fall back to whatever the cache holds. Writes
// are online-only.
type Orchestrator struct {
	gateway      Gateway
	cache        CacheStore
	favorites    FavoriteStore
	connectivity Connectivity
	tokens       TokenProvider
	publisher    Publisher
	logger       *slog.Logger
	config       config.SyncConfig

	offlineMode atomic.Bool
}

func NewOrchestrator(
	gateway Gateway,
	cache CacheStore,
	favorites FavoriteStore,
	connectivity Connectivity,
	tokens TokenProvider,
	publisher Publisher,
	logger *slog.Logger,
	cfg config.SyncConfig,
) *Orchestrator {
	return &Orchestrator{
		gateway:      gateway,
		cache:        cache,
		favorites:    favorites,
		connectivity: connectivity,
		tokens:       tokens,
		publisher:    publisher,
		logger:       logger.With("component", "orchestrator"),
		config:       cfg,
	}
}

// SetOfflineMode forces reads to the local store regardless of
// connectivity. The flag persists until cleared.
func (o *Orchestrator) SetOfflineMode(on bool) {
	o.offlineMode.Store(on)
}

func (o *Orchestrator) OfflineMode() bool {
	return o.offlineMode.Load()
}

// readOffline reports whether a read must skip the network: either the
// caller forced offline mode or the environment says nothing is reachable.
func (o *Orchestrator) readOffline() bool {
	return o.offlineMode.Load() || !o.connectivity.IsOnline()
}

// fallbackWorthy reports whether a gateway failure should be answered from
// the cache. Auth failures are precondition failures and always propagate.
func fallbackWorthy(err error) bool {
	return errors.Is(err, domain.ErrRemote) || errors.Is(err, domain.ErrNetwork)
}

// ListStories returns one page of stories. Offline it returns whatever is
// cached, possibly nothing. Online it fetches, caches best-effort, and
// serves the cache only when the fetch fails and the cache is non-empty;
// an empty cache surfaces the original fetch error.
func (o *Orchestrator) ListStories(ctx context.Context, opts domain.ListOptions) ([]domain.Story, error) {
	if o.readOffline() {
		o.logger.Debug("loading stories from local store", "reason", "offline")
		cached, err := o.cache.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("unable to load stories offline: %w", err)
		}
		return cachedToStories(cached), nil
	}

	stories, err := o.gateway.ListStories(ctx, opts, o.tokens.Token())
	if err != nil {
		if fallbackWorthy(err) {
			cached, cacheErr := o.cache.List(ctx)
			if cacheErr == nil && len(cached) > 0 {
				o.logger.Warn("remote list failed, serving cached stories",
					"cached", len(cached),
					"error", err,
				)
				return cachedToStories(cached), nil
			}
			if cacheErr != nil {
				o.logger.Warn("cache fallback failed", "error", cacheErr)
			}
		}
		return nil, err
	}

	// Write-through is an optimization: a cache failure never fails the read.
	if err := o.cache.UpsertMany(ctx, stories); err != nil {
		o.logger.Warn("failed to cache stories", "count", len(stories), "error", err)
	}

	return stories, nil
}

// GetStory returns one story by id with the same policy as ListStories. A
// missing credential surfaces immediately without a network attempt, and
// without consulting the cache.
func (o *Orchestrator) GetStory(ctx context.Context, id string) (domain.Story, error) {
	if o.readOffline() {
		o.logger.Debug("loading story from local store", "id", id, "reason", "offline")
		cached, err := o.cache.Get(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Story{}, fmt.Errorf("%w: story %s", domain.ErrNotFoundOffline, id)
		}
		if err != nil {
			return domain.Story{}, fmt.Errorf("unable to load story offline: %w", err)
		}
		return cached.Story, nil
	}

	story, err := o.gateway.GetStory(ctx, id, o.tokens.Token())
	if err != nil {
		if fallbackWorthy(err) {
			cached, cacheErr := o.cache.Get(ctx, id)
			if cacheErr == nil {
				o.logger.Warn("remote detail failed, serving cached story", "id", id, "error", err)
				return cached.Story, nil
			}
			if !errors.Is(cacheErr, domain.ErrNotFound) {
				o.logger.Warn("cache fallback failed", "id", id, "error", cacheErr)
			}
		}
		return domain.Story{}, err
	}

	if err := o.cache.UpsertOne(ctx, story); err != nil {
		o.logger.Warn("failed to cache story", "id", id, "error", err)
	}

	return story, nil
}

// CreateStory posts a new story. There is no offline queue: attempted
// offline, it fails fast with ErrOffline.
func (o *Orchestrator) CreateStory(ctx context.Context, story domain.NewStory) error {
	if o.readOffline() {
		return fmt.Errorf("%w: cannot create story offline", domain.ErrOffline)
	}
	return o.gateway.CreateStory(ctx, story, o.tokens.Token())
}

// CreateStoryGuest posts a new story through the guest endpoint, with the
// same online-only rule as CreateStory.
func (o *Orchestrator) CreateStoryGuest(ctx context.Context, story domain.NewStory) error {
	if o.readOffline() {
		return fmt.Errorf("%w: cannot create story offline", domain.ErrOffline)
	}
	return o.gateway.CreateStoryGuest(ctx, story)
}

// SubscribePush registers the web-push subscription with the API.
func (o *Orchestrator) SubscribePush(ctx context.Context, sub domain.PushSubscription) error {
	if o.readOffline() {
		return fmt.Errorf("%w: cannot manage subscriptions offline", domain.ErrOffline)
	}
	return o.gateway.SubscribePush(ctx, sub, o.tokens.Token())
}

// UnsubscribePush removes the web-push subscription from the API.
func (o *Orchestrator) UnsubscribePush(ctx context.Context, endpoint string) error {
	if o.readOffline() {
		return fmt.Errorf("%w: cannot manage subscriptions offline", domain.ErrOffline)
	}
	return o.gateway.UnsubscribePush(ctx, endpoint, o.tokens.Token())
}

// AddFavorite saves a story into the favorites collection. Favorites are
// purely local and work offline.
func (o *Orchestrator) AddFavorite(ctx context.Context, story domain.Story) error {
	return o.favorites.Add(ctx, story)
}

func (o *Orchestrator) RemoveFavorite(ctx context.Context, id string) error {
	return o.favorites.Remove(ctx, id)
}

func (o *Orchestrator) ListFavorites(ctx context.Context) ([]domain.FavoriteStory, error) {
	return o.favorites.List(ctx)
}

func (o *Orchestrator) IsFavorite(ctx context.Context, id string) (bool, error) {
	return o.favorites.IsFavorite(ctx, id)
}

func (o *Orchestrator) CountFavorites(ctx context.Context) (int, error) {
	return o.favorites.Count(ctx)
}

// ListCached exposes the raw cached collection, metadata included.
func (o *Orchestrator) ListCached(ctx context.Context) ([]domain.CachedStory, error) {
	return o.cache.List(ctx)
}

func (o *Orchestrator) DeleteCached(ctx context.Context, id string) error {
	return o.cache.Delete(ctx, id)
}

func (o *Orchestrator) ClearCached(ctx context.Context) error {
	return o.cache.Clear(ctx)
}

func (o *Orchestrator) CountCached(ctx context.Context) (int, error) {
	return o.cache.Count(ctx)
}

func (o *Orchestrator) SearchCached(ctx context.Context, query string) ([]domain.CachedStory, error) {
	return o.cache.Search(ctx, query)
}

// Refresh pulls the configured number of pages into the cache and
// announces stories not seen before. It is the scheduler's entry point and
// refuses to run while offline.
func (o *Orchestrator) Refresh(ctx context.Context) (*domain.RefreshStats, error) {
	startTime := time.Now()

	if o.readOffline() {
		return nil, fmt.Errorf("%w: refresh skipped", domain.ErrOffline)
	}

	o.logger.Info("starting refresh",
		"pages", o.config.PagesPerRefresh,
		"page_size", o.config.PageSize,
	)

	existing, err := o.cache.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list cached stories: %w", err)
	}
	known := make(map[string]bool, len(existing))
	for _, story := range existing {
		known[story.ID] = true
	}

	token := o.tokens.Token()
	var fetched []domain.Story
	for page := 1; page <= o.config.PagesPerRefresh; page++ {
		opts := domain.ListOptions{
			Page:         page,
			Size:         o.config.PageSize,
			WithLocation: o.config.WithLocation,
		}
		stories, err := o.gateway.ListStories(ctx, opts, token)
		if err != nil {
			return nil, fmt.Errorf("fetch page %d: %w", page, err)
		}
		fetched = append(fetched, stories...)
		if len(stories) < o.config.PageSize {
			break
		}
	}

	stats := &domain.RefreshStats{Fetched: len(fetched)}

	if err := o.cache.UpsertMany(ctx, fetched); err != nil {
		return stats, fmt.Errorf("cache stories: %w", err)
	}

	for i := range fetched {
		story := &fetched[i]
		isNew := !known[story.ID]
		if isNew {
			stats.New++
		} else {
			stats.Updated++
		}

		if o.publisher != nil && isNew {
			if err := o.publisher.Publish(ctx, story, true); err != nil {
				o.logger.Warn("failed to publish story", "id", story.ID, "error", err)
				stats.Errors++
			} else {
				stats.Published++
			}
		}
	}

	stats.Duration = time.Since(startTime)

	o.logger.Info("refresh completed",
		"fetched", stats.Fetched,
		"new", stats.New,
		"updated", stats.Updated,
		"published", stats.Published,
		"errors", stats.Errors,
		"duration", stats.Duration,
	)

	return stats, nil
}

func cachedToStories(cached []domain.CachedStory) []domain.Story {
	stories := make([]domain.Story, 0, len(cached))
	for _, c := range cached {
		stories = append(stories, c.Story)
	}
	return stories
}
