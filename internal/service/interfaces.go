package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"storysync/internal/domain"
)

type Gateway interface {
	ListStories(ctx context.Context, opts domain.ListOptions, token string) ([]domain.Story, error)
	GetStory(ctx context.Context, id, token string) (domain.Story, error)
	CreateStory(ctx context.Context, story domain.NewStory, token string) error
	CreateStoryGuest(ctx context.Context, story domain.NewStory) error
	SubscribePush(ctx context.Context, sub domain.PushSubscription, token string) error
	UnsubscribePush(ctx context.Context, endpoint, token string) error
}

type CacheStore interface {
	UpsertMany(ctx context.Context, stories []domain.Story) error
	UpsertOne(ctx context.Context, story domain.Story) error
	List(ctx context.Context) ([]domain.CachedStory, error)
	Get(ctx context.Context, id string) (domain.CachedStory, error)
	Delete(ctx context.Context, id string) error
	Clear(ctx context.Context) error
	Count(ctx context.Context) (int, error)
	Search(ctx context.Context, query string) ([]domain.CachedStory, error)
}

type FavoriteStore interface {
	Add(ctx context.Context, story domain.Story) error
	Remove(ctx context.Context, id string) error
	List(ctx context.Context) ([]domain.FavoriteStory, error)
	IsFavorite(ctx context.Context, id string) (bool, error)
	Count(ctx context.Context) (int, error)
}

// Connectivity is the injected reachability signal. OnChange registers a
// callback for online/offline transitions and returns an unsubscribe func.
type Connectivity interface {
	IsOnline() bool
	OnChange(fn func(online bool)) (unsubscribe func())
}

// TokenProvider supplies the optional bearer token. An empty token selects
// the guest variants of the API operations.
type TokenProvider interface {
	Token() string
}

// TokenFunc adapts a plain func to TokenProvider.
type TokenFunc func() string

func (f TokenFunc) Token() string { return f() }

// StaticToken is a TokenProvider for a fixed (possibly empty) token.
type StaticToken string

func (t StaticToken) Token() string { return string(t) }

type Publisher interface {
	Publish(ctx context.Context, story *domain.Story, isNew bool) error
	Close() error
}
