package storyapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"storysync/internal/domain"
)

// Config holds story API client configuration.
type Config struct {
	BaseURL        string
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Client is a stateless gateway to the story API. It normalizes the
// response shapes the API has shipped over time into domain.Story and maps
// failures onto the domain error taxonomy.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	logger         *slog.Logger
}

// New creates a story API client.
func New(cfg Config, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:        cfg.BaseURL,
		maxAttempts:    cfg.MaxAttempts,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		logger:         logger.With("component", "storyapi"),
	}
}

// Register creates a new account.
func (c *Client) Register(ctx context.Context, name, email, password string) error {
	body := map[string]string{"name": name, "email": email, "password": password}
	_, err := c.doJSON(ctx, http.MethodPost, c.baseURL+"/register", "", body)
	return err
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, email, password string) (domain.Session, error) {
	body := map[string]string{"email": email, "password": password}
	env, err := c.doJSON(ctx, http.MethodPost, c.baseURL+"/login", "", body)
	if err != nil {
		return domain.Session{}, err
	}
	if env.LoginResult == nil {
		return domain.Session{}, fmt.Errorf("%w: login response missing loginResult", domain.ErrRemote)
	}
	return domain.Session{
		Token:  env.LoginResult.Token,
		UserID: env.LoginResult.UserID,
		Name:   env.LoginResult.Name,
	}, nil
}

// ListStories fetches a page of stories. With a token it hits the
// authenticated endpoint; without one it falls back to the guest endpoint.
func (c *Client) ListStories(ctx context.Context, opts domain.ListOptions, token string) ([]domain.Story, error) {
	path := "/stories"
	if token == "" {
		path = "/stories/guest"
	}

	location := 0
	if opts.WithLocation {
		location = 1
	}
	url := fmt.Sprintf("%s%s?page=%d&size=%d&location=%d", c.baseURL, path, opts.Page, opts.Size, location)

	env, err := c.getWithRetry(ctx, url, token)
	if err != nil {
		return nil, err
	}

	stories := toDomainList(env.storyList())
	c.logger.Debug("fetched stories", "count", len(stories), "page", opts.Page)
	return stories, nil
}

// GetStory fetches one story by id. The endpoint requires a credential;
// without one the call fails before any network traffic.
func (c *Client) GetStory(ctx context.Context, id, token string) (domain.Story, error) {
	if token == "" {
		return domain.Story{}, domain.ErrAuthRequired
	}

	env, err := c.getWithRetry(ctx, c.baseURL+"/stories/"+id, token)
	if err != nil {
		return domain.Story{}, err
	}

	detail := env.storyDetail()
	if detail == nil {
		return domain.Story{}, fmt.Errorf("%w: story response missing payload", domain.ErrRemote)
	}
	return detail.toDomain(), nil
}

// CreateStory posts a new story to the authenticated endpoint.
func (c *Client) CreateStory(ctx context.Context, story domain.NewStory, token string) error {
	if token == "" {
		return domain.ErrAuthRequired
	}
	return c.postStory(ctx, c.baseURL+"/stories", story, token)
}

// CreateStoryGuest posts a new story without a credential.
func (c *Client) CreateStoryGuest(ctx context.Context, story domain.NewStory) error {
	return c.postStory(ctx, c.baseURL+"/stories/guest", story, "")
}

// SubscribePush registers a web-push subscription for the account.
func (c *Client) SubscribePush(ctx context.Context, sub domain.PushSubscription, token string) error {
	if token == "" {
		return domain.ErrAuthRequired
	}
	_, err := c.doJSON(ctx, http.MethodPost, c.baseURL+"/notifications/subscribe", token, sub)
	return err
}

// UnsubscribePush removes a previously registered subscription endpoint.
func (c *Client) UnsubscribePush(ctx context.Context, endpoint, token string) error {
	if token == "" {
		return domain.ErrAuthRequired
	}
	body := map[string]string{"endpoint": endpoint}
	_, err := c.doJSON(ctx, http.MethodDelete, c.baseURL+"/notifications/subscribe", token, body)
	return err
}

// getWithRetry retries transport failures with exponential backoff. Server
// declared errors are not retried: the answer arrived, it was just a no.
func (c *Client) getWithRetry(ctx context.Context, url, token string) (*envelope, error) {
	var env *envelope
	var err error

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		env, err = c.get(ctx, url, token)
		if err == nil || !errors.Is(err, domain.ErrNetwork) {
			return env, err
		}

		if attempt == c.maxAttempts {
			break
		}

		backoff := c.calculateBackoff(attempt)
		c.logger.Warn("request failed, retrying",
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", domain.ErrNetwork, ctx.Err())
		case <-time.After(backoff):
		}
	}

	return nil, fmt.Errorf("after %d attempts: %w", c.maxAttempts, err)
}

func (c *Client) get(ctx context.Context, url, token string) (*envelope, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	return c.send(req, token)
}

func (c *Client) doJSON(ctx context.Context, method, url, token string, body any) (*envelope, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.send(req, token)
}

func (c *Client) postStory(ctx context.Context, url string, story domain.NewStory, token string) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if err := writer.WriteField("description", story.Description); err != nil {
		return fmt.Errorf("write description field: %w", err)
	}

	photoName := story.PhotoName
	if photoName == "" {
		photoName = "photo.jpg"
	}
	part, err := writer.CreateFormFile("photo", photoName)
	if err != nil {
		return fmt.Errorf("create photo part: %w", err)
	}
	if _, err := part.Write(story.Photo); err != nil {
		return fmt.Errorf("write photo part: %w", err)
	}

	if story.Lat != nil && story.Lon != nil {
		if err := writer.WriteField("lat", strconv.FormatFloat(*story.Lat, 'f', -1, 64)); err != nil {
			return fmt.Errorf("write lat field: %w", err)
		}
		if err := writer.WriteField("lon", strconv.FormatFloat(*story.Lon, 'f', -1, 64)); err != nil {
			return fmt.Errorf("write lon field: %w", err)
		}
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	_, err = c.send(req, token)
	return err
}

// send executes the request and decodes the shared response envelope.
// Transport failures map to ErrNetwork; a declared error flag or a
// non-success status maps to ErrRemote carrying the server's message.
func (c *Client) send(req *http.Request, token string) (*envelope, error) {
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", domain.ErrNetwork, err)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("%w: unexpected status %d", domain.ErrRemote, resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: decode response: %v", domain.ErrRemote, err)
	}

	if env.Error {
		return nil, fmt.Errorf("%w: %s", domain.ErrRemote, env.Message)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: unexpected status %d", domain.ErrRemote, resp.StatusCode)
	}

	return &env, nil
}

func (c *Client) calculateBackoff(attempt int) time.Duration {
	backoff := c.initialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
	}
	if backoff > c.maxBackoff {
		backoff = c.maxBackoff
	}
	return backoff
}
