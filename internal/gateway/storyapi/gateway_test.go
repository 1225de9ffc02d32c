package storyapi

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storysync/internal/domain"
	"storysync/testdata/utils"
)

func newTestClient(baseURL string) *Client {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(Config{
		BaseURL:        baseURL,
		Timeout:        2 * time.Second,
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	}, logger)
}

func TestListStories_AuthenticatedEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/stories", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "5", r.URL.Query().Get("size"))
		assert.Equal(t, "1", r.URL.Query().Get("location"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"error":false,"listStory":[
			{"id":"1","name":"A","description":"d","photoUrl":"a.jpg","createdAt":"2024-01-01T00:00:00Z"}
		]}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	stories, err := client.ListStories(context.Background(), domain.ListOptions{Page: 2, Size: 5, WithLocation: true}, "tok")

	require.NoError(t, err)
	require.Len(t, stories, 1)
	assert.Equal(t, "1", stories[0].ID)
	assert.Equal(t, "a.jpg", stories[0].PhotoURL)
}

func TestListStories_GuestEndpointWithoutToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/stories/guest", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"error":false,"listStory":[]}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	stories, err := client.ListStories(context.Background(), domain.ListOptions{Page: 1, Size: 10}, "")

	require.NoError(t, err)
	assert.Empty(t, stories)
}

func TestListStories_LegacyShapeAndPhotoFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"error":false,"stories":[
			{"id":"1","name":"A","createdAt":"2024-01-01T00:00:00Z","photo":"x.jpg"},
			{"id":"2","name":"B","createdAt":"2024-01-02T00:00:00Z"}
		]}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	stories, err := client.ListStories(context.Background(), domain.ListOptions{Page: 1, Size: 10}, "")

	require.NoError(t, err)
	require.Len(t, stories, 2)
	assert.Equal(t, "x.jpg", stories[0].PhotoURL)
	assert.Equal(t, "", stories[1].PhotoURL)
}

func TestGetStory_ModernAndLegacyShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"story field", `{"error":false,"story":{"id":"42","name":"A","createdAt":"2024-01-01T00:00:00Z","photoUrl":"a.jpg","lat":-6.2,"lon":106.8}}`},
		{"data field", `{"error":false,"data":{"id":"42","name":"A","createdAt":"2024-01-01T00:00:00Z","photoUrl":"a.jpg","lat":-6.2,"lon":106.8}}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/stories/42", r.URL.Path)
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			client := newTestClient(srv.URL)
			story, err := client.GetStory(context.Background(), "42", "tok")

			require.NoError(t, err)
			assert.Equal(t, "42", story.ID)
			require.True(t, story.HasLocation())
			assert.Equal(t, -6.2, *story.Lat)
		})
	}
}

func TestGetStory_HalfPresentCoordinatesDropped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"error":false,"story":{"id":"42","name":"A","createdAt":"2024-01-01T00:00:00Z","lat":-6.2}}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	story, err := client.GetStory(context.Background(), "42", "tok")

	require.NoError(t, err)
	assert.False(t, story.HasLocation())
	assert.Nil(t, story.Lat)
}

func TestGetStory_RequiresTokenBeforeAnyNetworkCall(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.GetStory(context.Background(), "42", "")

	assert.ErrorIs(t, err, domain.ErrAuthRequired)
	assert.Equal(t, int32(0), atomic.LoadInt32(&hits))
}

func TestDeclaredErrorFlagBecomesRemoteError(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"error":true,"message":"story not accessible"}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.ListStories(context.Background(), domain.ListOptions{Page: 1, Size: 10}, "")

	assert.ErrorIs(t, err, domain.ErrRemote)
	assert.ErrorContains(t, err, "story not accessible")
	// The server answered; a declared error is not retried.
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestNonSuccessStatusBecomesRemoteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("<html>boom</html>"))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.ListStories(context.Background(), domain.ListOptions{Page: 1, Size: 10}, "")

	assert.ErrorIs(t, err, domain.ErrRemote)
	assert.ErrorContains(t, err, "500")
}

func TestTransportFailureRetriesThenNetworkError(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		conn, _, err := w.(http.Hijacker).Hijack()
		require.NoError(t, err)
		_ = conn.Close()
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.ListStories(context.Background(), domain.ListOptions{Page: 1, Size: 10}, "")

	assert.ErrorIs(t, err, domain.ErrNetwork)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestCreateStory_MultipartBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/stories", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "sunset", r.FormValue("description"))
		assert.Equal(t, "-6.2", r.FormValue("lat"))
		assert.Equal(t, "106.8", r.FormValue("lon"))

		file, header, err := r.FormFile("photo")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "sunset.jpg", header.Filename)
		photo, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, []byte{0xff, 0xd8}, photo)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"error":false,"message":"Story created"}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	err := client.CreateStory(context.Background(), domain.NewStory{
		Description: "sunset",
		Photo:       []byte{0xff, 0xd8},
		PhotoName:   "sunset.jpg",
		Lat:         utils.Ptr(-6.2),
		Lon:         utils.Ptr(106.8),
	}, "tok")

	assert.NoError(t, err)
}

func TestCreateStory_RequiresToken(t *testing.T) {
	client := newTestClient("http://localhost:0")
	err := client.CreateStory(context.Background(), domain.NewStory{Description: "x"}, "")
	assert.ErrorIs(t, err, domain.ErrAuthRequired)
}

func TestCreateStoryGuest_OmitsAuthAndCoordinates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/stories/guest", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Empty(t, r.FormValue("lat"))
		assert.Empty(t, r.FormValue("lon"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"error":false,"message":"Story created"}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	err := client.CreateStoryGuest(context.Background(), domain.NewStory{
		Description: "anonymous",
		Photo:       []byte{1},
	})

	assert.NoError(t, err)
}

func TestLogin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/login", r.URL.Path)

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.JSONEq(t, `{"email":"a@b.c","password":"secret"}`, string(body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"error":false,"loginResult":{"token":"tok","userId":"u1","name":"Ann"}}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	session, err := client.Login(context.Background(), "a@b.c", "secret")

	require.NoError(t, err)
	assert.Equal(t, "tok", session.Token)
	assert.Equal(t, "u1", session.UserID)
	assert.Equal(t, "Ann", session.Name)
}

func TestRegister(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/register", r.URL.Path)

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.JSONEq(t, `{"name":"Ann","email":"a@b.c","password":"secret"}`, string(body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"error":false,"message":"User created"}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	assert.NoError(t, client.Register(context.Background(), "Ann", "a@b.c", "secret"))
}

func TestPushSubscriptionLifecycle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/notifications/subscribe", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		switch r.Method {
		case http.MethodPost:
			assert.JSONEq(t, `{"endpoint":"https://push.example/e1","keys":{"auth":"a","p256dh":"p"}}`, string(body))
		case http.MethodDelete:
			assert.JSONEq(t, `{"endpoint":"https://push.example/e1"}`, string(body))
		default:
			t.Errorf("unexpected method %s", r.Method)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"error":false,"message":"ok"}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)

	err := client.SubscribePush(context.Background(), domain.PushSubscription{
		Endpoint: "https://push.example/e1",
		Keys:     map[string]string{"auth": "a", "p256dh": "p"},
	}, "tok")
	assert.NoError(t, err)

	assert.NoError(t, client.UnsubscribePush(context.Background(), "https://push.example/e1", "tok"))

	assert.ErrorIs(t, client.SubscribePush(context.Background(), domain.PushSubscription{}, ""), domain.ErrAuthRequired)
	assert.ErrorIs(t, client.UnsubscribePush(context.Background(), "e", ""), domain.ErrAuthRequired)
}
