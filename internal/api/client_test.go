package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeServer speaks just enough of the protocol for the client tests.
type fakeServer struct {
	mu       sync.Mutex
	logins   int
	calls    map[string]int
	sessions map[string]bool
	handle   func(op string, params map[string]interface{}) (interface{}, bool)
}

func newFakeServer() *fakeServer {
	return &fakeServer{
		calls:    make(map[string]int),
		sessions: make(map[string]bool),
	}
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var params map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	op, _ := params["op"].(string)

	f.mu.Lock()
	f.calls[op]++
	f.mu.Unlock()

	writeContent := func(content interface{}) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"seq": 0, "status": 0, "content": content,
		})
	}

	if op == "login" {
		f.mu.Lock()
		f.logins++
		sid := fmt.Sprintf("sid-%d", f.logins)
		f.sessions[sid] = true
		f.mu.Unlock()
		writeContent(map[string]interface{}{"session_id": sid, "api_level": 14})
		return
	}

	sid, _ := params["sid"].(string)
	f.mu.Lock()
	valid := f.sessions[sid]
	f.mu.Unlock()
	if !valid {
		writeContent(map[string]interface{}{"error": "NOT_LOGGED_IN"})
		return
	}

	if f.handle != nil {
		if content, ok := f.handle(op, params); ok {
			writeContent(content)
			return
		}
	}
	writeContent(map[string]interface{}{"error": "UNKNOWN_METHOD"})
}

func (f *fakeServer) callCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeServer) invalidateAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions = make(map[string]bool)
}

func newTestClient(t *testing.T, f *fakeServer) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		BaseURL:    srv.URL,
		Username:   "reader",
		Password:   "secret",
		HTTPClient: srv.Client(),
	}), srv
}

func TestLoginLazy(t *testing.T) {
	f := newFakeServer()
	f.handle = func(op string, params map[string]interface{}) (interface{}, bool) {
		if op == "getCategories" {
			return []map[string]interface{}{{"id": 1, "title": "News", "unread": 3}}, true
		}
		return nil, false
	}
	client, _ := newTestClient(t, f)

	cats, err := client.GetCategories(context.Background())
	require.NoError(t, err)
	require.Len(t, cats, 1)
	assert.Equal(t, int64(1), cats[0].ID)
	assert.Equal(t, "News", cats[0].Title)
	assert.Equal(t, 3, cats[0].Unread)
	assert.Equal(t, 1, f.callCount("login"))
}

func TestSessionExpiryRetriesOnce(t *testing.T) {
	f := newFakeServer()
	f.handle = func(op string, params map[string]interface{}) (interface{}, bool) {
		if op == "getCategories" {
			return []map[string]interface{}{}, true
		}
		return nil, false
	}
	client, _ := newTestClient(t, f)

	_, err := client.GetCategories(context.Background())
	require.NoError(t, err)

	// Server drops the session behind the client's back.
	f.invalidateAll()

	_, err = client.GetCategories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, f.callCount("login"))
	assert.Equal(t, 3, f.callCount("getCategories"))
}

func TestPermanentAuthFailureSurfacesAuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"seq": 0, "status": 1,
			"content": map[string]interface{}{"error": "LOGIN_ERROR"},
		})
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, Username: "reader", Password: "wrong", HTTPClient: srv.Client()})
	_, err := client.GetCategories(context.Background())
	require.Error(t, err)
	assert.Equal(t, KindAuth, Classify(err))
}

func TestServerErrorClassification(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, Username: "reader", Password: "secret", HTTPClient: srv.Client()})
	err := client.Login(context.Background())
	require.Error(t, err)
	assert.Equal(t, KindServer, Classify(err))
}

func TestMalformedResponseClassification(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>not json</html>")
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, Username: "reader", Password: "secret", HTTPClient: srv.Client()})
	err := client.Login(context.Background())
	require.Error(t, err)
	assert.Equal(t, KindMalformed, Classify(err))
}

func TestHeadlineBatching(t *testing.T) {
	f := newFakeServer()
	var skips []int
	f.handle = func(op string, params map[string]interface{}) (interface{}, bool) {
		if op != "getHeadlines" {
			return nil, false
		}
		skip := int(params["skip"].(float64))
		chunk := int(params["limit"].(float64))
		skips = append(skips, skip)

		// 450 articles total on the server
		remaining := 450 - skip
		if remaining < 0 {
			remaining = 0
		}
		n := chunk
		if n > remaining {
			n = remaining
		}
		articles := make([]map[string]interface{}, n)
		for i := 0; i < n; i++ {
			articles[i] = map[string]interface{}{
				"id": skip + i + 1, "feed_id": 7, "title": "a", "unread": true, "updated": 1700000000,
			}
		}
		return articles, true
	}
	client, _ := newTestClient(t, f)

	articles, err := client.GetHeadlines(context.Background(), HeadlineOptions{FeedID: 7, Limit: 600})
	require.NoError(t, err)
	assert.Len(t, articles, 450)
	assert.Equal(t, []int{0, 200, 400}, skips)
	assert.Equal(t, int64(1), articles[0].ID)
	assert.Equal(t, int64(450), articles[449].ID)
}

func TestSetArticleFieldParams(t *testing.T) {
	f := newFakeServer()
	var got map[string]interface{}
	f.handle = func(op string, params map[string]interface{}) (interface{}, bool) {
		if op == "updateArticle" {
			got = params
			return map[string]interface{}{"status": "OK", "updated": 3}, true
		}
		return nil, false
	}
	client, _ := newTestClient(t, f)

	err := client.SetArticleField(context.Background(), []int64{1, 2, 3}, FieldUnread, 0)
	require.NoError(t, err)
	assert.Equal(t, "1,2,3", got["article_ids"])
	assert.Equal(t, float64(FieldUnread), got["field"])
	assert.Equal(t, float64(0), got["mode"])
}

func TestQuotedNumbersTolerated(t *testing.T) {
	f := newFakeServer()
	f.handle = func(op string, params map[string]interface{}) (interface{}, bool) {
		if op == "getFeeds" {
			return []map[string]interface{}{
				{"id": "12", "cat_id": "3", "title": "Quoted", "feed_url": "http://x", "unread": "7"},
			}, true
		}
		return nil, false
	}
	client, _ := newTestClient(t, f)

	feeds, err := client.GetFeeds(context.Background())
	require.NoError(t, err)
	require.Len(t, feeds, 1)
	assert.Equal(t, int64(12), feeds[0].ID)
	assert.Equal(t, int64(3), feeds[0].CategoryID)
	assert.Equal(t, 7, feeds[0].Unread)
}
