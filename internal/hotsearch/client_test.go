package hotsearch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hotbot/pkg/logx"
)

// newEnvelope builds a response body whose item list is a JSON-encoded
// string, matching the live API.
func newEnvelope(t *testing.T, code int, items any) []byte {
	t.Helper()
	listBytes, err := json.Marshal(items)
	require.NoError(t, err)
	body, err := json.Marshal(map[string]any{
		"code": code,
		"msg":  "ok",
		"data": map[string]any{
			"list":           string(listBytes),
			"sub_tab":        "realtime",
			"current_page":   1,
			"last_list_time": 1714212000,
		},
	})
	require.NoError(t, err)
	return body
}

func TestFetchDecodesNestedList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		q := r.URL.Query()
		assert.Equal(t, "baidu", q.Get("tab"))
		assert.Equal(t, "realtime", q.Get("sub_tab"))
		assert.Equal(t, "1", q.Get("page"))
		assert.Equal(t, "1", q.Get("version"))
		w.Header().Set("Content-Type", "application/json")
		w.Write(newEnvelope(t, 200, []map[string]any{
			{"item_key": "k1", "word": "breaking story", "desc": "details", "hot_score": "123456", "hot_tag": "hot"},
			{"item_key": "k2", "title": "second story", "hot_value": 98765, "www_url": "https://example.com/2"},
		}))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, AuthToken: "Bearer test-token"}, logx.Nop())
	feed, err := c.Fetch(context.Background(), "baidu", "realtime", 1)
	require.NoError(t, err)

	assert.Equal(t, "baidu", feed.Tab)
	assert.Equal(t, "realtime", feed.SubTab)
	assert.Equal(t, 1, feed.Page)
	assert.Equal(t, time.Unix(1714212000, 0), feed.LastUpdated)

	require.Len(t, feed.Items, 2)
	assert.Equal(t, Item{Key: "k1", Title: "breaking story", Summary: "details", Score: "123456", Tag: "hot"}, feed.Items[0])
	// Numeric heat values and the title/url fallbacks normalize too.
	assert.Equal(t, "second story", feed.Items[1].Title)
	assert.Equal(t, "98765", feed.Items[1].Score)
	assert.Equal(t, "https://example.com/2", feed.Items[1].URL)
}

func TestFetchEmptyList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":200,"msg":"ok","data":{"sub_tab":"realtime","current_page":1}}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL}, logx.Nop())
	feed, err := c.Fetch(context.Background(), "weibo", "realtime", 0)
	require.NoError(t, err)
	assert.Empty(t, feed.Items)
	assert.Equal(t, 1, feed.Page)
	assert.True(t, feed.LastUpdated.IsZero())
}

func TestFetchEnvelopeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":401,"msg":"unauthorized","data":{}}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL}, logx.Nop())
	_, err := c.Fetch(context.Background(), "baidu", "realtime", 1)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 401, apiErr.Code)
	assert.Contains(t, apiErr.Error(), "unauthorized")
}

func TestFetchHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL}, logx.Nop())
	_, err := c.Fetch(context.Background(), "baidu", "realtime", 1)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, 0, apiErr.Code)
}

func TestFetchContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := New(Config{BaseURL: srv.URL}, logx.Nop())
	_, err := c.Fetch(ctx, "baidu", "realtime", 1)
	require.Error(t, err)
}

func TestFetchRejectsEmptyTab(t *testing.T) {
	c := New(Config{}, logx.Nop())
	_, err := c.Fetch(context.Background(), "", "realtime", 1)
	require.Error(t, err)
}
