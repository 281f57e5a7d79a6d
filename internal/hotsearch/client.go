// Package hotsearch fetches trending feeds from the rebang.today item API.
//
// The API serves every feed through a single endpoint, selected by a
// (tab, sub_tab) pair. The payload has one quirk: the item list arrives as a
// JSON-encoded string nested inside the JSON envelope, so decoding happens in
// two steps.
package hotsearch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"hotbot/pkg/logx"
)

const (
	// DefaultBaseURL is the public item endpoint.
	DefaultBaseURL = "https://api.rebang.today/v1/items"

	defaultTimeout = 15 * time.Second
	apiVersion     = 1

	// maxBodyBytes caps how much of a response we are willing to buffer.
	maxBodyBytes = 4 << 20
)

// Config carries the knobs the composition root reads from file.
type Config struct {
	BaseURL   string
	AuthToken string // sent verbatim in the Authorization header
	Timeout   time.Duration
}

// Item is one entry of a trending feed, normalized across tabs. Feeds name
// their fields inconsistently (word vs title, hot_score vs hot_value), so the
// decoder folds the variants into one shape.
type Item struct {
	Key     string // stable per-item key assigned by the API
	Title   string
	Summary string
	URL     string
	Score   string // formatted heat value, empty when the feed has none
	Tag     string // "hot", "new", ... when the feed marks items
}

// Feed is the decoded result of one Fetch call.
type Feed struct {
	Tab         string
	SubTab      string
	Page        int
	LastUpdated time.Time // zero when the API omits last_list_time
	Items       []Item
}

// APIError reports a request the server answered but rejected, either at the
// HTTP layer or inside the envelope.
type APIError struct {
	Status int // HTTP status, 200 when the envelope carried the failure
	Code   int // envelope code, 0 for plain HTTP failures
	Msg    string
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("hotsearch: api code %d: %s", e.Code, e.Msg)
	}
	return fmt.Sprintf("hotsearch: http %d: %s", e.Status, e.Msg)
}

// Client is a stateless fetcher, safe for concurrent use.
type Client struct {
	baseURL string
	auth    string
	hc      *http.Client
	log     logx.Logger
}

// New builds a client. Zero config fields fall back to defaults; an empty
// auth token means no Authorization header is sent.
func New(cfg Config, log logx.Logger) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{
		baseURL: base,
		auth:    cfg.AuthToken,
		hc:      &http.Client{Timeout: timeout},
		log:     log.With(logx.String("component", "hotsearch")),
	}
}

// Fetch retrieves one page of the (tab, subTab) feed.
func (c *Client) Fetch(ctx context.Context, tab, subTab string, page int) (*Feed, error) {
	if tab == "" {
		return nil, fmt.Errorf("hotsearch: empty tab")
	}
	if page < 1 {
		page = 1
	}

	q := url.Values{}
	q.Set("tab", tab)
	q.Set("sub_tab", subTab)
	q.Set("page", strconv.Itoa(page))
	q.Set("version", strconv.Itoa(apiVersion))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("hotsearch: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9")
	req.Header.Set("Origin", "https://rebang.today")
	req.Header.Set("Referer", "https://rebang.today/")
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/134.0.0.0 Safari/537.36")
	if c.auth != "" {
		req.Header.Set("Authorization", c.auth)
	}

	started := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("hotsearch: fetch %s/%s: %w", tab, subTab, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("hotsearch: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Status: resp.StatusCode, Msg: http.StatusText(resp.StatusCode)}
	}

	feed, err := decodeFeed(tab, body)
	if err != nil {
		return nil, err
	}
	c.log.Debug("feed fetched",
		logx.String("tab", tab),
		logx.String("sub_tab", subTab),
		logx.Int("items", len(feed.Items)),
		logx.Duration("took", time.Since(started)))
	return feed, nil
}

// envelope is the outer response shape. Data.List is itself a JSON document.
type envelope struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		List            string `json:"list"`
		SubTab          string `json:"sub_tab"`
		CurrentPage     int    `json:"current_page"`
		LastListTime    int64  `json:"last_list_time"`
		NextRefreshTime int64  `json:"next_refresh_time"`
	} `json:"data"`
}

// rawItem holds the union of field names the feeds use. flexString absorbs
// the feeds that serve numbers where others serve strings.
type rawItem struct {
	ItemKey   string     `json:"item_key"`
	ID        flexString `json:"id"`
	Word      string     `json:"word"`
	Title     string     `json:"title"`
	Desc      string     `json:"desc"`
	HotScore  flexString `json:"hot_score"`
	HotValue  flexString `json:"hot_value"`
	HeatNum   flexString `json:"heat_num"`
	HotTag    string     `json:"hot_tag"`
	Link      string     `json:"link"`
	MobileURL string     `json:"mobile_url"`
	WWWURL    string     `json:"www_url"`
}

func decodeFeed(tab string, body []byte) (*Feed, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("hotsearch: decode envelope: %w", err)
	}
	if env.Code != 200 {
		return nil, &APIError{Status: http.StatusOK, Code: env.Code, Msg: env.Msg}
	}

	listJSON := env.Data.List
	if listJSON == "" {
		listJSON = "[]"
	}
	var raws []rawItem
	if err := json.Unmarshal([]byte(listJSON), &raws); err != nil {
		return nil, fmt.Errorf("hotsearch: decode item list: %w", err)
	}

	feed := &Feed{
		Tab:    tab,
		SubTab: env.Data.SubTab,
		Page:   env.Data.CurrentPage,
		Items:  make([]Item, 0, len(raws)),
	}
	if feed.Page == 0 {
		feed.Page = 1
	}
	if env.Data.LastListTime > 0 {
		feed.LastUpdated = time.Unix(env.Data.LastListTime, 0)
	}
	for _, r := range raws {
		feed.Items = append(feed.Items, r.normalize())
	}
	return feed, nil
}

func (r rawItem) normalize() Item {
	it := Item{
		Key:     firstNonEmpty(r.ItemKey, string(r.ID)),
		Title:   firstNonEmpty(r.Title, r.Word),
		Summary: r.Desc,
		URL:     firstNonEmpty(r.Link, r.MobileURL, r.WWWURL),
		Score:   string(firstFlex(r.HotScore, r.HotValue, r.HeatNum)),
		Tag:     r.HotTag,
	}
	return it
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstFlex(vals ...flexString) flexString {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// flexString decodes a JSON string, number, or null into a string.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}
