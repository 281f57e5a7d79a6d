// Package onebot delivers messages through a local OneBot v11 HTTP API
// (NapCat, go-cqhttp and friends expose the same surface).
package onebot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"hotbot/pkg/logx"
)

const (
	defaultTimeout = 10 * time.Second
	defaultRate    = 2 // messages per second

	maxBodyBytes = 1 << 20
)

// Config locates the OneBot HTTP endpoint.
type Config struct {
	Host       string
	Port       int
	Token      string // access token, empty when the endpoint is open
	RatePerSec int    // outbound message rate limit, <=0 means default
	Timeout    time.Duration
}

// Segment is one element of a OneBot message array.
type Segment struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// Text builds a plain text segment.
func Text(text string) Segment {
	return Segment{Type: "text", Data: map[string]any{"text": text}}
}

// MusicCard builds a custom music share card. The receiving client renders it
// as a tappable card with cover art and an audio stream.
func MusicCard(pageURL, audioURL, title, imageURL, singer string) Segment {
	return Segment{Type: "music", Data: map[string]any{
		"type":   "custom",
		"url":    pageURL,
		"audio":  audioURL,
		"title":  title,
		"image":  imageURL,
		"singer": singer,
	}}
}

// APIError is a request the OneBot endpoint accepted but refused to execute.
type APIError struct {
	Action  string
	Retcode int
	Wording string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("onebot: %s failed: retcode %d (%s)", e.Action, e.Retcode, e.Wording)
}

// Sender pushes messages to groups and users. All sends share one rate
// limiter so a burst of plugins firing together cannot flood the endpoint.
type Sender struct {
	base    string
	token   string
	hc      *http.Client
	limiter *rate.Limiter
	log     logx.Logger
}

// NewSender builds a sender for the configured endpoint.
func NewSender(cfg Config, log logx.Logger) *Sender {
	host := cfg.Host
	if host == "" {
		host = "127.0.0.1"
	}
	port := cfg.Port
	if port == 0 {
		port = 3000
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	perSec := cfg.RatePerSec
	if perSec <= 0 {
		perSec = defaultRate
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Sender{
		base:    fmt.Sprintf("http://%s:%d", host, port),
		token:   cfg.Token,
		hc:      &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(perSec), perSec),
		log:     log.With(logx.String("component", "onebot")),
	}
}

// SendGroup delivers a message to a group chat.
func (s *Sender) SendGroup(ctx context.Context, groupID int64, segs ...Segment) error {
	return s.post(ctx, "send_group_msg", map[string]any{
		"group_id": groupID,
		"message":  segs,
	})
}

// SendPrivate delivers a message to a single user.
func (s *Sender) SendPrivate(ctx context.Context, userID int64, segs ...Segment) error {
	return s.post(ctx, "send_private_msg", map[string]any{
		"user_id": userID,
		"message": segs,
	})
}

type apiResponse struct {
	Status  string `json:"status"`
	Retcode int    `json:"retcode"`
	Wording string `json:"wording"`
	Msg     string `json:"msg"`
}

func (s *Sender) post(ctx context.Context, action string, payload any) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("onebot: rate wait: %w", err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("onebot: encode %s: %w", action, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.base+"/"+action, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("onebot: build %s: %w", action, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.hc.Do(req)
	if err != nil {
		return fmt.Errorf("onebot: %s: %w", action, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("onebot: read %s response: %w", action, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("onebot: %s: http %d", action, resp.StatusCode)
	}

	var ar apiResponse
	if err := json.Unmarshal(raw, &ar); err != nil {
		return fmt.Errorf("onebot: decode %s response: %w", action, err)
	}
	if ar.Status == "failed" || (ar.Retcode != 0 && ar.Status != "async") {
		wording := ar.Wording
		if wording == "" {
			wording = ar.Msg
		}
		return &APIError{Action: action, Retcode: ar.Retcode, Wording: wording}
	}

	s.log.Debug("message sent", logx.String("action", action))
	return nil
}
