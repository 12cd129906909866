package innertube

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"strconv"
	"strings"
	"time"
)

// Client issues Innertube player requests and watch page fetches.
type Client struct {
	cfg Config
}

func NewClient(cfg Config) *Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Client{cfg: cfg}
}

func (c *Client) origin(profile ClientProfile) string {
	if c.cfg.BaseURL != "" {
		return strings.TrimRight(c.cfg.BaseURL, "/")
	}
	host := profile.Host
	if host == "" {
		host = "www.youtube.com"
	}
	return "https://" + host
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.RequestTimeout > 0 {
		return context.WithTimeout(ctx, c.cfg.RequestTimeout)
	}
	return context.WithCancel(ctx)
}

// Cookies returns the jar cookies sent to the profile's host.
func (c *Client) Cookies(profile ClientProfile) []*http.Cookie {
	if c.cfg.HTTPClient.Jar == nil {
		return nil
	}
	u, err := neturl.Parse(c.origin(profile))
	if err != nil {
		return nil
	}
	return c.cfg.HTTPClient.Jar.Cookies(u)
}

// WatchPage fetches the HTML watch page of a video.
func (c *Client) WatchPage(ctx context.Context, videoID string) ([]byte, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	watchURL := c.origin(WebClient) + "/watch?v=" + neturl.QueryEscape(videoID) + "&hl=en"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, watchURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", WebClient.UserAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPStatusError{Client: "watch", StatusCode: resp.StatusCode}
	}
	return io.ReadAll(resp.Body)
}

// Player posts a /player request for videoID using profile.
func (c *Client) Player(ctx context.Context, profile ClientProfile, videoID string, watch WatchConfig) (*PlayerResponse, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	apiKey := profile.APIKey
	if watch.APIKey != "" && profile.Host == WebClient.Host {
		apiKey = watch.APIKey
	}
	endpoint := c.origin(profile) + "/youtubei/v1/player?prettyPrint=false"
	if apiKey != "" {
		endpoint += "&key=" + neturl.QueryEscape(apiKey)
	}

	cookies := c.Cookies(profile)
	opts := PlayerRequestOptions{
		VisitorData:        ResolveVisitorData(cookies, firstNonEmpty(c.cfg.VisitorData, watch.VisitorData)),
		SignatureTimestamp: watch.SignatureTimestamp,
	}
	body, err := MarshalRequest(NewPlayerRequest(profile, videoID, opts))
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	origin := c.origin(profile)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", profile.UserAgent)
	httpReq.Header.Set("Origin", origin)
	httpReq.Header.Set("Referer", origin+"/watch?v="+videoID)
	httpReq.Header.Set("X-Youtube-Client-Name", strconv.Itoa(profile.ContextNameID))
	httpReq.Header.Set("X-Youtube-Client-Version", profile.Version)
	if opts.VisitorData != "" {
		httpReq.Header.Set("X-Goog-Visitor-Id", opts.VisitorData)
	}
	if profile.SupportsCookies {
		for k, v := range SessionHeaders(cookies, origin, c.cfg.Now(), watch.Auth) {
			httpReq.Header[k] = v
		}
	}
	for k, values := range c.cfg.RequestHeaders {
		for _, v := range values {
			httpReq.Header.Add(k, v)
		}
	}
	for k, values := range profile.Headers {
		for _, v := range values {
			httpReq.Header.Add(k, v)
		}
	}

	resp, err := c.cfg.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPStatusError{Client: profile.Name, StatusCode: resp.StatusCode}
	}

	var playerResp PlayerResponse
	if err := json.NewDecoder(resp.Body).Decode(&playerResp); err != nil {
		return nil, fmt.Errorf("decode player response client=%s: %w", profile.Name, err)
	}
	if !playerResp.PlayabilityStatus.Playable() {
		return nil, &PlayabilityError{
			Client: profile.Name,
			Status: playerResp.PlayabilityStatus.Status,
			Reason: playerResp.PlayabilityStatus.Reason,
		}
	}
	return &playerResp, nil
}
