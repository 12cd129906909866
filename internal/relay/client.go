package relay

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client fetches media through a remote tubemux /relay endpoint.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Open requests upstreamURL from the remote relay.
func (c *Client) Open(ctx context.Context, upstreamURL string) (*Stream, error) {
	endpoint := strings.TrimRight(c.BaseURL, "/") + "/relay?" + url.Values{"url": {upstreamURL}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &Error{Code: CodeInvalidURL, Message: "invalid relay url", Err: err}
	}
	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &Error{Code: CodeTransport, Message: "relay request failed", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		var body errorBody
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body)
		rerr := statusError(resp.StatusCode, parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()))
		if body.Code != "" {
			rerr.Code = body.Code
		}
		if body.Error != "" {
			rerr.Message = body.Error
		}
		return nil, rerr
	}
	length := resp.ContentLength
	if length < 0 {
		length = 0
	}
	return &Stream{
		Body:          resp.Body,
		ContentType:   resp.Header.Get("Content-Type"),
		ContentLength: length,
		AcceptRanges:  resp.Header.Get("Accept-Ranges"),
		CacheControl:  resp.Header.Get("Cache-Control"),
	}, nil
}

// Fetch reads the whole relayed body.
func (c *Client) Fetch(ctx context.Context, upstreamURL string) ([]byte, error) {
	s, err := c.Open(ctx, upstreamURL)
	if err != nil {
		return nil, err
	}
	defer s.Body.Close()
	body, err := io.ReadAll(s.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &Error{Code: CodeTransport, Message: "relay body read failed", Err: err}
	}
	return body, nil
}
