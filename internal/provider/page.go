package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
	"github.com/rs/zerolog"

	"github.com/famomatic/tubemux/internal/formats"
	"github.com/famomatic/tubemux/internal/innertube"
)

const (
	defaultPageBaseURL   = "https://www.youtube.com"
	defaultPageUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	playerResponseMarker = "ytInitialPlayerResponse"
)

var (
	lengthSecondsPattern = regexp.MustCompile(`"lengthSeconds":"(\d+)"`)
	isoDurationPattern   = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`)
)

// PageStrategy scrapes oEmbed metadata and the watch page HTML.
type PageStrategy struct {
	HTTPClient *http.Client
	BaseURL    string
	UserAgent  string
	Logger     zerolog.Logger
}

type oEmbed struct {
	Title        string `json:"title"`
	AuthorName   string `json:"author_name"`
	ThumbnailURL string `json:"thumbnail_url"`
}

func (s *PageStrategy) Name() string { return "page" }

func (s *PageStrategy) Extract(ctx context.Context, videoID string) (*Extraction, error) {
	log := s.Logger.With().Str("video_id", videoID).Logger()

	meta, oembedErr := s.oEmbed(ctx, videoID)
	if oembedErr != nil {
		oembedErr = classify(oembedErr)
		log.Debug().Err(oembedErr).Msg("oembed lookup failed")
	}

	ext, pageErr := s.watchPage(ctx, videoID)
	if pageErr != nil {
		log.Debug().Err(pageErr).Msg("watch page scrape failed")
	}

	switch {
	case meta == nil && ext == nil:
		if oembedErr != nil {
			return nil, oembedErr
		}
		return nil, pageErr
	case ext == nil:
		ext = &Extraction{}
	}
	if meta != nil {
		ext.Title = firstNonEmpty(meta.Title, ext.Title)
		ext.Thumbnail = firstNonEmpty(meta.ThumbnailURL, ext.Thumbnail)
		ext.Author = firstNonEmpty(meta.AuthorName, ext.Author)
	}
	if ext.Title == "" {
		return nil, fmt.Errorf("page strategy found no metadata for %s", videoID)
	}
	return ext, nil
}

func (s *PageStrategy) oEmbed(ctx context.Context, videoID string) (*oEmbed, error) {
	q := url.Values{"url": {WatchURL(videoID)}, "format": {"json"}}
	body, err := s.get(ctx, s.baseURL()+"/oembed?"+q.Encode())
	if err != nil {
		return nil, err
	}
	var out oEmbed
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode oembed: %w", err)
	}
	return &out, nil
}

func (s *PageStrategy) watchPage(ctx context.Context, videoID string) (*Extraction, error) {
	body, err := s.get(ctx, s.baseURL()+"/watch?v="+url.QueryEscape(videoID)+"&hl=en")
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("parse watch page: %w", err)
	}

	ext := &Extraction{
		Title:     metaContent(doc, `meta[property="og:title"]`, `meta[name="title"]`),
		Thumbnail: metaContent(doc, `meta[property="og:image"]`),
		Author:    metaContent(doc, `link[itemprop="name"]`, `span[itemprop="author"] link[itemprop="name"]`),
	}
	if ext.Author == "" {
		ext.Author = doc.Find(`span[itemprop="author"] link[itemprop="name"]`).AttrOr("content", "")
	}
	if m := lengthSecondsPattern.FindSubmatch(body); len(m) == 2 {
		ext.DurationSeconds = string(m[1])
	} else if iso := metaContent(doc, `meta[itemprop="duration"]`); iso != "" {
		ext.DurationSeconds = isoDurationSeconds(iso)
	}
	if date := metaContent(doc, `meta[itemprop="datePublished"]`, `meta[itemprop="uploadDate"]`); date != "" {
		if t, err := dateparse.ParseAny(date); err == nil {
			ext.UploadDate = t
		}
	}

	doc.Find("script").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := sel.Text()
		if !strings.Contains(text, playerResponseMarker) {
			return true
		}
		resp, ok := decodeInitialPlayerResponse(text)
		if !ok {
			return true
		}
		if ext.Title == "" {
			ext.Title = resp.VideoDetails.Title
		}
		if ext.DurationSeconds == "" {
			ext.DurationSeconds = resp.VideoDetails.LengthSeconds
		}
		ext.Raw = progressiveRecords(resp)
		return false
	})
	return ext, nil
}

// progressiveRecords keeps combined formats that carry a direct URL.
func progressiveRecords(resp *innertube.PlayerResponse) []formats.Raw {
	var out []formats.Raw
	for _, f := range resp.StreamingData.Formats {
		if f.URL == "" {
			continue
		}
		length, _ := strconv.ParseInt(f.ContentLength, 10, 64)
		out = append(out, formats.BestEffort{
			Itag:          f.Itag,
			URL:           f.URL,
			MimeType:      f.MimeType,
			Label:         f.QualityLabel,
			Tracks:        &formats.Tracks{Audio: true, Video: true},
			ContentLength: length,
			Height:        f.Height,
		})
	}
	return out
}

func decodeInitialPlayerResponse(script string) (*innertube.PlayerResponse, bool) {
	idx := strings.Index(script, playerResponseMarker)
	if idx < 0 {
		return nil, false
	}
	rest := script[idx+len(playerResponseMarker):]
	start := strings.IndexByte(rest, '{')
	if start < 0 {
		return nil, false
	}
	var resp innertube.PlayerResponse
	if err := json.NewDecoder(strings.NewReader(rest[start:])).Decode(&resp); err != nil {
		return nil, false
	}
	return &resp, true
}

func metaContent(doc *goquery.Document, selectors ...string) string {
	for _, sel := range selectors {
		if v := strings.TrimSpace(doc.Find(sel).First().AttrOr("content", "")); v != "" {
			return v
		}
	}
	return ""
}

func isoDurationSeconds(iso string) string {
	m := isoDurationPattern.FindStringSubmatch(iso)
	if m == nil {
		return ""
	}
	var total time.Duration
	for i, unit := range []time.Duration{time.Hour, time.Minute, time.Second} {
		if n, err := strconv.Atoi(m[i+1]); err == nil {
			total += time.Duration(n) * unit
		}
	}
	return strconv.Itoa(int(total.Seconds()))
}

func (s *PageStrategy) baseURL() string {
	if s.BaseURL != "" {
		return strings.TrimRight(s.BaseURL, "/")
	}
	return defaultPageBaseURL
}

func (s *PageStrategy) get(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	ua := s.UserAgent
	if ua == "" {
		ua = defaultPageUserAgent
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	client := s.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &innertube.HTTPStatusError{Client: "page", StatusCode: resp.StatusCode}
	}
	return io.ReadAll(resp.Body)
}
