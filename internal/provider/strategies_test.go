package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/kkdai/youtube/v2"

	"github.com/famomatic/tubemux/internal/formats"
	"github.com/famomatic/tubemux/internal/innertube"
	"github.com/famomatic/tubemux/internal/playerjs"
	"github.com/famomatic/tubemux/internal/types"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func textResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
		Header:     make(http.Header),
	}
}

const testPlayerJS = `var Xy={ab:function(a){a.reverse()},
cd:function(a,b){a.splice(0,b)},
ef:function(a,b){var c=a[0];a[0]=a[b%a.length];a[b%a.length]=c}};
Ku=function(a){a=a.split("");Xy.ab(a,1);Xy.cd(a,1);Xy.ef(a,2);return a.join("")};
Qn=function(a){var b=a.split("");b.shift();return b.join("")};
g.Ms=function(a){a.D&&(b=a.get("n"))&&(b=Qn(b),a.set("n",b))};
var cfg={signatureTimestamp:19834};`

type fakeResolver struct {
	js    string
	err   error
	calls []string
}

func (r *fakeResolver) GetPlayerJS(_ context.Context, playerURL string) (string, error) {
	r.calls = append(r.calls, playerURL)
	return r.js, r.err
}

func (r *fakeResolver) Decipherer(ctx context.Context, playerURL string) (*playerjs.Decipherer, error) {
	js, err := r.GetPlayerJS(ctx, playerURL)
	if err != nil {
		return nil, err
	}
	return playerjs.NewDecipherer(js), nil
}

func TestInnertubeStrategy_FallsThroughProfilesAndDeciphers(t *testing.T) {
	var clients []string
	var sts float64
	tr := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		switch r.URL.Path {
		case "/watch":
			return textResponse(http.StatusOK, `<script>ytcfg.set({"INNERTUBE_API_KEY":"page-key","PLAYER_JS_URL":"\/s\/player\/abcd\/player_ias.vflset\/en_US\/base.js"});</script>`), nil
		case "/youtubei/v1/player":
			var body struct {
				Context struct {
					Client struct {
						ClientName string `json:"clientName"`
					} `json:"client"`
				} `json:"context"`
				PlaybackContext struct {
					ContentPlaybackContext struct {
						SignatureTimestamp float64 `json:"signatureTimestamp"`
					} `json:"contentPlaybackContext"`
				} `json:"playbackContext"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			clients = append(clients, body.Context.Client.ClientName)
			if body.Context.Client.ClientName == "ANDROID" {
				return textResponse(http.StatusTooManyRequests, "slow down"), nil
			}
			sts = body.PlaybackContext.ContentPlaybackContext.SignatureTimestamp
			cipher := url.Values{"s": {"abcdef"}, "sp": {"sig"}, "url": {"https://rr1.example.com/videoplayback?itag=251&n=12345"}}.Encode()
			return textResponse(http.StatusOK, `{
				"playabilityStatus":{"status":"OK"},
				"videoDetails":{"videoId":"jNQXAC9IVRw","title":"Me at the zoo","lengthSeconds":"19","author":"jawed",
					"thumbnail":{"thumbnails":[{"url":"https://i.ytimg.com/small.jpg","width":120,"height":90},{"url":"https://i.ytimg.com/big.jpg","width":480,"height":360}]}},
				"microformat":{"playerMicroformatRenderer":{"publishDate":"2005-04-23"}},
				"streamingData":{
					"formats":[{"itag":18,"url":"https://rr1.example.com/videoplayback?itag=18","mimeType":"video/mp4; codecs=\"avc1.42001E, mp4a.40.2\"","height":360,"qualityLabel":"360p"}],
					"adaptiveFormats":[{"itag":251,"signatureCipher":"`+cipher+`","mimeType":"audio/webm; codecs=\"opus\"","audioQuality":"AUDIO_QUALITY_MEDIUM","averageBitrate":160000}]
				}}`), nil
		}
		return textResponse(http.StatusNotFound, ""), nil
	})
	resolver := &fakeResolver{js: testPlayerJS}
	s := &InnertubeStrategy{
		Client:   innertube.NewClient(innertube.Config{HTTPClient: &http.Client{Transport: tr}, BaseURL: "https://yt.test"}),
		Profiles: []innertube.ClientProfile{innertube.AndroidClient, innertube.WebClient},
		Player:   resolver,
	}

	ext, err := s.Extract(context.Background(), "jNQXAC9IVRw")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if strings.Join(clients, ",") != "ANDROID,WEB" {
		t.Fatalf("clients = %v", clients)
	}
	if sts != 19834 {
		t.Fatalf("signature timestamp sent = %v, want 19834", sts)
	}
	if len(resolver.calls) != 1 || !strings.Contains(resolver.calls[0], "/s/player/abcd/") {
		t.Fatalf("resolver calls = %v", resolver.calls)
	}
	if ext.Title != "Me at the zoo" || ext.DurationSeconds != "19" || ext.Author != "jawed" {
		t.Fatalf("metadata = %+v", ext)
	}
	if ext.Thumbnail != "https://i.ytimg.com/big.jpg" {
		t.Fatalf("Thumbnail = %q", ext.Thumbnail)
	}
	if want := time.Date(2005, 4, 23, 0, 0, 0, 0, time.UTC); !ext.UploadDate.Equal(want) {
		t.Fatalf("UploadDate = %v, want %v", ext.UploadDate, want)
	}

	res := formats.NormalizeAll(ext.Raw)
	if len(res.Variants) != 2 || len(res.Skipped) != 0 {
		t.Fatalf("normalized = %+v", res)
	}
	audio := res.Variants[1]
	u, err := url.Parse(audio.URL)
	if err != nil {
		t.Fatalf("audio url %q: %v", audio.URL, err)
	}
	if u.Query().Get("sig") != "cdeba" || u.Query().Get("n") != "2345" {
		t.Fatalf("audio url query = %v", u.Query())
	}
}

func TestInnertubeStrategy_StopsOnUnavailable(t *testing.T) {
	calls := 0
	tr := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		if r.URL.Path == "/watch" {
			return textResponse(http.StatusOK, "<html></html>"), nil
		}
		calls++
		return textResponse(http.StatusOK, `{"playabilityStatus":{"status":"ERROR","reason":"Video unavailable"}}`), nil
	})
	s := &InnertubeStrategy{
		Client:   innertube.NewClient(innertube.Config{HTTPClient: &http.Client{Transport: tr}, BaseURL: "https://yt.test"}),
		Profiles: []innertube.ClientProfile{innertube.AndroidClient, innertube.IOSClient, innertube.WebClient},
	}
	_, err := s.Extract(context.Background(), "jNQXAC9IVRw")
	if !errors.Is(err, types.ErrNotFound) {
		t.Fatalf("Extract() error = %v, want ErrNotFound", err)
	}
	if calls != 1 {
		t.Fatalf("player calls = %d, want 1", calls)
	}
}

type fakeVideoClient struct {
	video     *youtube.Video
	err       error
	streamURL string
}

func (c *fakeVideoClient) GetVideoContext(context.Context, string) (*youtube.Video, error) {
	return c.video, c.err
}

func (c *fakeVideoClient) GetStreamURLContext(_ context.Context, _ *youtube.Video, f *youtube.Format) (string, error) {
	if c.streamURL == "" {
		return "", errors.New("no cipher support")
	}
	return c.streamURL + "?itag=" + f.MimeType, nil
}

func TestLibraryStrategy_ConvertsFormats(t *testing.T) {
	client := &fakeVideoClient{
		streamURL: "https://rr1.example.com/deciphered",
		video: &youtube.Video{
			ID:          "jNQXAC9IVRw",
			Title:       "Me at the zoo",
			Author:      "jawed",
			Duration:    19 * time.Second,
			PublishDate: time.Date(2005, 4, 23, 0, 0, 0, 0, time.UTC),
			Thumbnails: youtube.Thumbnails{
				{URL: "https://i.ytimg.com/small.jpg", Width: 120},
				{URL: "https://i.ytimg.com/big.jpg", Width: 480},
			},
			Formats: youtube.FormatList{
				{ItagNo: 18, URL: "https://rr1.example.com/18", MimeType: `video/mp4; codecs="avc1.42001E, mp4a.40.2"`, QualityLabel: "360p", Height: 360, ContentLength: 3 * 1024 * 1024},
				{ItagNo: 140, Cipher: "s=abc&url=x", MimeType: `audio/mp4; codecs="mp4a.40.2"`, AudioQuality: "AUDIO_QUALITY_MEDIUM", AudioChannels: 2, AverageBitrate: 129000},
			},
		},
	}
	ext, err := (&LibraryStrategy{Client: client}).Extract(context.Background(), "jNQXAC9IVRw")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if ext.DurationSeconds != "19" || ext.Thumbnail != "https://i.ytimg.com/big.jpg" {
		t.Fatalf("metadata = %+v", ext)
	}
	res := formats.NormalizeAll(ext.Raw)
	if len(res.Variants) != 2 {
		t.Fatalf("len(Variants) = %d, want 2 (%+v)", len(res.Variants), res.Skipped)
	}
	if res.Variants[0].FileSize != "3 MB" || res.Variants[0].Category() != formats.CategoryMuxed {
		t.Fatalf("itag 18 = %+v", res.Variants[0])
	}
	audio := res.Variants[1]
	if audio.Quality != "129kbps" || !strings.HasPrefix(audio.URL, "https://rr1.example.com/deciphered") {
		t.Fatalf("itag 140 = %+v", audio)
	}
}

func TestLibraryStrategy_UnresolvedCipherIsSkippedLater(t *testing.T) {
	client := &fakeVideoClient{video: &youtube.Video{
		Title:   "x",
		Formats: youtube.FormatList{{ItagNo: 251, Cipher: "s=abc&url=x", MimeType: "audio/webm"}},
	}}
	ext, err := (&LibraryStrategy{Client: client}).Extract(context.Background(), "jNQXAC9IVRw")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	res := formats.NormalizeAll(ext.Raw)
	if len(res.Skipped) != 1 || res.Skipped[0].Reason != formats.SkipCipherUnresolved {
		t.Fatalf("Skipped = %+v", res.Skipped)
	}
}

func TestClassifyLibrary(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"private", youtube.ErrVideoPrivate, types.ErrNotFound},
		{"login", youtube.ErrLoginRequired, types.ErrRestricted},
		{"embed", youtube.ErrNotPlayableInEmbed, types.ErrRestricted},
		{"bad id", youtube.ErrInvalidCharactersInVideoID, types.ErrInvalidInput},
		{"bot", &youtube.ErrPlayabiltyStatus{Status: "LOGIN_REQUIRED", Reason: "Sign in to confirm you're not a bot"}, types.ErrBlocked},
		{"unavailable", &youtube.ErrPlayabiltyStatus{Status: "ERROR", Reason: "Video unavailable"}, types.ErrNotFound},
		{"status 429", youtube.ErrUnexpectedStatusCode(429), types.ErrBlocked},
		{"status 404", youtube.ErrUnexpectedStatusCode(404), types.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyLibrary(tt.err); !errors.Is(got, tt.want) {
				t.Fatalf("classifyLibrary(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

const testWatchPage = `<!DOCTYPE html><html><head>
<meta property="og:title" content="Me at the zoo (page)">
<meta property="og:image" content="https://i.ytimg.com/vi/jNQXAC9IVRw/maxresdefault.jpg">
<meta itemprop="datePublished" content="2005-04-23T20:31:52-07:00">
<meta itemprop="duration" content="PT0M19S">
</head><body>
<span itemprop="author"><link itemprop="name" content="jawed"></span>
<script>var ytInitialPlayerResponse = {"videoDetails":{"title":"inline title","lengthSeconds":"19"},"streamingData":{"formats":[
{"itag":18,"url":"https://rr1.example.com/18","mimeType":"video/mp4; codecs=\"avc1.42001E, mp4a.40.2\"","qualityLabel":"360p","height":360,"contentLength":"1048576"},
{"itag":22,"signatureCipher":"s=abc","mimeType":"video/mp4"}]}};var meta = {};</script>
</body></html>`

func TestPageStrategy_CombinesOEmbedAndWatchPage(t *testing.T) {
	tr := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		switch r.URL.Path {
		case "/oembed":
			if r.URL.Query().Get("url") != "https://www.youtube.com/watch?v=jNQXAC9IVRw" {
				t.Errorf("oembed url = %q", r.URL.Query().Get("url"))
			}
			return textResponse(http.StatusOK, `{"title":"Me at the zoo","author_name":"jawed","thumbnail_url":"https://i.ytimg.com/vi/jNQXAC9IVRw/hqdefault.jpg"}`), nil
		case "/watch":
			return textResponse(http.StatusOK, testWatchPage), nil
		}
		return textResponse(http.StatusNotFound, ""), nil
	})
	s := &PageStrategy{HTTPClient: &http.Client{Transport: tr}, BaseURL: "https://yt.test"}

	ext, err := s.Extract(context.Background(), "jNQXAC9IVRw")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if ext.Title != "Me at the zoo" || ext.Author != "jawed" {
		t.Fatalf("metadata = %+v", ext)
	}
	if ext.Thumbnail != "https://i.ytimg.com/vi/jNQXAC9IVRw/hqdefault.jpg" {
		t.Fatalf("Thumbnail = %q", ext.Thumbnail)
	}
	if ext.DurationSeconds != "19" {
		t.Fatalf("DurationSeconds = %q", ext.DurationSeconds)
	}
	if ext.UploadDate.IsZero() || ext.UploadDate.Year() != 2005 {
		t.Fatalf("UploadDate = %v", ext.UploadDate)
	}
	res := formats.NormalizeAll(ext.Raw)
	if len(res.Variants) != 1 || res.Variants[0].Itag != 18 || res.Variants[0].FileSize != "1 MB" {
		t.Fatalf("Variants = %+v", res.Variants)
	}
	if res.Variants[0].Category() != formats.CategoryMuxed {
		t.Fatalf("Category = %v, want muxed", res.Variants[0].Category())
	}
}

func TestPageStrategy_WatchPageOnly(t *testing.T) {
	tr := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		if r.URL.Path == "/watch" {
			return textResponse(http.StatusOK, strings.Replace(testWatchPage, `"lengthSeconds":"19"`, `"x":"y"`, 1)), nil
		}
		return textResponse(http.StatusInternalServerError, ""), nil
	})
	s := &PageStrategy{HTTPClient: &http.Client{Transport: tr}, BaseURL: "https://yt.test"}
	ext, err := s.Extract(context.Background(), "jNQXAC9IVRw")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if ext.Title != "Me at the zoo (page)" {
		t.Fatalf("Title = %q", ext.Title)
	}
	if ext.DurationSeconds != "19" {
		t.Fatalf("DurationSeconds from ISO duration = %q", ext.DurationSeconds)
	}
}

func TestPageStrategy_OEmbedNotFound(t *testing.T) {
	tr := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return textResponse(http.StatusNotFound, "Not Found"), nil
	})
	s := &PageStrategy{HTTPClient: &http.Client{Transport: tr}, BaseURL: "https://yt.test"}
	if _, err := s.Extract(context.Background(), "jNQXAC9IVRw"); !errors.Is(err, types.ErrNotFound) {
		t.Fatalf("Extract() error = %v, want ErrNotFound", err)
	}
}

func TestIsoDurationSeconds(t *testing.T) {
	tests := map[string]string{
		"PT19S":    "19",
		"PT4M13S":  "253",
		"PT1H0M0S": "3600",
		"P1D":      "",
		"nonsense": "",
	}
	for in, want := range tests {
		if got := isoDurationSeconds(in); got != want {
			t.Fatalf("isoDurationSeconds(%q) = %q, want %q", in, got, want)
		}
	}
}
