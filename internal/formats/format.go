package formats

import "github.com/famomatic/tubemux/internal/innertube"

// Variant is one canonical downloadable stream.
type Variant struct {
	Itag          int    `json:"itag,omitempty"`
	Quality       string `json:"quality"`
	Container     string `json:"container"`
	URL           string `json:"url"`
	FileSize      string `json:"fileSize,omitempty"`
	HasAudio      bool   `json:"hasAudio"`
	HasVideo      bool   `json:"hasVideo"`
	Bitrate       int    `json:"bitrate,omitempty"`
	FPS           int    `json:"fps,omitempty"`
	Width         int    `json:"width,omitempty"`
	Height        int    `json:"height,omitempty"`
	MimeType      string `json:"mimeType,omitempty"`
	ContentLength int64  `json:"contentLength,omitempty"`
}

// Category is the display bucket of a variant.
type Category int

const (
	CategoryNone Category = iota
	CategoryAudioOnly
	CategoryVideoOnly
	CategoryMuxed
)

func (c Category) String() string {
	switch c {
	case CategoryMuxed:
		return "muxed"
	case CategoryVideoOnly:
		return "video-only"
	case CategoryAudioOnly:
		return "audio-only"
	}
	return "none"
}

func (c Category) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// Category reports which bucket v belongs to.
func (v Variant) Category() Category {
	switch {
	case v.HasVideo && v.HasAudio:
		return CategoryMuxed
	case v.HasVideo:
		return CategoryVideoOnly
	case v.HasAudio:
		return CategoryAudioOnly
	}
	return CategoryNone
}

// Shape names one of the raw record layouts the providers emit.
type Shape string

const (
	ShapeListed     Shape = "listed"
	ShapeStreaming  Shape = "streaming"
	ShapeBestEffort Shape = "best_effort"
)

// Raw is a record in one of the known raw shapes. The set is closed.
type Raw interface {
	Shape() Shape
}

// Tracks carries explicit track markers when a source knows them.
type Tracks struct {
	Audio bool
	Video bool
}

// Listed is a pre-filtered format record with consistent field names.
type Listed struct {
	Itag          int
	URL           string
	Cipher        string
	MimeType      string
	QualityLabel  string
	Quality       string
	Container     string
	Tracks        *Tracks
	ContentLength int64
	Bitrate       int
	AudioBitrate  int
	AudioQuality  string
	AudioChannels int
	Width         int
	Height        int
	FPS           int
}

// Streaming wraps a streamingData format with YouTube-native field names.
type Streaming struct {
	innertube.Format
}

// BestEffort is a minimal record chosen when richer data is unavailable.
type BestEffort struct {
	Itag          int
	URL           string
	MimeType      string
	Label         string
	Tracks        *Tracks
	ContentLength int64
	Height        int
}

func (Listed) Shape() Shape     { return ShapeListed }
func (Streaming) Shape() Shape  { return ShapeStreaming }
func (BestEffort) Shape() Shape { return ShapeBestEffort }

// SkipReason explains why a raw record produced no variant.
type SkipReason string

const (
	SkipMissingURL       SkipReason = "missing_url"
	SkipCipherUnresolved SkipReason = "cipher_unresolved"
	SkipUnknownShape     SkipReason = "unknown_shape"
)

// Skip records one rejected raw record.
type Skip struct {
	Index  int        `json:"index"`
	Shape  Shape      `json:"shape,omitempty"`
	Itag   int        `json:"itag,omitempty"`
	Reason SkipReason `json:"reason"`
}

// Result is the outcome of normalizing a batch of raw records.
type Result struct {
	Variants []Variant
	Skipped  []Skip
}
