package formats

import (
	"fmt"
	"math"
	"mime"
	"strconv"
	"strings"

	"github.com/famomatic/tubemux/internal/innertube"
)

const mebibyte = 1024 * 1024

var audioCodecPrefixes = []string{"mp4a", "opus", "vorbis", "ac-3", "ec-3", "mp3", "flac"}

// FromPlayerResponse lists the combined formats followed by the adaptive formats of resp.
func FromPlayerResponse(resp *innertube.PlayerResponse) []Raw {
	if resp == nil {
		return nil
	}
	all := resp.StreamingData.All()
	out := make([]Raw, 0, len(all))
	for _, f := range all {
		out = append(out, Streaming{Format: f})
	}
	return out
}

// NormalizeAll converts every raw record, collecting the skipped ones.
func NormalizeAll(raws []Raw) Result {
	var res Result
	for i, raw := range raws {
		v, skip, ok := Normalize(raw)
		if !ok {
			skip.Index = i
			res.Skipped = append(res.Skipped, skip)
			continue
		}
		res.Variants = append(res.Variants, v)
	}
	return res
}

// Normalize converts one raw record. When ok is false the Skip explains why.
func Normalize(raw Raw) (v Variant, skip Skip, ok bool) {
	switch r := raw.(type) {
	case Listed:
		return normalizeListed(r)
	case *Listed:
		if r != nil {
			return normalizeListed(*r)
		}
	case Streaming:
		return normalizeStreaming(r)
	case *Streaming:
		if r != nil {
			return normalizeStreaming(*r)
		}
	case BestEffort:
		return normalizeBestEffort(r)
	case *BestEffort:
		if r != nil {
			return normalizeBestEffort(*r)
		}
	}
	return Variant{}, Skip{Reason: SkipUnknownShape}, false
}

// record is the shape-independent view the derivation rules work on.
type record struct {
	shape         Shape
	itag          int
	url           string
	ciphered      bool
	mimeType      string
	label         string
	quality       string
	container     string
	tracks        *Tracks
	contentLength int64
	bitrate       int
	audioBitrate  int
	audioQuality  string
	audioChannels int
	width         int
	height        int
	fps           int
}

func normalizeListed(r Listed) (Variant, Skip, bool) {
	return build(record{
		shape:         ShapeListed,
		itag:          r.Itag,
		url:           r.URL,
		ciphered:      r.Cipher != "",
		mimeType:      r.MimeType,
		label:         r.QualityLabel,
		quality:       r.Quality,
		container:     r.Container,
		tracks:        r.Tracks,
		contentLength: r.ContentLength,
		bitrate:       r.Bitrate,
		audioBitrate:  r.AudioBitrate,
		audioQuality:  r.AudioQuality,
		audioChannels: r.AudioChannels,
		width:         r.Width,
		height:        r.Height,
		fps:           r.FPS,
	})
}

func normalizeStreaming(r Streaming) (Variant, Skip, bool) {
	f := r.Format
	contentLength, _ := strconv.ParseInt(strings.TrimSpace(f.ContentLength), 10, 64)
	bitrate := f.AverageBitrate
	if bitrate == 0 {
		bitrate = f.Bitrate
	}
	return build(record{
		shape:         ShapeStreaming,
		itag:          f.Itag,
		url:           f.URL,
		ciphered:      f.SignatureCipher != "" || f.Cipher != "",
		mimeType:      f.MimeType,
		label:         f.QualityLabel,
		quality:       f.Quality,
		contentLength: contentLength,
		bitrate:       f.Bitrate,
		audioBitrate:  audioBitrateFor(f, bitrate),
		audioQuality:  f.AudioQuality,
		audioChannels: f.AudioChannels,
		width:         f.Width,
		height:        f.Height,
		fps:           f.FPS,
	})
}

func normalizeBestEffort(r BestEffort) (Variant, Skip, bool) {
	return build(record{
		shape:         ShapeBestEffort,
		itag:          r.Itag,
		url:           r.URL,
		mimeType:      r.MimeType,
		label:         r.Label,
		tracks:        r.Tracks,
		contentLength: r.ContentLength,
		height:        r.Height,
	})
}

// audioBitrateFor only reports a bitrate for records carrying audio markers.
func audioBitrateFor(f innertube.Format, bitrate int) int {
	if f.AudioQuality == "" && f.AudioChannels == 0 && f.AudioSampleRate == "" {
		return 0
	}
	return bitrate
}

func build(r record) (Variant, Skip, bool) {
	skip := Skip{Shape: r.shape, Itag: r.itag}
	url := strings.TrimSpace(r.url)
	if url == "" {
		skip.Reason = SkipMissingURL
		if r.ciphered {
			skip.Reason = SkipCipherUnresolved
		}
		return Variant{}, skip, false
	}

	hasAudio, hasVideo := deriveTracks(r)
	v := Variant{
		Itag:          r.itag,
		URL:           url,
		HasAudio:      hasAudio,
		HasVideo:      hasVideo,
		Bitrate:       r.bitrate,
		FPS:           r.fps,
		Width:         r.width,
		Height:        r.height,
		MimeType:      r.mimeType,
		ContentLength: r.contentLength,
	}
	if v.Bitrate == 0 {
		v.Bitrate = r.audioBitrate
	}
	v.Quality = deriveQuality(r, hasVideo)
	v.Container = deriveContainer(r, hasAudio && !hasVideo)
	v.FileSize = SizeLabel(r.contentLength)
	return v, Skip{}, true
}

func deriveTracks(r record) (hasAudio, hasVideo bool) {
	mediaType, codecs := parseMime(r.mimeType)
	switch {
	case strings.HasPrefix(mediaType, "video/"):
		hasVideo = true
		hasAudio = codecsIncludeAudio(codecs)
	case strings.HasPrefix(mediaType, "audio/"):
		hasAudio = true
	}
	if r.tracks != nil {
		hasAudio = hasAudio || r.tracks.Audio
		hasVideo = hasVideo || r.tracks.Video
	}
	if hasAudio || hasVideo {
		return hasAudio, hasVideo
	}

	hasVideo = r.width > 0 || r.height > 0 || r.label != ""
	hasAudio = r.audioQuality != "" || r.audioBitrate > 0 || r.audioChannels > 0
	if !hasAudio && !hasVideo {
		hasAudio = true
	}
	return hasAudio, hasVideo
}

func deriveQuality(r record, hasVideo bool) string {
	if !hasVideo {
		if kbps := toKbps(r.audioBitrate); kbps > 0 {
			return fmt.Sprintf("%dkbps", kbps)
		}
		return "Audio"
	}
	if label := strings.TrimSpace(r.label); label != "" {
		return label
	}
	if r.height > 0 {
		return HeightLabel(r.height)
	}
	if q := strings.TrimSpace(r.quality); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n > 0 {
			return strconv.Itoa(n) + "p"
		}
		return q
	}
	return "Unknown"
}

func deriveContainer(r record, audioOnly bool) string {
	if c := strings.ToLower(strings.TrimSpace(r.container)); c != "" {
		return c
	}
	mediaType, _ := parseMime(r.mimeType)
	if _, sub, ok := strings.Cut(mediaType, "/"); ok && sub != "" {
		return sub
	}
	if audioOnly && r.shape == ShapeListed {
		return "mp3"
	}
	return "mp4"
}

// toKbps accepts either kbps or bps; values of 1000 and above are treated as bps.
func toKbps(bitrate int) int {
	if bitrate >= 1000 {
		return int(math.Round(float64(bitrate) / 1000))
	}
	return bitrate
}

func parseMime(mimeType string) (mediaType, codecs string) {
	mimeType = strings.TrimSpace(mimeType)
	if mimeType == "" {
		return "", ""
	}
	mt, params, err := mime.ParseMediaType(mimeType)
	if err == nil {
		return strings.ToLower(mt), params["codecs"]
	}
	head, tail, _ := strings.Cut(mimeType, ";")
	if _, value, ok := strings.Cut(tail, "codecs="); ok {
		codecs = strings.Trim(strings.TrimSpace(value), `"`)
	}
	return strings.ToLower(strings.TrimSpace(head)), codecs
}

func codecsIncludeAudio(codecs string) bool {
	for _, c := range strings.Split(codecs, ",") {
		c = strings.ToLower(strings.TrimSpace(c))
		for _, prefix := range audioCodecPrefixes {
			if strings.HasPrefix(c, prefix) {
				return true
			}
		}
	}
	return false
}

// HeightLabel maps a pixel height onto the fixed quality ladder.
func HeightLabel(height int) string {
	switch {
	case height >= 2160:
		return "2160p"
	case height >= 1440:
		return "1440p"
	case height >= 1080:
		return "1080p"
	case height >= 720:
		return "720p"
	case height >= 480:
		return "480p"
	case height >= 360:
		return "360p"
	case height >= 240:
		return "240p"
	}
	return "144p"
}

// SizeLabel renders a byte count as whole mebibytes, or "" when unknown.
func SizeLabel(contentLength int64) string {
	if contentLength <= 0 {
		return ""
	}
	return fmt.Sprintf("%d MB", int64(math.Round(float64(contentLength)/mebibyte)))
}
