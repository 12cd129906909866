// Package catalog turns normalized variants into the ranked, bucketed list
// offered to the user.
package catalog

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"

	"github.com/famomatic/tubemux/internal/formats"
	"github.com/famomatic/tubemux/internal/types"
)

// ErrNoFormatsAvailable is returned by Build when nothing downloadable survives.
var ErrNoFormatsAvailable = fmt.Errorf("catalog: %w", types.ErrNoFormatsAvailable)

var resolutionRank = map[string]int{
	"2160p": 8,
	"1440p": 7,
	"1080p": 6,
	"720p":  5,
	"480p":  4,
	"360p":  3,
	"240p":  2,
	"144p":  1,
}

var labelHeightPattern = regexp.MustCompile(`^(\d{2,4})p`)

// Entry is one ranked catalog row.
type Entry struct {
	formats.Variant
	Category formats.Category
}

// Catalog is the deduplicated and ranked set of variants.
type Catalog struct {
	Entries   []Entry
	Muxed     []formats.Variant
	VideoOnly []formats.Variant
	AudioOnly []formats.Variant
}

// Build deduplicates, classifies and ranks variants.
func Build(variants []formats.Variant) (*Catalog, error) {
	unique := Dedup(variants)

	entries := make([]Entry, 0, len(unique))
	for _, v := range unique {
		c := v.Category()
		if c == formats.CategoryNone || v.URL == "" {
			continue
		}
		entries = append(entries, Entry{Variant: v, Category: c})
	}
	if len(entries) == 0 {
		return nil, ErrNoFormatsAvailable
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return compareKeys(sortKey(entries[i]), sortKey(entries[j]))
	})

	cat := &Catalog{Entries: entries}
	for _, e := range entries {
		switch e.Category {
		case formats.CategoryMuxed:
			cat.Muxed = append(cat.Muxed, e.Variant)
		case formats.CategoryVideoOnly:
			cat.VideoOnly = append(cat.VideoOnly, e.Variant)
		case formats.CategoryAudioOnly:
			cat.AudioOnly = append(cat.AudioOnly, e.Variant)
		}
	}
	return cat, nil
}

// Dedup keeps one variant per identity, preferring the first one with a URL.
// Identity is the itag when present, else (quality, container, category).
func Dedup(variants []formats.Variant) []formats.Variant {
	type groupKey struct {
		itag      int
		quality   string
		container string
		category  formats.Category
	}
	index := make(map[groupKey]int, len(variants))
	out := make([]formats.Variant, 0, len(variants))
	for _, v := range variants {
		key := groupKey{itag: v.Itag}
		if v.Itag <= 0 {
			key = groupKey{quality: v.Quality, container: v.Container, category: v.Category()}
		}
		pos, seen := index[key]
		if !seen {
			index[key] = len(out)
			out = append(out, v)
			continue
		}
		if out[pos].URL == "" && v.URL != "" {
			out[pos] = v
		}
	}
	return out
}

// ResolutionRank places a quality label on the fixed ladder. Unmapped labels
// rank by height when it is known so that e.g. 4320p sits above 2160p.
func ResolutionRank(quality string, height int) int {
	if rank, ok := resolutionRank[quality]; ok {
		return rank
	}
	if height <= 0 {
		height = labelHeight(quality)
	}
	if height <= 0 {
		return 0
	}
	if height > 2160 {
		return resolutionRank["2160p"] + 1
	}
	return resolutionRank[formats.HeightLabel(height)]
}

// labelHeight reads the leading height of labels like "1080p60" or "720p HDR".
func labelHeight(label string) int {
	m := labelHeightPattern.FindStringSubmatch(label)
	if len(m) < 2 {
		return 0
	}
	h, _ := strconv.Atoi(m[1])
	return h
}

func sortKey(e Entry) []int {
	return []int{
		int(e.Category),
		ResolutionRank(e.Quality, e.Height),
		e.Height,
		e.Bitrate,
	}
}

func compareKeys(a, b []int) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] == b[i] {
			continue
		}
		return a[i] > b[i]
	}
	return false
}

// Variants returns the ranked variants without bucket annotations.
func (c *Catalog) Variants() []formats.Variant {
	out := make([]formats.Variant, len(c.Entries))
	for i, e := range c.Entries {
		out[i] = e.Variant
	}
	return out
}

// Find returns the variant with the given itag.
func (c *Catalog) Find(itag int) (formats.Variant, bool) {
	for _, e := range c.Entries {
		if e.Itag == itag {
			return e.Variant, true
		}
	}
	return formats.Variant{}, false
}

// BestAudio returns the top ranked audio-only variant.
func (c *Catalog) BestAudio() (formats.Variant, bool) {
	if len(c.AudioOnly) == 0 {
		return formats.Variant{}, false
	}
	return c.AudioOnly[0], true
}
