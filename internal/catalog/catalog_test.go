package catalog

import (
	"errors"
	"reflect"
	"testing"

	"github.com/famomatic/tubemux/internal/formats"
	"github.com/famomatic/tubemux/internal/types"
)

func TestBuild_ThreeRecordExample(t *testing.T) {
	res := formats.NormalizeAll([]formats.Raw{
		formats.Listed{Itag: 1, MimeType: "video/mp4", Height: 1080, URL: "u1"},
		formats.Listed{Itag: 2, MimeType: "audio/mp4", AudioBitrate: 128000, URL: "u2"},
		formats.Listed{Itag: 1, MimeType: "video/mp4", Height: 1080, URL: ""},
	})

	cat, err := Build(res.Variants)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(cat.Entries) != 2 {
		t.Fatalf("len(Entries) = %d, want 2", len(cat.Entries))
	}
	if len(cat.Muxed) != 0 {
		t.Fatalf("len(Muxed) = %d, want 0", len(cat.Muxed))
	}
	if len(cat.VideoOnly) != 1 || cat.VideoOnly[0].Itag != 1 || cat.VideoOnly[0].URL != "u1" {
		t.Fatalf("VideoOnly = %+v", cat.VideoOnly)
	}
	if cat.Entries[0].Itag != 1 {
		t.Fatalf("Entries[0].Itag = %d, want 1", cat.Entries[0].Itag)
	}
	if len(cat.AudioOnly) != 1 || cat.AudioOnly[0].Quality != "128kbps" {
		t.Fatalf("AudioOnly = %+v", cat.AudioOnly)
	}
}

func TestDedup_PrefersFirstWithURL(t *testing.T) {
	in := []formats.Variant{
		{Itag: 22, Quality: "720p", HasVideo: true, HasAudio: true},
		{Itag: 22, Quality: "720p", HasVideo: true, HasAudio: true, URL: "second"},
		{Itag: 22, Quality: "720p", HasVideo: true, HasAudio: true, URL: "third"},
		{Quality: "360p", Container: "mp4", HasVideo: true, URL: "a"},
		{Quality: "360p", Container: "mp4", HasVideo: true, URL: "b"},
		{Quality: "360p", Container: "mp4", HasVideo: true, HasAudio: true, URL: "c"},
	}
	got := Dedup(in)
	if len(got) != 3 {
		t.Fatalf("len(Dedup()) = %d, want 3", len(got))
	}
	if got[0].URL != "second" || got[1].URL != "a" || got[2].URL != "c" {
		t.Fatalf("Dedup() urls = %q %q %q", got[0].URL, got[1].URL, got[2].URL)
	}
}

func TestBuild_IsIdempotent(t *testing.T) {
	in := sampleVariants()
	first, err := Build(in)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	second, err := Build(first.Variants())
	if err != nil {
		t.Fatalf("Build() second pass error = %v", err)
	}
	if !reflect.DeepEqual(first.Entries, second.Entries) {
		t.Fatalf("second pass changed the catalog:\n%+v\n%+v", first.Entries, second.Entries)
	}
	again, _ := Build(in)
	if !reflect.DeepEqual(first.Entries, again.Entries) {
		t.Fatalf("ranking is not deterministic")
	}
}

func TestBuild_Ranking(t *testing.T) {
	cat, err := Build(sampleVariants())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	var order []int
	for _, e := range cat.Entries {
		order = append(order, e.Itag)
	}
	want := []int{22, 18, 401, 400, 137, 299, 136, 251, 140}
	if !reflect.DeepEqual(order, want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	best, ok := cat.BestAudio()
	if !ok || best.Itag != 251 {
		t.Fatalf("BestAudio() = %+v, %v", best, ok)
	}
	if v, ok := cat.Find(137); !ok || v.Quality != "1080p" {
		t.Fatalf("Find(137) = %+v, %v", v, ok)
	}
	if _, ok := cat.Find(9999); ok {
		t.Fatalf("Find(9999) should miss")
	}
}

func TestBuild_UnmappedLabelRanksByHeight(t *testing.T) {
	cat, err := Build([]formats.Variant{
		{Itag: 308, Quality: "1440p", Height: 1440, HasVideo: true, URL: "a"},
		{Itag: 571, Quality: "4320p", Height: 4320, HasVideo: true, URL: "b"},
		{Itag: 5, Quality: "medium", HasVideo: true, URL: "c"},
	})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if cat.Entries[0].Itag != 571 || cat.Entries[1].Itag != 308 || cat.Entries[2].Itag != 5 {
		t.Fatalf("order = %d %d %d", cat.Entries[0].Itag, cat.Entries[1].Itag, cat.Entries[2].Itag)
	}
}

func TestBuild_NoFormatsAvailable(t *testing.T) {
	tests := []struct {
		name string
		in   []formats.Variant
	}{
		{"empty", nil},
		{"no tracks", []formats.Variant{{Itag: 1, URL: "u"}}},
		{"no urls", []formats.Variant{{Itag: 1, HasVideo: true}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cat, err := Build(tt.in)
			if cat != nil {
				t.Fatalf("Build() catalog = %+v, want nil", cat)
			}
			if !errors.Is(err, types.ErrNoFormatsAvailable) {
				t.Fatalf("Build() error = %v, want ErrNoFormatsAvailable", err)
			}
		})
	}
}

func TestResolutionRank(t *testing.T) {
	tests := []struct {
		quality string
		height  int
		want    int
	}{
		{"2160p", 0, 8},
		{"144p", 0, 1},
		{"1080p60", 0, 6},
		{"1080p60", 1080, 6},
		{"Unknown", 0, 0},
		{"4320p", 4320, 9},
		{"hd", 500, 4},
	}
	for _, tt := range tests {
		if got := ResolutionRank(tt.quality, tt.height); got != tt.want {
			t.Fatalf("ResolutionRank(%q, %d) = %d, want %d", tt.quality, tt.height, got, tt.want)
		}
	}
}

func sampleVariants() []formats.Variant {
	return []formats.Variant{
		{Itag: 140, Quality: "129kbps", Container: "mp4", HasAudio: true, Bitrate: 130000, URL: "a140"},
		{Itag: 136, Quality: "720p", Container: "mp4", HasVideo: true, Height: 720, Bitrate: 1500000, URL: "v136"},
		{Itag: 18, Quality: "360p", Container: "mp4", HasVideo: true, HasAudio: true, Height: 360, URL: "m18"},
		{Itag: 137, Quality: "1080p", Container: "mp4", HasVideo: true, Height: 1080, Bitrate: 4000000, URL: "v137"},
		{Itag: 251, Quality: "160kbps", Container: "webm", HasAudio: true, Bitrate: 160000, URL: "a251"},
		{Itag: 299, Quality: "1080p60", Container: "mp4", HasVideo: true, Height: 1080, Bitrate: 3000000, URL: "v299"},
		{Itag: 22, Quality: "720p", Container: "mp4", HasVideo: true, HasAudio: true, Height: 720, URL: "m22"},
		{Itag: 401, Quality: "2160p", Container: "mp4", HasVideo: true, Height: 2160, Bitrate: 9000000, URL: "v401"},
		{Itag: 400, Quality: "1440p", Container: "mp4", HasVideo: true, Height: 1440, URL: "v400"},
		{Itag: 137, Quality: "1080p", Container: "mp4", HasVideo: true, Height: 1080, URL: "dup"},
	}
}
