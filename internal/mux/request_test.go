package mux

import (
	"context"
	"errors"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/famomatic/tubemux/internal/formats"
	"github.com/famomatic/tubemux/internal/provider"
	"github.com/famomatic/tubemux/internal/types"
)

func sampleInfo() *provider.VideoInfo {
	return &provider.VideoInfo{
		VideoID: "jNQXAC9IVRw",
		Title:   "Me at the zoo",
		Author:  "jawed",
		Variants: []formats.Variant{
			{Itag: 18, Quality: "360p", Container: "mp4", HasVideo: true, HasAudio: true, URL: "m18"},
			{Itag: 137, Quality: "1080p", Container: "mp4", HasVideo: true, Height: 1080, URL: "v137"},
			{Itag: 140, Quality: "129kbps", Container: "mp4", HasAudio: true, Bitrate: 129000, URL: "a140"},
			{Itag: 251, Quality: "160kbps", Container: "webm", HasAudio: true, Bitrate: 160000, URL: "a251"},
		},
	}
}

func TestRequestFromInfo(t *testing.T) {
	req, err := RequestFromInfo(sampleInfo(), 137, 0)
	if err != nil {
		t.Fatalf("RequestFromInfo() error = %v", err)
	}
	if req.Video.Itag != 137 || req.Audio.Itag != 251 || req.Author != "jawed" {
		t.Fatalf("RequestFromInfo() = %+v", req)
	}

	req, err = RequestFromInfo(sampleInfo(), 137, 140)
	if err != nil || req.Audio.Itag != 140 {
		t.Fatalf("RequestFromInfo(137, 140) = %+v, %v", req, err)
	}
}

func TestRequestFromInfoErrors(t *testing.T) {
	tests := []struct {
		name     string
		info     *provider.VideoInfo
		video    int
		audio    int
		sentinel error
	}{
		{"unknown video", sampleInfo(), 999, 0, types.ErrInvalidInput},
		{"audio as video", sampleInfo(), 140, 0, types.ErrInvalidInput},
		{"unknown audio", sampleInfo(), 137, 999, types.ErrInvalidInput},
		{"video as audio", sampleInfo(), 137, 137, types.ErrInvalidInput},
		{"no formats", &provider.VideoInfo{Title: "x"}, 137, 0, types.ErrNoFormatsAvailable},
		{"no audio-only", &provider.VideoInfo{Variants: []formats.Variant{{Itag: 137, HasVideo: true, URL: "v"}}}, 137, 0, types.ErrNoFormatsAvailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := RequestFromInfo(tt.info, tt.video, tt.audio); !errors.Is(err, tt.sentinel) {
				t.Fatalf("RequestFromInfo() error = %v, want %v", err, tt.sentinel)
			}
		})
	}
}

func TestRequestFromFormat(t *testing.T) {
	tests := []struct {
		expr      string
		wantVideo int
		wantAudio int
		sentinel  error
	}{
		{"bv+ba", 137, 251, nil},
		{"bv[height<=720]+ba/best", 18, 251, nil},
		{"bv+ba[ext=m4a]", 137, 140, nil},
		{"bv[height>1080]+ba", 0, 0, types.ErrNoFormatsAvailable},
		{"bv[", 0, 0, types.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			req, err := RequestFromFormat(sampleInfo(), tt.expr)
			if tt.sentinel != nil {
				if !errors.Is(err, tt.sentinel) {
					t.Fatalf("RequestFromFormat() error = %v, want %v", err, tt.sentinel)
				}
				return
			}
			if err != nil {
				t.Fatalf("RequestFromFormat() error = %v", err)
			}
			if req.Video.Itag != tt.wantVideo || req.Audio.Itag != tt.wantAudio || req.Title != "Me at the zoo" {
				t.Fatalf("RequestFromFormat() = %+v", req)
			}
		})
	}
}

func TestOutputFileName(t *testing.T) {
	tests := []struct {
		title, quality, want string
	}{
		{"Me at the zoo", "1080p", "Me at the zoo_1080p_with_audio.mp4"},
		{"Olá, mundo! / 2024", "720p60", "Ol mundo  2024_720p60_with_audio.mp4"},
		{"", "480p", "video_480p_with_audio.mp4"},
		{"???", "360p", "video_360p_with_audio.mp4"},
		{"clip", "1080p HDR/x", "clip_1080p HDRx_with_audio.mp4"},
	}
	for _, tt := range tests {
		if got := OutputFileName(tt.title, tt.quality); got != tt.want {
			t.Fatalf("OutputFileName(%q, %q) = %q, want %q", tt.title, tt.quality, got, tt.want)
		}
	}
}

func TestWorkspaceNames(t *testing.T) {
	n := namesFor("j", "WEBM", "m4a")
	if n.video != "j-video.webm" || n.audio != "j-audio.m4a" || n.output != "j-output.mp4" {
		t.Fatalf("namesFor() = %+v", n)
	}
	n = namesFor("j", "3gp", "opus")
	if n.video != "j-video.mp4" || n.audio != "j-audio.mp4" {
		t.Fatalf("namesFor() defaults = %+v", n)
	}
	all := allNames("j")
	for _, name := range []string{n.video, n.audio, n.output, "j-video.webm", "j-audio.webm", "j-audio.m4a"} {
		found := false
		for _, a := range all {
			found = found || a == name
		}
		if !found {
			t.Fatalf("allNames() misses %s", name)
		}
	}
}

func TestDirSinkAvoidsOverwrite(t *testing.T) {
	fs := afero.NewMemMapFs()
	sink := DirSink{Fs: fs, Dir: "/out"}
	first, err := sink.Deliver(context.Background(), "clip.mp4", []byte("1"))
	if err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}
	second, err := sink.Deliver(context.Background(), "../clip.mp4", []byte("2"))
	if err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}
	if first != "/out/clip.mp4" || second != "/out/clip (1).mp4" {
		t.Fatalf("paths = %q, %q", first, second)
	}
	if b, _ := afero.ReadFile(fs, first); string(b) != "1" {
		t.Fatalf("first file overwritten: %q", b)
	}
}

// slowFs delays every open so concurrent deliveries interleave.
type slowFs struct{ afero.Fs }

func (s slowFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	time.Sleep(2 * time.Millisecond)
	return s.Fs.OpenFile(name, flag, perm)
}

func TestDirSinkConcurrentDeliveries(t *testing.T) {
	mem := afero.NewMemMapFs()
	sink := DirSink{Fs: slowFs{mem}, Dir: "/out"}

	const n = 8
	paths := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			path, err := sink.Deliver(context.Background(), "T_1080p_with_audio.mp4", []byte(strconv.Itoa(i)))
			if err != nil {
				t.Errorf("Deliver() error = %v", err)
			}
			paths[i] = path
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, n)
	for i, path := range paths {
		if seen[path] {
			t.Fatalf("path %q delivered twice: %v", path, paths)
		}
		seen[path] = true
		if b, _ := afero.ReadFile(mem, path); string(b) != strconv.Itoa(i) {
			t.Fatalf("%s = %q, want %d", path, b, i)
		}
	}
}
