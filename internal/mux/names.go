package mux

import (
	"regexp"
	"strings"
)

var unsafeTitleChars = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)

// OutputFileName derives the delivered file name from the title and the
// video quality: "{title}_{quality}_with_audio.mp4".
func OutputFileName(title, quality string) string {
	safe := strings.TrimSpace(unsafeTitleChars.ReplaceAllString(title, ""))
	if safe == "" {
		safe = "video"
	}
	quality = unsafeTitleChars.ReplaceAllString(quality, "")
	return safe + "_" + quality + "_with_audio.mp4"
}

func videoExt(container string) string {
	if strings.EqualFold(container, "webm") {
		return "webm"
	}
	return "mp4"
}

func audioExt(container string) string {
	switch strings.ToLower(container) {
	case "webm":
		return "webm"
	case "m4a":
		return "m4a"
	}
	return "mp4"
}

type workspaceNames struct {
	video, audio, output string
}

func namesFor(jobID, videoContainer, audioContainer string) workspaceNames {
	return workspaceNames{
		video:  jobID + "-video." + videoExt(videoContainer),
		audio:  jobID + "-audio." + audioExt(audioContainer),
		output: jobID + "-output.mp4",
	}
}

// allNames lists every workspace entry a job could have created.
func allNames(jobID string) []string {
	return []string{
		jobID + "-video.mp4",
		jobID + "-video.webm",
		jobID + "-audio.mp4",
		jobID + "-audio.webm",
		jobID + "-audio.m4a",
		jobID + "-output.mp4",
	}
}
