package innertube

// PlayerResponse is the subset of a /youtubei/v1/player answer (or an inline
// ytInitialPlayerResponse) that lookups read.
type PlayerResponse struct {
	PlayabilityStatus PlayabilityStatus `json:"playabilityStatus"`
	StreamingData     StreamingData     `json:"streamingData"`
	VideoDetails      VideoDetails      `json:"videoDetails"`
	Microformat       struct {
		Renderer MicroformatRenderer `json:"playerMicroformatRenderer"`
	} `json:"microformat"`
}

// PlayabilityStatus carries the reason a client was refused, e.g.
// LOGIN_REQUIRED with "Sign in to confirm your age".
type PlayabilityStatus struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

// Playable reports whether the client was handed streams. Live broadcasts
// answer OK as well.
func (p PlayabilityStatus) Playable() bool { return p.Status == "OK" }

// StreamingData holds the progressive (Formats) and DASH (AdaptiveFormats) lists.
type StreamingData struct {
	Formats         []Format `json:"formats"`
	AdaptiveFormats []Format `json:"adaptiveFormats"`
}

// All returns progressive formats first, then adaptive ones.
func (s StreamingData) All() []Format {
	out := make([]Format, 0, len(s.Formats)+len(s.AdaptiveFormats))
	out = append(out, s.Formats...)
	return append(out, s.AdaptiveFormats...)
}

// Format is one stream entry. URL is empty when the entry is ciphered.
// ContentLength and AudioSampleRate arrive as decimal strings.
type Format struct {
	Itag            int    `json:"itag"`
	URL             string `json:"url"`
	SignatureCipher string `json:"signatureCipher"`
	Cipher          string `json:"cipher"`
	MimeType        string `json:"mimeType"`
	ContentLength   string `json:"contentLength"`

	Quality      string `json:"quality"`
	QualityLabel string `json:"qualityLabel"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	FPS          int    `json:"fps"`

	Bitrate         int    `json:"bitrate"`
	AverageBitrate  int    `json:"averageBitrate"`
	AudioQuality    string `json:"audioQuality"`
	AudioSampleRate string `json:"audioSampleRate"`
	AudioChannels   int    `json:"audioChannels"`
}

// Ciphered reports whether the URL must be rebuilt from a signature cipher.
func (f Format) Ciphered() bool {
	return f.URL == "" && (f.SignatureCipher != "" || f.Cipher != "")
}

type VideoDetails struct {
	VideoID       string     `json:"videoId"`
	Title         string     `json:"title"`
	LengthSeconds string     `json:"lengthSeconds"`
	Author        string     `json:"author"`
	Thumbnail     Thumbnails `json:"thumbnail"`
}

type MicroformatRenderer struct {
	Title            struct{ SimpleText string } `json:"title"`
	LengthSeconds    string                      `json:"lengthSeconds"`
	OwnerChannelName string                      `json:"ownerChannelName"`
	PublishDate      string                      `json:"publishDate"`
	UploadDate       string                      `json:"uploadDate"`
	Thumbnail        Thumbnails                  `json:"thumbnail"`
}

type Thumbnails struct {
	List []struct {
		URL   string `json:"url"`
		Width int    `json:"width"`
	} `json:"thumbnails"`
}

// Best returns the URL of the widest thumbnail.
func (t Thumbnails) Best() string {
	best, width := "", -1
	for _, th := range t.List {
		if th.URL != "" && th.Width > width {
			best, width = th.URL, th.Width
		}
	}
	return best
}
