package catalog

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/famomatic/tubemux/internal/formats"
	"github.com/famomatic/tubemux/internal/types"
)

// Selector is a parsed format expression. Alternatives are separated by "/",
// the video and audio parts of one alternative by "+":
//
//	bv[height<=1080][ext=mp4]+ba[ext=m4a]/bv+ba
//
// An alternative with a single part selects the video; its audio is the
// best audio-only variant.
type Selector struct {
	expr         string
	alternatives [][]part
}

type part struct {
	worst   bool
	filters []filter
}

type filter struct {
	key   string
	op    string
	value string
}

var (
	modifierPattern = regexp.MustCompile(`\[([^\]]+)\]`)
	filterOps       = []string{"<=", ">=", "!=", "=", "<", ">", ":"}
)

// ParseSelector parses expr. Unknown tokens and keys are errors.
func ParseSelector(expr string) (*Selector, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("%w: empty format selector", types.ErrInvalidInput)
	}
	sel := &Selector{expr: expr}
	for _, alt := range strings.Split(expr, "/") {
		pieces := strings.Split(alt, "+")
		if len(pieces) > 2 {
			return nil, fmt.Errorf("%w: %q merges more than one video and one audio", types.ErrInvalidInput, alt)
		}
		var parts []part
		for _, piece := range pieces {
			p, err := parsePart(strings.TrimSpace(piece))
			if err != nil {
				return nil, fmt.Errorf("%w: %w", types.ErrInvalidInput, err)
			}
			parts = append(parts, p)
		}
		sel.alternatives = append(sel.alternatives, parts)
	}
	return sel, nil
}

func (s *Selector) String() string { return s.expr }

func parsePart(s string) (part, error) {
	base, mods := s, ""
	if i := strings.IndexByte(s, '['); i >= 0 {
		base, mods = s[:i], s[i:]
	}
	var p part
	switch strings.ToLower(base) {
	case "", "best":
	case "worst":
		p.worst = true
	case "bestvideo", "bv":
		p.filters = append(p.filters, filter{key: "media", value: "video"})
	case "worstvideo", "wv":
		p.worst = true
		p.filters = append(p.filters, filter{key: "media", value: "video"})
	case "bestaudio", "ba":
		p.filters = append(p.filters, filter{key: "media", value: "audio"})
	case "worstaudio", "wa":
		p.worst = true
		p.filters = append(p.filters, filter{key: "media", value: "audio"})
	case "mp4", "webm", "m4a":
		p.filters = append(p.filters, filter{key: "ext", op: "=", value: strings.ToLower(base)})
	default:
		f, err := parseFilter(base)
		if err != nil {
			return part{}, fmt.Errorf("unknown format selector %q", base)
		}
		p.filters = append(p.filters, f)
	}
	if base == "" && mods == "" {
		return part{}, fmt.Errorf("empty format selector part")
	}

	if rest := modifierPattern.ReplaceAllString(mods, ""); rest != "" {
		return part{}, fmt.Errorf("malformed format filter %q", rest)
	}
	for _, m := range modifierPattern.FindAllStringSubmatch(mods, -1) {
		f, err := parseFilter(m[1])
		if err != nil {
			return part{}, err
		}
		p.filters = append(p.filters, f)
	}
	return p, nil
}

func parseFilter(s string) (filter, error) {
	for _, op := range filterOps {
		i := strings.Index(s, op)
		if i < 0 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(s[:i]))
		val := strings.ToLower(strings.TrimSpace(s[i+len(op):]))
		switch key {
		case "ext":
			if op != "=" && op != ":" && op != "!=" {
				return filter{}, fmt.Errorf("format filter %q only supports = and !=", s)
			}
			return filter{key: key, op: op, value: val}, nil
		case "res", "height", "width", "fps", "abr":
			if _, err := strconv.Atoi(val); err != nil {
				return filter{}, fmt.Errorf("format filter %q needs a number", s)
			}
			if key == "res" {
				key = "height"
			}
			return filter{key: key, op: op, value: val}, nil
		}
		return filter{}, fmt.Errorf("unknown format filter key %q", key)
	}
	return filter{}, fmt.Errorf("unknown format filter %q", s)
}

// Select resolves sel against the catalog's ranking and returns the video
// and audio variants of the first alternative that can be satisfied.
func (c *Catalog) Select(sel *Selector) (video, audio formats.Variant, err error) {
	for _, alt := range sel.alternatives {
		v, ok := c.pick(alt[0], func(v formats.Variant) bool { return v.HasVideo })
		if !ok {
			continue
		}
		if len(alt) == 1 {
			if a, ok := c.BestAudio(); ok {
				return v, a, nil
			}
			continue
		}
		if a, ok := c.pick(alt[1], func(v formats.Variant) bool { return v.HasAudio && !v.HasVideo }); ok {
			return v, a, nil
		}
	}
	return formats.Variant{}, formats.Variant{}, fmt.Errorf("%w: no format matches %q", types.ErrNoFormatsAvailable, sel.expr)
}

func (c *Catalog) pick(p part, usable func(formats.Variant) bool) (formats.Variant, bool) {
	var found []formats.Variant
	for _, e := range c.Entries {
		if usable(e.Variant) && p.matches(e.Variant) {
			found = append(found, e.Variant)
		}
	}
	if len(found) == 0 {
		return formats.Variant{}, false
	}
	if p.worst {
		return found[len(found)-1], true
	}
	return found[0], true
}

func (p part) matches(v formats.Variant) bool {
	for _, f := range p.filters {
		if !f.matches(v) {
			return false
		}
	}
	return true
}

func (f filter) matches(v formats.Variant) bool {
	switch f.key {
	case "media":
		if f.value == "video" {
			return v.HasVideo && !v.HasAudio
		}
		return v.HasAudio && !v.HasVideo
	case "ext":
		return hasExt(v, f.value) != (f.op == "!=")
	}

	want, _ := strconv.Atoi(f.value)
	var got int
	switch f.key {
	case "height":
		got = v.Height
		if got == 0 {
			got = labelHeight(v.Quality)
		}
	case "width":
		got = v.Width
	case "fps":
		got = v.FPS
	case "abr":
		got = v.Bitrate / 1000
	}
	switch f.op {
	case "=", ":":
		return got == want
	case "!=":
		return got != want
	case "<":
		return got < want
	case "<=":
		return got <= want
	case ">":
		return got > want
	case ">=":
		return got >= want
	}
	return false
}

// hasExt matches the container and the MIME subtype; audio-only mp4 is also m4a.
func hasExt(v formats.Variant, ext string) bool {
	exts := []string{strings.ToLower(v.Container)}
	if _, sub, ok := strings.Cut(strings.ToLower(v.MimeType), "/"); ok {
		sub, _, _ = strings.Cut(sub, ";")
		exts = append(exts, strings.TrimSpace(sub))
	}
	for _, e := range exts {
		if e == ext || (e == "mp4" && ext == "m4a" && !v.HasVideo) {
			return true
		}
	}
	return false
}
