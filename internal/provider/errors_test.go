package provider

import (
	"errors"
	"strings"
	"testing"

	"github.com/famomatic/tubemux/internal/innertube"
	"github.com/famomatic/tubemux/internal/types"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"http 429", &innertube.HTTPStatusError{Client: "WEB", StatusCode: 429}, types.ErrBlocked},
		{"http 403", &innertube.HTTPStatusError{Client: "WEB", StatusCode: 403}, types.ErrBlocked},
		{"http 404", &innertube.HTTPStatusError{Client: "WEB", StatusCode: 404}, types.ErrNotFound},
		{"http 401", &innertube.HTTPStatusError{Client: "WEB", StatusCode: 401}, types.ErrRestricted},
		{"bot check", &innertube.PlayabilityError{Status: "LOGIN_REQUIRED", Reason: "Sign in to confirm you're not a bot"}, types.ErrBlocked},
		{"age gate", &innertube.PlayabilityError{Status: "LOGIN_REQUIRED", Reason: "Sign in to confirm your age"}, types.ErrRestricted},
		{"geo", &innertube.PlayabilityError{Status: "UNPLAYABLE", Reason: "The uploader has not made this video available in your country"}, types.ErrNotFound},
		{"private", &innertube.PlayabilityError{Status: "LOGIN_REQUIRED", Reason: "This video is private"}, types.ErrNotFound},
		{"members only", &innertube.PlayabilityError{Status: "LOGIN_REQUIRED", Reason: "Please sign in"}, types.ErrRestricted},
		{"unavailable", &innertube.PlayabilityError{Status: "ERROR", Reason: "Video unavailable"}, types.ErrNotFound},
		{"text marker", errors.New("upstream said: unusual traffic from your network"), types.ErrBlocked},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.err)
			if !errors.Is(got, tt.want) {
				t.Fatalf("classify(%v) = %v, want %v", tt.err, got, tt.want)
			}
			if !errors.Is(got, tt.err) && !strings.Contains(got.Error(), tt.err.Error()) {
				t.Fatalf("classify() lost the cause: %v", got)
			}
		})
	}
}

func TestClassify_LeavesUnknownErrorsAlone(t *testing.T) {
	base := errors.New("connection reset")
	if got := classify(base); got != base {
		t.Fatalf("classify() = %v, want the input error", got)
	}
	if classify(nil) != nil {
		t.Fatalf("classify(nil) should be nil")
	}
	status := &innertube.HTTPStatusError{StatusCode: 500}
	if got := classify(status); got != status {
		t.Fatalf("classify(500) = %v, want unchanged", got)
	}
}

func TestChainError_UnwrapPriority(t *testing.T) {
	blocked := classify(&innertube.HTTPStatusError{Client: "ANDROID", StatusCode: 429})
	notFound := classify(&innertube.PlayabilityError{Status: "ERROR", Reason: "Video unavailable"})
	other := errors.New("timeout talking to upstream")

	err := &ChainError{VideoID: "jNQXAC9IVRw", Attempts: []Attempt{
		{Strategy: "innertube", Err: blocked},
		{Strategy: "library", Err: notFound},
		{Strategy: "page", Err: other},
	}}
	if !errors.Is(err, types.ErrNotFound) {
		t.Fatalf("errors.Is(ErrNotFound) = false for %v", err)
	}
	if errors.Is(err, types.ErrBlocked) {
		t.Fatalf("not found should win over blocked")
	}
	if kind := types.KindOf(err); kind != types.KindNotFound {
		t.Fatalf("KindOf() = %v, want %v", kind, types.KindNotFound)
	}
	for _, name := range []string{"innertube", "library", "page"} {
		if !strings.Contains(err.Error(), name+": ") {
			t.Fatalf("Error() = %q, missing %s", err.Error(), name)
		}
	}

	onlyOther := &ChainError{VideoID: "x", Attempts: []Attempt{{Strategy: "a", Err: blocked}, {Strategy: "b", Err: other}}}
	if !errors.Is(onlyOther, types.ErrBlocked) {
		t.Fatalf("blocked should beat an unclassified error")
	}

	empty := &ChainError{VideoID: "x"}
	if empty.Unwrap() != nil {
		t.Fatalf("empty chain Unwrap() = %v", empty.Unwrap())
	}
}
