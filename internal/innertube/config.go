package innertube

import (
	"net/http"
	"time"
)

// Config holds configuration for Innertube requests.
type Config struct {
	HTTPClient *http.Client
	// BaseURL overrides https://<profile host>; used for tests and mirrors.
	BaseURL        string
	VisitorData    string
	RequestHeaders http.Header
	RequestTimeout time.Duration
	// Now is used for cookie auth hashes; defaults to time.Now.
	Now func() time.Time
}
