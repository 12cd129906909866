package innertube

import (
	"fmt"
	"strings"
)

// HTTPStatusError indicates a non-200 Innertube response.
type HTTPStatusError struct {
	Client     string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("innertube http status=%d client=%s", e.StatusCode, e.Client)
}

// PlayabilityError indicates an unplayable player response.
type PlayabilityError struct {
	Client string
	Status string
	Reason string
}

func (e *PlayabilityError) Error() string {
	return fmt.Sprintf("unplayable status=%s client=%s reason=%s", e.Status, e.Client, e.Reason)
}

func (e *PlayabilityError) text() string {
	return strings.ToUpper(e.Status + " " + e.Reason)
}

// IsBlocked reports an anti-automation challenge ("confirm you're not a bot").
func (e *PlayabilityError) IsBlocked() bool {
	s := e.text()
	if strings.Contains(s, "AGE") {
		return false
	}
	return strings.Contains(s, "BOT") ||
		strings.Contains(s, "UNUSUAL TRAFFIC") ||
		strings.Contains(s, "SIGN IN TO CONFIRM")
}

func (e *PlayabilityError) RequiresLogin() bool {
	s := e.text()
	return strings.Contains(s, "LOGIN") || strings.Contains(s, "SIGN IN")
}

func (e *PlayabilityError) IsAgeRestricted() bool {
	return strings.Contains(e.text(), "AGE")
}

func (e *PlayabilityError) IsGeoRestricted() bool {
	s := e.text()
	return strings.Contains(s, "COUNTRY") ||
		strings.Contains(s, "REGION") ||
		strings.Contains(s, "LOCATION")
}

func (e *PlayabilityError) IsUnavailable() bool {
	s := e.text()
	return strings.Contains(s, "UNAVAILABLE") ||
		strings.Contains(s, "PRIVATE") ||
		strings.Contains(s, "DELETED") ||
		strings.Contains(s, "REMOVED") ||
		strings.Contains(s, "ERROR")
}
