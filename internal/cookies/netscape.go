package cookies

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const httpOnlyPrefix = "#HttpOnly_"

// ParseNetscape parses a Netscape cookies.txt stream.
// Columns: domain, include-subdomains, path, secure, expiry, name, value.
func ParseNetscape(r io.Reader) ([]*http.Cookie, error) {
	var out []*http.Cookie
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r\n")
		httpOnly := false
		if strings.HasPrefix(line, httpOnlyPrefix) {
			httpOnly = true
			line = strings.TrimPrefix(line, httpOnlyPrefix)
		}
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Split(line, "\t")
		if len(parts) < 7 {
			return nil, fmt.Errorf("cookies line %d: expected 7 tab-separated fields, got %d", lineNo, len(parts))
		}
		c := &http.Cookie{
			Domain:   strings.TrimSpace(parts[0]),
			Path:     parts[2],
			Secure:   strings.EqualFold(parts[3], "TRUE"),
			Name:     parts[5],
			Value:    strings.Join(parts[6:], "\t"),
			HttpOnly: httpOnly,
		}
		if expires, err := strconv.ParseInt(strings.TrimSpace(parts[4]), 10, 64); err == nil && expires > 0 {
			c.Expires = time.Unix(expires, 0)
		}
		out = append(out, c)
	}
	return out, scanner.Err()
}

// WriteNetscape renders cookies in cookies.txt form.
func WriteNetscape(w io.Writer, cookies []*http.Cookie) error {
	if _, err := io.WriteString(w, "# Netscape HTTP Cookie File\n\n"); err != nil {
		return err
	}
	for _, c := range cookies {
		domain := c.Domain
		subdomains := "FALSE"
		if strings.HasPrefix(domain, ".") {
			subdomains = "TRUE"
		}
		if c.HttpOnly {
			domain = httpOnlyPrefix + domain
		}
		secure := "FALSE"
		if c.Secure {
			secure = "TRUE"
		}
		var expires int64
		if !c.Expires.IsZero() {
			expires = c.Expires.Unix()
		}
		path := c.Path
		if path == "" {
			path = "/"
		}
		if _, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			domain, subdomains, path, secure, expires, c.Name, c.Value); err != nil {
			return err
		}
	}
	return nil
}
