package network

import (
	"errors"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// Validation failures returned by ValidateRPCURL.
var (
	ErrRPCURLRequired      = errors.New("RPC URL is required")
	ErrInvalidURLFormat    = errors.New("Invalid URL format")
	ErrUnsupportedScheme   = errors.New("URL must start with http:// or https://")
	ErrPortRange           = errors.New("Port must be between 1 and 65535")
	ErrInvalidHostname     = errors.New("Invalid hostname")
	ErrHostnameCharacters  = errors.New("Hostname contains invalid characters")
	ErrInvalidHostnameForm = errors.New("Invalid hostname format")
)

var (
	portPattern     = regexp.MustCompile(`:(\d+)(?:/|$)`)
	hostnamePattern = regexp.MustCompile(`^[a-zA-Z0-9.-]+$`)
)

// ValidateRPCURL checks a user supplied RPC endpoint after trimming it.
func ValidateRPCURL(raw string) error {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ErrRPCURLRequired
	}
	if !strings.Contains(s, "://") {
		return ErrInvalidURLFormat
	}
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		return ErrUnsupportedScheme
	}
	if m := portPattern.FindStringSubmatch(s); m != nil {
		port, err := strconv.Atoi(m[1])
		if err != nil || port < 1 || port > 65535 {
			return ErrPortRange
		}
	}

	u, err := url.Parse(s)
	if err != nil {
		return ErrInvalidURLFormat
	}
	host := u.Hostname()
	switch {
	case host == "":
		return ErrInvalidHostname
	case !hostnamePattern.MatchString(host):
		return ErrHostnameCharacters
	case strings.Contains(host, ".."):
		return ErrInvalidHostnameForm
	}
	return nil
}

// SanitizeRPCURL returns the trimmed URL when it validates.
func SanitizeRPCURL(raw string) (string, bool) {
	if ValidateRPCURL(raw) != nil {
		return "", false
	}
	return strings.TrimSpace(raw), true
}

// IsRPCURL is the looser shape check used for stored settings: an absolute
// http(s) URL with a host and no embedded credentials.
func IsRPCURL(raw string) bool {
	if strings.TrimSpace(raw) == "" {
		return false
	}
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	host := u.Hostname()
	if host == "" || strings.HasPrefix(host, ".") {
		return false
	}
	return u.User == nil
}

// NormalizeRPCURL returns a stable form of raw: lowercased scheme and host,
// default port dropped, trailing slashes removed, query and fragment kept.
// Unparseable input yields "".
func NormalizeRPCURL(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}

	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port := u.Port(); port != "" && !(scheme == "http" && port == "80") && !(scheme == "https" && port == "443") {
		host += ":" + port
	}

	out := strings.TrimRight(scheme+"://"+host+u.EscapedPath(), "/")
	if u.RawQuery != "" {
		out += "?" + u.RawQuery
	}
	if u.Fragment != "" {
		out += "#" + u.EscapedFragment()
	}
	return out
}
