package gateway

import (
	"regexp"
	"strings"

	"github.com/cuemby/vms/pkg/coreerr"
)

// Input size limits, checked before any regexp.Compile to bound the
// work a single request can trigger.
const (
	MaxIDLength    = 256
	MaxURILength   = 4096
	MaxNameLength  = 512
	maxRegexLength = 1024
)

// idPattern restricts resource and plugin identifiers to a safe charset,
// ruling out path separators and shell metacharacters outright rather than
// denylisting them.
var idPattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

// allowedURISchemes is the source URI scheme allow-list; anything else is
// rejected regardless of charset.
var allowedURISchemes = []string{"rtsp://", "rtsps://", "http://", "https://"}

// dangerousURIChars rules out shell metacharacters that have no business
// in a URI, matching the original's command-injection guard.
var dangerousURIChars = []rune{'`', '$', ';', '|', '&', '\n', '\r'}

// ValidateResourceID checks id against the length cap and charset shared by
// streams, recordings, and AI tasks.
func ValidateResourceID(id string) error {
	if strings.TrimSpace(id) == "" {
		return coreerr.Validationf("resource id cannot be empty")
	}
	if len(id) > MaxIDLength {
		return coreerr.Validationf("resource id exceeds maximum length of %d", MaxIDLength)
	}
	if !idPattern.MatchString(id) {
		return coreerr.Validationf("resource id %q contains characters outside [a-zA-Z0-9_.-]", id)
	}
	return nil
}

// ValidateSourceURI checks a pulled-source URI: non-empty, length-capped,
// scheme-allow-listed, and free of shell metacharacters.
func ValidateSourceURI(uri string) error {
	if strings.TrimSpace(uri) == "" {
		return coreerr.Validationf("source uri cannot be empty")
	}
	if len(uri) > MaxURILength {
		return coreerr.Validationf("source uri exceeds maximum length of %d", MaxURILength)
	}
	for _, c := range dangerousURIChars {
		if strings.ContainsRune(uri, c) {
			return coreerr.Validationf("source uri contains disallowed character %q", c)
		}
	}
	for _, scheme := range allowedURISchemes {
		if strings.HasPrefix(uri, scheme) {
			return nil
		}
	}
	return coreerr.Validationf("source uri %q does not use an allowed scheme %v", uri, allowedURISchemes)
}

// ValidateName checks a human-facing name field (codec, container labels).
func ValidateName(name, field string) error {
	if len(name) > MaxNameLength {
		return coreerr.Validationf("%s exceeds maximum length of %d", field, MaxNameLength)
	}
	return nil
}

// ValidatePluginID checks an AI task's plugin identifier; it shares the
// resource-ID charset since it is just as often used as a map key or path
// component by a plugin implementation.
func ValidatePluginID(pluginID string) error {
	if strings.TrimSpace(pluginID) == "" {
		return coreerr.Validationf("plugin id cannot be empty")
	}
	if len(pluginID) > MaxIDLength {
		return coreerr.Validationf("plugin id exceeds maximum length of %d", MaxIDLength)
	}
	if !idPattern.MatchString(pluginID) {
		return coreerr.Validationf("plugin id %q contains characters outside [a-zA-Z0-9_.-]", pluginID)
	}
	return nil
}

// ValidateRegexPattern compiles pattern after a length cap. Go's
// RE2-backed regexp package does not backtrack, so a caller-supplied
// filter regex can't be used for ReDoS; the length cap bounds compile
// cost.
func ValidateRegexPattern(pattern string) (*regexp.Regexp, error) {
	if len(pattern) > maxRegexLength {
		return nil, coreerr.Validationf("regex pattern exceeds maximum length of %d", maxRegexLength)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, coreerr.Validationf("invalid regex pattern: %v", err)
	}
	return re, nil
}
