package mediastore

import (
	"errors"
	"net/http"
	"strings"
)

// ErrScriptableContent rejects payloads that render as markup. Provider CDNs
// answer with HTML error pages more often than with proper status codes, and
// SVG stays out until a sanitizer exists.
var ErrScriptableContent = errors.New("scriptable content (HTML/XML/SVG) is not stored")

// resolveMimeType sniffs the payload and decides the stored MIME type.
// The declared type wins when present, but the sniff result always gates
// scriptable content, whatever the provider declared.
func resolveMimeType(declaredMime string, data []byte) (string, error) {
	detected := http.DetectContentType(data)

	if strings.HasPrefix(detected, "text/html") || strings.HasPrefix(detected, "application/xhtml") {
		return "", ErrScriptableContent
	}
	if strings.HasPrefix(detected, "text/xml") || strings.HasPrefix(detected, "application/xml") || detected == "image/svg+xml" {
		return "", ErrScriptableContent
	}

	if declaredMime != "" {
		return declaredMime, nil
	}
	return detected, nil
}
