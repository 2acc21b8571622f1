package contenttype

import (
	"net/http"
	"strings"
)

// Detect sniffs the content type from the first bytes of data, the same
// way net/http does for responses.
func Detect(data []byte) string {
	if len(data) > 512 {
		data = data[:512]
	}
	return http.DetectContentType(data)
}

func IsImage(contentType string) bool {
	return strings.HasPrefix(contentType, "image/")
}

// Ext returns a file extension for the image content types the backend
// accepts, or "" for anything else.
func Ext(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "image/jpeg"):
		return ".jpg"
	case strings.HasPrefix(contentType, "image/png"):
		return ".png"
	case strings.HasPrefix(contentType, "image/webp"):
		return ".webp"
	case strings.HasPrefix(contentType, "image/gif"):
		return ".gif"
	}
	return ""
}
