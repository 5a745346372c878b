package service

import (
	"bytes"
	"net/http"
)

// Submission photos come straight off phone cameras; anything larger is
// refused before it reaches a vision backend.
const maxPhotoSize = 50 << 20

// visionImageTypes are the sniffed types both vision backends accept.
var visionImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
}

// isWebP checks for a RIFF container tagged WEBP. http.DetectContentType
// has no WebP signature.
func isWebP(data []byte) bool {
	return len(data) >= 12 &&
		bytes.Equal(data[:4], []byte("RIFF")) &&
		bytes.Equal(data[8:12], []byte("WEBP"))
}

// allowedImageMIME sniffs data and reports its MIME type when a vision
// backend can read it.
func allowedImageMIME(data []byte) (string, bool) {
	if isWebP(data) {
		return "image/webp", true
	}
	if mime := http.DetectContentType(data); visionImageTypes[mime] {
		return mime, true
	}
	return "", false
}
