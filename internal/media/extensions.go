package media

import (
	"path/filepath"
	"strings"
)

// audioExtensions and videoExtensions are the supported input containers.
// Anything else is ignored by the listing filter.
var audioExtensions = map[string]bool{
	"mp3": true, "wav": true, "m4a": true, "flac": true,
	"aac": true, "ogg": true, "wma": true,
}

var videoExtensions = map[string]bool{
	"mp4": true, "avi": true, "mov": true, "mkv": true,
	"webm": true, "flv": true, "wmv": true, "m4v": true,
}

// Ext returns the lowercase extension of name without the leading dot.
func Ext(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

// Supported reports whether the file name carries a recognized
// audio or video extension (case-insensitive).
func Supported(name string) bool {
	ext := Ext(name)
	return audioExtensions[ext] || videoExtensions[ext]
}

// IsVideo reports whether the extension belongs to a video container.
func IsVideo(name string) bool {
	return videoExtensions[Ext(name)]
}
