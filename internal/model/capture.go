// Package model defines the core domain models used throughout the application.
package model

import (
	"fmt"
	"strings"
)

// MediaKind identifies what an observer captured.
type MediaKind string

// Media kinds accepted by the intake pipeline.
const (
	MediaImage MediaKind = "image"
	MediaAudio MediaKind = "audio"
)

// Valid reports whether k is a supported media kind.
func (k MediaKind) Valid() bool {
	return k == MediaImage || k == MediaAudio
}

// ParseMediaKind converts user input into a MediaKind.
func ParseMediaKind(s string) (MediaKind, error) {
	k := MediaKind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("unsupported media kind %q", s)
	}
	return k, nil
}

// Capture is the raw observer input. It lives only for one intake.
type Capture struct {
	Kind        MediaKind `validate:"required,oneof=image audio"`
	Filename    string    `validate:"required"`
	ContentType string
	Data        []byte `validate:"required,min=1"`
}

// Extension returns the lower-cased file extension without the dot.
func (c Capture) Extension() string {
	idx := strings.LastIndex(c.Filename, ".")
	if idx < 0 || idx == len(c.Filename)-1 {
		return ""
	}
	return strings.ToLower(c.Filename[idx+1:])
}

// RawText is the plain text extracted from a capture.
type RawText struct {
	Text   string
	Source MediaKind
}
