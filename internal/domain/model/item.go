// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"strings"
	"time"
)

// ContentType is the closed set of media kinds an item can carry.
type ContentType string

// Known content types.
const (
	ContentImage ContentType = "image"
	ContentVideo ContentType = "video"
	ContentAudio ContentType = "audio"
	ContentText  ContentType = "text"
	ContentLink  ContentType = "link"
	ContentOther ContentType = "other"
)

var contentTypes = map[ContentType]struct{}{
	ContentImage: {}, ContentVideo: {}, ContentAudio: {},
	ContentText: {}, ContentLink: {}, ContentOther: {},
}

// ParseContentType normalises s and checks it belongs to the enumeration.
func ParseContentType(s string) (ContentType, error) {
	ct := ContentType(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := contentTypes[ct]; !ok {
		return "", fmt.Errorf("unknown content type %q", s)
	}
	return ct, nil
}

// Item is a community submission owned by the external catalog.
type Item struct {
	ID          string      `json:"id" yaml:"id"`
	Title       string      `json:"title" yaml:"title"`
	Description string      `json:"description,omitempty" yaml:"description"`
	Creator     string      `json:"creator" yaml:"creator"`
	CreatedAt   time.Time   `json:"createdAt" yaml:"created_at"`
	Verified    bool        `json:"verified" yaml:"verified"`
	Tags        []string    `json:"tags,omitempty" yaml:"tags"`
	ContentType ContentType `json:"contentType" yaml:"content_type"`
}

// NormalizeTags trims tags and drops empties and repeats, keeping first-seen order.
func NormalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
