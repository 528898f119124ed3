package migrations

import "strings"

const (
	markerUp   = "-- +goose Up"
	markerDown = "-- +goose Down"
)

func upSection(src string) string {
	if i := strings.Index(src, markerUp); i >= 0 {
		src = src[i+len(markerUp):]
	}
	if i := strings.Index(src, markerDown); i >= 0 {
		src = src[:i]
	}
	return strings.TrimSpace(src)
}
