package qr

import (
	"fmt"
	"strings"

	"github.com/skip2/go-qrcode"

	"ms-events/internal/models"
)

const DefaultSize = 256

// ShareTarget is what the code points at: the meeting link for online events
// that have one, otherwise the dashboard page for the event.
func ShareTarget(publicURL string, event models.Event) string {
	if event.IsOnline && event.MeetingURL != nil && *event.MeetingURL != "" {
		return *event.MeetingURL
	}
	return fmt.Sprintf("%s/events/%s", strings.TrimRight(publicURL, "/"), event.ID)
}

// SharePNG renders the share target as a PNG.
func SharePNG(publicURL string, event models.Event, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultSize
	}
	png, err := qrcode.Encode(ShareTarget(publicURL, event), qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode qr for event %s: %w", event.ID, err)
	}
	return png, nil
}
