package model

import "github.com/secmon-lab/companion/pkg/domain/types"

// Image is an attachment sent along with a user turn
type Image struct {
	MIMEType string
	Data     []byte `masq:"secret"`
}

// IsEmpty reports whether the image carries no data
func (img *Image) IsEmpty() bool {
	return img == nil || len(img.Data) == 0
}

// Turn is one role/content entry of a completion prompt
type Turn struct {
	Role    types.Role
	Content string
	Image   *Image
}

// StreamOptions controls a streaming completion request
type StreamOptions struct {
	HasImage bool
}
