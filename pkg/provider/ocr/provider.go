// Package ocr defines the Provider interface for optical character
// recognition backends.
package ocr

import "context"

// Provider extracts printed or handwritten text from an image.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	// DetectText returns the full text found in image (PNG, JPEG, GIF, WebP or
	// any format the backend accepts). An image without text yields "" and a
	// nil error.
	DetectText(ctx context.Context, image []byte) (string, error)
}
