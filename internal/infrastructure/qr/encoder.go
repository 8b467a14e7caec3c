// Package qr renders QR codes as PNG images.
package qr

import (
	"bytes"
	"fmt"
	"image/png"

	"github.com/boombuler/barcode"
	bqr "github.com/boombuler/barcode/qr"

	"github.com/stanfordssi/sats-inventory/internal/application/ports"
)

var _ ports.QREncoder = (*Encoder)(nil)

// Encoder implements ports.QREncoder with boombuler/barcode.
type Encoder struct {
	level bqr.ErrorCorrectionLevel
}

// NewEncoder uses error correction level M, which survives a scratched label.
func NewEncoder() *Encoder {
	return &Encoder{level: bqr.M}
}

// PNG encodes content and scales the symbol to size × size pixels.
func (e *Encoder) PNG(content string, size int) ([]byte, error) {
	if content == "" {
		return nil, fmt.Errorf("qr: empty content")
	}
	code, err := bqr.Encode(content, e.level, bqr.Auto)
	if err != nil {
		return nil, fmt.Errorf("qr: encode: %w", err)
	}
	code, err = barcode.Scale(code, size, size)
	if err != nil {
		return nil, fmt.Errorf("qr: scale to %d px: %w", size, err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, code); err != nil {
		return nil, fmt.Errorf("qr: png: %w", err)
	}
	return buf.Bytes(), nil
}
