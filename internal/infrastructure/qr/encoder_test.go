package qr_test

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stanfordssi/sats-inventory/internal/infrastructure/qr"
)

func TestPNG(t *testing.T) {
	data, err := qr.NewEncoder().PNG("https://inv.example.org/qrcode/01-0001", 256)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 256, img.Bounds().Dx())
	assert.Equal(t, 256, img.Bounds().Dy())
}

func TestPNG_Errors(t *testing.T) {
	_, err := qr.NewEncoder().PNG("", 256)
	assert.Error(t, err)

	_, err = qr.NewEncoder().PNG("01-0001", 8)
	assert.Error(t, err, "smaller than the symbol itself")
}
