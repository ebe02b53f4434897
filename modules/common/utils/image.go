package utils

import (
	"bytes"
	"fmt"
	"image/png"

	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"

	"muse-stream-server/modules/common/logger"
)

// ConvertPNGToWebP re-encodes a PNG image as lossy WebP at the given quality.
// Cover art is stored as WebP to keep the overlay assets small.
func ConvertPNGToWebP(pngData []byte, quality float32) ([]byte, error) {
	log := logger.WithComponent("image")

	img, err := png.Decode(bytes.NewReader(pngData))
	if err != nil {
		return nil, fmt.Errorf("failed to decode PNG: %w", err)
	}

	options, err := encoder.NewLossyEncoderOptions(encoder.PresetDefault, quality)
	if err != nil {
		return nil, fmt.Errorf("failed to create WebP encoder options: %w", err)
	}

	var webpBuffer bytes.Buffer
	if err := webp.Encode(&webpBuffer, img, options); err != nil {
		return nil, fmt.Errorf("failed to encode WebP: %w", err)
	}

	webpData := webpBuffer.Bytes()
	log.Debug().
		Int("png_bytes", len(pngData)).
		Int("webp_bytes", len(webpData)).
		Msg("🔄 PNG converted to WebP")

	return webpData, nil
}
