package compress

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// minCompressSize is the payload size below which compression is skipped.
const minCompressSize = 128

// Codec compresses and decompresses file content with zstd. Callers record
// whether a payload was actually compressed and pass only compressed payloads
// back to Decompress.
type Codec struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewCodec builds a codec at the given level (1 fastest, 2 default, 3 best).
func NewCodec(level int) (*Codec, error) {
	var encoderLevel zstd.EncoderLevel
	switch level {
	case 1:
		encoderLevel = zstd.SpeedFastest
	case 2:
		encoderLevel = zstd.SpeedDefault
	case 3:
		encoderLevel = zstd.SpeedBetterCompression
	default:
		encoderLevel = zstd.SpeedDefault
	}

	encoder, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(encoderLevel),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	return &Codec{encoder: encoder, decoder: decoder}, nil
}

// Compress returns the compressed payload and true, or the original payload
// and false when the input is small or does not shrink.
func (c *Codec) Compress(data []byte) ([]byte, bool) {
	if len(data) < minCompressSize {
		return data, false
	}
	compressed := c.encoder.EncodeAll(data, make([]byte, 0, len(data)))
	if len(compressed) >= len(data) {
		return data, false
	}
	return compressed, true
}

// Decompress restores a payload previously returned by Compress with ok=true.
func (c *Codec) Decompress(data []byte) ([]byte, error) {
	out, err := c.decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decode: %w", err)
	}
	return out, nil
}

// Close releases encoder and decoder resources.
func (c *Codec) Close() error {
	if c.encoder != nil {
		c.encoder.Close()
	}
	if c.decoder != nil {
		c.decoder.Close()
	}
	return nil
}
