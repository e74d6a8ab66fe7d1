package decoder

import (
	"encoding/base64"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// EncodingBase64Zstd is the only account data encoding we subscribe with.
const EncodingBase64Zstd = "base64+zstd"

// maxDecodedSize bounds a single decompressed account.
const maxDecodedSize = 10 << 20

var (
	zstdDecoder *zstd.Decoder
	zstdEncoder *zstd.Encoder
	zstdOnce    sync.Once
	zstdErr     error
)

func codecs() (*zstd.Decoder, *zstd.Encoder, error) {
	zstdOnce.Do(func() {
		zstdDecoder, zstdErr = zstd.NewReader(nil,
			zstd.WithDecoderConcurrency(0),
			zstd.WithDecoderMaxMemory(maxDecodedSize),
		)
		if zstdErr != nil {
			return
		}
		zstdEncoder, zstdErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	})
	return zstdDecoder, zstdEncoder, zstdErr
}

// Decompress turns an account data pair into raw account bytes.
func Decompress(payload, encoding string) ([]byte, error) {
	if encoding != EncodingBase64Zstd {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEncoding, encoding)
	}

	compressed, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: base64: %w", ErrTransport, err)
	}

	dec, _, err := codecs()
	if err != nil {
		return nil, fmt.Errorf("%w: zstd init: %w", ErrTransport, err)
	}

	raw, err := dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: zstd: %w", ErrTransport, err)
	}
	return raw, nil
}

// EncodePayload compresses raw account bytes into the base64+zstd form a
// node would send.
func EncodePayload(raw []byte) (string, error) {
	_, enc, err := codecs()
	if err != nil {
		return "", fmt.Errorf("zstd init: %w", err)
	}
	return base64.StdEncoding.EncodeToString(enc.EncodeAll(raw, nil)), nil
}
