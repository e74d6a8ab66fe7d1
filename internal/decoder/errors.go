package decoder

import "errors"

var (
	// ErrUnsupportedEncoding is returned for any encoding tag other than
	// EncodingBase64Zstd. No decoding is attempted.
	ErrUnsupportedEncoding = errors.New("unsupported encoding")

	// ErrTransport wraps base64 and zstd failures.
	ErrTransport = errors.New("payload transport decoding failed")

	ErrInsufficientData = errors.New("insufficient data")
	ErrInvalidPoolState = errors.New("invalid pool state")
)
