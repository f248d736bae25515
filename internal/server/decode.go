package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

var (
	// ErrBodyTooLarge is returned when a body exceeds the configured limit,
	// before or after decompression.
	ErrBodyTooLarge = errors.New("request body too large")
	// ErrUnsupportedEncoding is returned for a Content-Encoding other than
	// identity, gzip or zstd.
	ErrUnsupportedEncoding = errors.New("unsupported content encoding")
)

// bodyDecoder reads request bodies, decompressing zstd and gzip. The zstd
// decoder is shared; DecodeAll is safe for concurrent use.
type bodyDecoder struct {
	zstd  *zstd.Decoder
	limit int64
}

func newBodyDecoder(limit int64) (*bodyDecoder, error) {
	dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(uint64(limit)), zstd.WithDecoderConcurrency(0))
	if err != nil {
		return nil, err
	}
	return &bodyDecoder{zstd: dec, limit: limit}, nil
}

// read returns the decoded body.
func (d *bodyDecoder) read(r io.Reader, encoding string) ([]byte, error) {
	raw, err := d.readLimited(r)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "identity":
		return raw, nil
	case "zstd":
		out, err := d.zstd.DecodeAll(raw, nil)
		if err != nil {
			if errors.Is(err, zstd.ErrDecoderSizeExceeded) || errors.Is(err, zstd.ErrWindowSizeExceeded) {
				return nil, ErrBodyTooLarge
			}
			return nil, fmt.Errorf("zstd: %w", err)
		}
		if int64(len(out)) > d.limit {
			return nil, ErrBodyTooLarge
		}
		return out, nil
	case "gzip":
		gz, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		defer gz.Close()
		return d.readLimited(gz)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEncoding, encoding)
	}
}

func (d *bodyDecoder) readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, d.limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > d.limit {
		return nil, ErrBodyTooLarge
	}
	return data, nil
}

func (d *bodyDecoder) close() {
	d.zstd.Close()
}
