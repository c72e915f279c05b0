package fetcher

import (
	"bufio"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
)

// readBody decodes the Content-Encoding of body and reads at most limit
// decoded bytes. truncated is true when more data was available.
func readBody(body io.Reader, contentEncoding string, limit int64) (data []byte, truncated bool, err error) {
	reader, closeFn, err := decoder(body, contentEncoding)
	if err != nil {
		return nil, false, err
	}
	defer closeFn()

	if limit <= 0 {
		data, err = io.ReadAll(reader)
		return data, false, err
	}

	data, err = io.ReadAll(io.LimitReader(reader, limit+1))
	if err != nil {
		return data, false, err
	}
	if int64(len(data)) > limit {
		return data[:limit], true, nil
	}
	return data, false, nil
}

// decoder wraps body in the decompressor for encoding. Unknown encodings
// are passed through untouched.
func decoder(body io.Reader, encoding string) (io.Reader, func(), error) {
	noop := func() {}
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "identity":
		return body, noop, nil
	case "gzip", "x-gzip":
		gz, err := gzip.NewReader(body)
		if err != nil {
			return nil, noop, fmt.Errorf("gzip decode: %w", err)
		}
		return gz, func() { _ = gz.Close() }, nil
	case "br":
		return brotli.NewReader(body), noop, nil
	case "deflate":
		// Servers send both zlib-wrapped and raw deflate streams.
		br := bufio.NewReader(body)
		if header, err := br.Peek(2); err == nil && isZlibHeader(header) {
			zr, err := zlib.NewReader(br)
			if err != nil {
				return nil, noop, fmt.Errorf("deflate decode: %w", err)
			}
			return zr, func() { _ = zr.Close() }, nil
		}
		fl := flate.NewReader(br)
		return fl, func() { _ = fl.Close() }, nil
	default:
		return body, noop, nil
	}
}

func isZlibHeader(b []byte) bool {
	return b[0]&0x0f == 8 && (uint16(b[0])<<8|uint16(b[1]))%31 == 0
}
