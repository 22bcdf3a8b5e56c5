package httpx

import (
	"context"
	"strconv"
	"strings"
)

// readExactBody reads a Content-Length-delimited response body to
// completion, chunked into ~32KB transport reads so onChunk (which
// re-arms the stall timer) fires repeatedly across a large body rather
// than once at the end.
func readExactBody(ctx context.Context, t Transport, n int64, onChunk func()) ([]byte, error) {
	const maxRead = 32 * 1024
	buf := make([]byte, 0, n)
	for n > 0 {
		want := n
		if want > maxRead {
			want = maxRead
		}
		s, err := t.ReadExact(int(want)).Wait(ctx)
		if err != nil {
			return nil, err
		}
		buf = append(buf, s...)
		n -= int64(len(s))
		onChunk()
	}
	return buf, nil
}

// readChunkedBody reads a Transfer-Encoding: chunked response body to
// completion, adapted from internal/http1's chunked reader to the
// Connection's Future-based Transport. Trailers are read and discarded,
// per SPEC_FULL.md's resolution of the chunked-trailers Open Question.
func readChunkedBody(ctx context.Context, t Transport, onChunk func()) ([]byte, error) {
	var buf []byte
	for {
		line, err := t.ReadDelimited("\r\n").Wait(ctx)
		if err != nil {
			return nil, err
		}
		onChunk()
		size, err := parseChunkSize(line)
		if err != nil {
			return nil, &Error{Kind: KindFraming, Message: "invalid chunk size", Err: err}
		}
		if size == 0 {
			if err := drainTrailers(ctx, t, onChunk); err != nil {
				return nil, err
			}
			return buf, nil
		}
		s, err := t.ReadExact(int(size)).Wait(ctx)
		if err != nil {
			return nil, err
		}
		buf = append(buf, s...)
		onChunk()
		if _, err := t.ReadExact(2).Wait(ctx); err != nil {
			return nil, err
		}
	}
}

func drainTrailers(ctx context.Context, t Transport, onChunk func()) error {
	for {
		line, err := t.ReadDelimited("\r\n").Wait(ctx)
		if err != nil {
			return err
		}
		onChunk()
		if line == "" {
			return nil
		}
	}
}

// readCloseDelimitedBody reads a response body that ends only when the
// peer closes the connection. It reads one byte at a time: ReadExact is
// backed by io.ReadFull (see readExactFrom in transport.go), which
// returns no partial data on a short read, so asking for a larger chunk
// near the end of the body would silently drop the final bytes. Any
// transport error here just means the body is done, not that something
// failed.
func readCloseDelimitedBody(ctx context.Context, t Transport, onChunk func()) []byte {
	var buf []byte
	for {
		s, err := t.ReadExact(1).Wait(ctx)
		if err != nil {
			return buf
		}
		buf = append(buf, s...)
		onChunk()
	}
}

func parseChunkSize(line string) (int64, error) {
	if i := strings.IndexByte(line, ';'); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimSpace(line)
	n, err := strconv.ParseInt(line, 16, 64)
	if err != nil || n < 0 {
		return 0, ErrProtocolViolation
	}
	return n, nil
}
