package backend

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"persai-chat/internal/domain"
)

// maxSSELine bounds a single SSE data line. turn_complete payloads carry the
// entire output message, so the limit is generous.
const maxSSELine = 1024 * 1024

// turnStream reads SSE-formatted lines from an open response body and
// decodes each data payload into a StreamChunk. It implements
// domain.TurnStream.
type turnStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
}

func newTurnStream(body io.ReadCloser) *turnStream {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxSSELine)
	return &turnStream{body: body, scanner: scanner}
}

// Recv returns the next chunk, io.EOF on normal exhaustion, or a wrapped
// ErrStreamFailed on transport errors. Unparseable data lines are skipped;
// the stream protocol tolerates payload variants we do not model.
func (s *turnStream) Recv() (domain.StreamChunk, error) {
	for s.scanner.Scan() {
		line := s.scanner.Bytes()

		// Skip empty lines and comments.
		if len(line) == 0 || line[0] == ':' {
			continue
		}

		// We only care about "data: ..." lines.
		if !bytes.HasPrefix(line, []byte("data: ")) {
			continue
		}
		data := bytes.TrimPrefix(line, []byte("data: "))

		// Common termination signal.
		if bytes.Equal(data, []byte("[DONE]")) {
			return domain.StreamChunk{}, io.EOF
		}

		chunk, err := domain.ParseStreamChunk(data)
		if err != nil {
			continue
		}
		return chunk, nil
	}

	if err := s.scanner.Err(); err != nil {
		return domain.StreamChunk{}, fmt.Errorf("%w: %w", domain.ErrStreamFailed, err)
	}
	return domain.StreamChunk{}, io.EOF
}

// Close releases the underlying connection.
func (s *turnStream) Close() error {
	return s.body.Close()
}

// Compile-time interface check.
var _ domain.TurnStream = (*turnStream)(nil)
