package utils

import (
	"bufio"
	"io"
	"net/http"
)

// maxLine bounds a single relayed line; upstream chunks are JSON events well
// under this.
const maxLine = 1 << 20

// SetupStreamHeaders marks the response as a live event stream: caching off
// and intermediary buffering (nginx and friends) disabled so chunks reach
// the browser as they arrive.
func SetupStreamHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
}

// ForwardLines copies upstream line by line into w, flushing after every
// line so ordering and chunk boundaries survive intact. No framing is added
// beyond the trailing newline each line carries. The first error, if any, is
// returned after all preceding lines have been forwarded.
func ForwardLines(upstream io.Reader, w io.Writer, flusher http.Flusher) error {
	scanner := bufio.NewScanner(upstream)
	scanner.Buffer(make([]byte, 64*1024), maxLine)

	for scanner.Scan() {
		if _, err := w.Write(scanner.Bytes()); err != nil {
			return err
		}
		if _, err := io.WriteString(w, "\n"); err != nil {
			return err
		}
		flusher.Flush()
	}
	return scanner.Err()
}
