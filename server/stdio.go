package server

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
)

// maxFrameBytes bounds one newline-framed message on the stdio transport.
const maxFrameBytes = 16 * 1024 * 1024

// StdioServer serves the protocol over a newline-framed byte stream, one
// message at a time. Requests are strictly sequential; there is exactly one
// peer.
type StdioServer struct {
	dispatcher *Dispatcher
	in         io.Reader
	out        io.Writer
	logger     *slog.Logger
}

// NewStdioServer binds the dispatcher to an input and output stream, usually
// os.Stdin and os.Stdout. Logs must go elsewhere; out carries only protocol
// frames.
func NewStdioServer(dispatcher *Dispatcher, in io.Reader, out io.Writer, logger *slog.Logger) *StdioServer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &StdioServer{dispatcher: dispatcher, in: in, out: out, logger: logger}
}

// Run reads frames until EOF or context cancellation. Each frame is handed
// to the dispatcher and the response, if any, is written back followed by a
// newline.
func (s *StdioServer) Run(ctx context.Context) error {
	type frame struct {
		line string
		err  error
	}
	frames := make(chan frame)

	scanner := bufio.NewScanner(s.in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxFrameBytes)
	go func() {
		defer close(frames)
		for scanner.Scan() {
			select {
			case frames <- frame{line: scanner.Text()}:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			select {
			case frames <- frame{err: err}:
			case <-ctx.Done():
			}
		}
	}()

	w := bufio.NewWriter(s.out)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f, ok := <-frames:
			if !ok {
				return nil
			}
			if f.err != nil {
				return f.err
			}
			line := strings.TrimSpace(f.line)
			if line == "" {
				continue
			}
			resp := s.dispatcher.Handle(ctx, []byte(line))
			if resp == nil {
				continue
			}
			if err := writeFrame(w, resp); err != nil {
				if errors.Is(err, io.ErrClosedPipe) {
					return nil
				}
				return err
			}
		}
	}
}

func writeFrame(w *bufio.Writer, resp []byte) error {
	if _, err := w.Write(resp); err != nil {
		return err
	}
	if err := w.WriteByte('\n'); err != nil {
		return err
	}
	return w.Flush()
}
