package bridge

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

const maxLineSize = 4 * 1024 * 1024

// ServeStdio serves one editor session over newline-delimited JSON until r is exhausted
// or ctx is cancelled.
func (b *Bridge) ServeStdio(ctx context.Context, r io.Reader, w io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s := b.register()
	defer b.unregister(s)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		enc := json.NewEncoder(w)
		for {
			select {
			case out := <-s.writeCh:
				if err := enc.Encode(out); err != nil {
					b.logger.Warn("failed to write bridge message", "error", err)
					return
				}
			case <-ctx.Done():
				// flush what is already queued
				for {
					select {
					case out := <-s.writeCh:
						if err := enc.Encode(out); err != nil {
							return
						}
					default:
						return
					}
				}
			}
		}
	}()

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 64*1024), maxLineSize)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	var err error
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case err = <-readErr:
			break loop
		case line := <-lines:
			if strings.TrimSpace(line) == "" {
				continue
			}
			var in Inbound
			if decodeErr := json.Unmarshal([]byte(line), &in); decodeErr != nil {
				push(s.writeCh, Outbound{Type: TypeError, Code: CodeInvalidArgument, Message: fmt.Sprintf("malformed message: %v", decodeErr)})
				continue
			}
			if out, ok := b.Dispatch(ctx, in); ok {
				push(s.writeCh, out)
			}
		}
	}

	cancel()
	<-writerDone
	if err != nil {
		return fmt.Errorf("failed to read bridge input: %w", err)
	}
	return nil
}
