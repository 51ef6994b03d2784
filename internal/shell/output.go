package shell

import (
	"bytes"
	"sync"
)

// maxOutputBytes bounds the retained output channel text.
const maxOutputBytes = 1 << 20

// Output is the "Swan Analysis" output channel. It is safe for concurrent writers and
// forwards every write to its listeners.
type Output struct {
	mu        sync.Mutex
	buf       bytes.Buffer
	listeners map[int]func(string)
	nextID    int
}

// NewOutput creates an empty output channel.
func NewOutput() *Output {
	return &Output{listeners: make(map[int]func(string))}
}

func (o *Output) Write(p []byte) (int, error) {
	o.mu.Lock()
	o.buf.Write(p)
	if over := o.buf.Len() - maxOutputBytes; over > 0 {
		o.buf.Next(over)
	}
	listeners := make([]func(string), 0, len(o.listeners))
	for _, fn := range o.listeners {
		listeners = append(listeners, fn)
	}
	o.mu.Unlock()

	text := string(p)
	for _, fn := range listeners {
		fn(text)
	}
	return len(p), nil
}

// String returns the retained text.
func (o *Output) String() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.buf.String()
}

// Clear drops the retained text.
func (o *Output) Clear() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.buf.Reset()
}

// Subscribe registers fn for every future write and returns a function that removes it.
func (o *Output) Subscribe(fn func(string)) func() {
	o.mu.Lock()
	defer o.mu.Unlock()
	id := o.nextID
	o.nextID++
	o.listeners[id] = fn
	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		delete(o.listeners, id)
	}
}
