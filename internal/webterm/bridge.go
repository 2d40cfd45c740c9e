// Package webterm mirrors a host process's controlling terminal to a
// single remote web client over WebSocket.
package webterm

import (
	"errors"
	"io"
	"sync"

	"golang.org/x/term"
)

// ErrAlreadyAttached is returned by Attach when a subscriber is
// already bound to the bridge; only one subscriber may be attached at
// a time.
var ErrAlreadyAttached = errors.New("webterm: a subscriber is already attached")

// Size is a terminal's column/row dimensions.
type Size struct {
	Cols int
	Rows int
}

// Subscriber receives mirrored terminal output and full-render
// requests from the bridge it is attached to.
type Subscriber struct {
	Output      chan []byte
	FullRenders chan bool // payload is the "clear" flag
}

func newSubscriber() *Subscriber {
	return &Subscriber{
		Output:      make(chan []byte, 256),
		FullRenders: make(chan bool, 4),
	}
}

// InputHandler forwards input injected by the remote subscriber to the
// host process as if it had been typed at the controlling terminal.
type InputHandler func(data []byte)

// MirroredTerminal wraps a host process's controlling terminal,
// rebroadcasting every chunk written to it to at most one attached
// subscriber, and accepting injected input and size overrides from
// that subscriber.
type MirroredTerminal struct {
	mu sync.Mutex

	tty   io.Writer
	ttyFd int

	subscriber *Subscriber
	onInput    InputHandler
	override   *Size
}

// NewMirroredTerminal wraps tty, whose file descriptor ttyFd is used
// to query the real terminal size when no override is set.
func NewMirroredTerminal(tty io.Writer, ttyFd int) *MirroredTerminal {
	return &MirroredTerminal{tty: tty, ttyFd: ttyFd}
}

// SetInputHandler installs the callback Write-side input is forwarded
// to via InjectInput.
func (m *MirroredTerminal) SetInputHandler(h InputHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onInput = h
}

// Write implements io.Writer: it writes to the real terminal first,
// then rebroadcasts the same chunk to the attached subscriber, if any.
// A slow or absent subscriber never blocks the host's own output.
func (m *MirroredTerminal) Write(p []byte) (int, error) {
	n, err := m.tty.Write(p)
	if err != nil {
		return n, err
	}

	m.mu.Lock()
	sub := m.subscriber
	m.mu.Unlock()

	if sub != nil {
		chunk := append([]byte(nil), p...)
		select {
		case sub.Output <- chunk:
		default:
		}
	}

	return n, nil
}

// Attach binds a new subscriber to the bridge, rejecting the attempt
// if one is already bound.
func (m *MirroredTerminal) Attach() (*Subscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.subscriber != nil {
		return nil, ErrAlreadyAttached
	}
	sub := newSubscriber()
	m.subscriber = sub
	return sub, nil
}

// Detach releases sub, clearing any size override it had set and
// leaving the bridge free for a new subscriber.
func (m *MirroredTerminal) Detach(sub *Subscriber) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subscriber == sub {
		m.subscriber = nil
		m.override = nil
	}
}

// InjectInput forwards data to the host's input handler as if it had
// been typed, a no-op if no handler is installed.
func (m *MirroredTerminal) InjectInput(data []byte) {
	m.mu.Lock()
	handler := m.onInput
	m.mu.Unlock()
	if handler != nil {
		handler(data)
	}
}

// SetSize overrides the reported terminal size until ClearSize is
// called or the subscriber detaches.
func (m *MirroredTerminal) SetSize(cols, rows int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.override = &Size{Cols: cols, Rows: rows}
}

// ClearSize drops any size override, reverting to the real tty size.
func (m *MirroredTerminal) ClearSize() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.override = nil
}

// CurrentSize returns the overridden size if one is set, otherwise the
// real terminal's current size.
func (m *MirroredTerminal) CurrentSize() (Size, error) {
	m.mu.Lock()
	override := m.override
	fd := m.ttyFd
	m.mu.Unlock()

	if override != nil {
		return *override, nil
	}

	cols, rows, err := term.GetSize(fd)
	if err != nil {
		return Size{}, err
	}
	return Size{Cols: cols, Rows: rows}, nil
}

// RequestFullRender asks the attached subscriber's host UI to redraw,
// optionally clearing the screen first. It is a no-op with no
// subscriber attached.
func (m *MirroredTerminal) RequestFullRender(clear bool) {
	m.mu.Lock()
	sub := m.subscriber
	m.mu.Unlock()

	if sub == nil {
		return
	}
	select {
	case sub.FullRenders <- clear:
	default:
	}
}

// HasSubscriber reports whether a subscriber is currently attached.
func (m *MirroredTerminal) HasSubscriber() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subscriber != nil
}
