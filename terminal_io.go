// terminal_io.go - Terminal MMIO device for the Armlet Engine

package main

import "sync"

// TerminalMMIO is a pure state-machine terminal device for MMIO register
// access. It owns an input ring buffer and an output buffer. Tests inject
// characters via EnqueueByte(); the host adapter (TerminalHost) feeds stdin
// bytes through the same method.
type TerminalMMIO struct {
	mu sync.Mutex

	// Input ring buffer
	inputBuf  [1024]byte
	inputHead int
	inputTail int
	inputLen  int

	// Output buffer (drained by tests or host adapter)
	outputBuf []byte

	// onCharOutput, when set, receives TERM_OUT bytes immediately instead of
	// buffering. Invoked outside tm.mu to avoid re-entrancy issues.
	onCharOutput func(byte)
}

// NewTerminalMMIO creates a new terminal MMIO device.
func NewTerminalMMIO() *TerminalMMIO {
	return &TerminalMMIO{
		outputBuf: make([]byte, 0, 256),
	}
}

// SetCharOutputCallback registers a callback for TERM_OUT writes. When set,
// TERM_OUT bytes are delivered directly to fn and not buffered in outputBuf.
func (tm *TerminalMMIO) SetCharOutputCallback(fn func(byte)) {
	tm.mu.Lock()
	tm.onCharOutput = fn
	tm.mu.Unlock()
}

// EnqueueByte appends one byte to the input ring buffer, dropping the byte if
// the buffer is full.
func (tm *TerminalMMIO) EnqueueByte(b byte) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	if tm.inputLen == len(tm.inputBuf) {
		return
	}
	tm.inputBuf[tm.inputTail] = b
	tm.inputTail = (tm.inputTail + 1) % len(tm.inputBuf)
	tm.inputLen++
}

// Output returns and clears the buffered output bytes.
func (tm *TerminalMMIO) Output() []byte {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	out := tm.outputBuf
	tm.outputBuf = make([]byte, 0, 256)
	return out
}

// HandleRead processes reads from terminal registers.
func (tm *TerminalMMIO) HandleRead(addr uint32) uint32 {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	switch addr {
	case TERM_STATUS:
		var status uint32
		if tm.inputLen > 0 {
			status |= 1 // bit 0: input available
		}
		status |= 2 // bit 1: output ready (always)
		return status

	case TERM_IN:
		if tm.inputLen == 0 {
			return 0
		}
		b := tm.inputBuf[tm.inputHead]
		tm.inputHead = (tm.inputHead + 1) % len(tm.inputBuf)
		tm.inputLen--
		return uint32(b)
	}
	return 0
}

// HandleWrite processes writes to terminal registers.
func (tm *TerminalMMIO) HandleWrite(addr uint32, value uint32) {
	switch addr {
	case TERM_OUT:
		tm.mu.Lock()
		fn := tm.onCharOutput
		if fn == nil {
			tm.outputBuf = append(tm.outputBuf, byte(value))
		}
		tm.mu.Unlock()
		if fn != nil {
			fn(byte(value))
		}

	case TERM_CTRL:
		if value&1 != 0 {
			tm.mu.Lock()
			tm.inputHead, tm.inputTail, tm.inputLen = 0, 0, 0
			tm.mu.Unlock()
		}
	}
}
