package driver

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"TreeMPI/protocol"
)

const OverflowLine = "overflow"

func BitLine(rank, bit int) string {
	return fmt.Sprintf("%d:%d", rank, bit)
}

func ValueLine(v int) string {
	return strconv.Itoa(v)
}

// EchoLine renders the loaded values on one line, space separated, the way
// the root shows them before sorting.
func EchoLine(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, " ")
}

// Writer is a protocol.Sink that prints every result as soon as it arrives.
// Bits therefore come out in completion order, not chain order.
type Writer struct {
	mu  sync.Mutex
	w   io.Writer
	err error
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

var _ protocol.Sink = (*Writer)(nil)

func (pw *Writer) line(s string) {
	pw.mu.Lock()
	defer pw.mu.Unlock()
	if pw.err != nil {
		return
	}
	_, pw.err = fmt.Fprintln(pw.w, s)
}

func (pw *Writer) Bit(rank, _, bit int) { pw.line(BitLine(rank, bit)) }

func (pw *Writer) Overflow() { pw.line(OverflowLine) }

func (pw *Writer) Value(v int) { pw.line(ValueLine(v)) }

// Echo prints the loaded values line.
func (pw *Writer) Echo(values []int) { pw.line(EchoLine(values)) }

// Err returns the first write error.
func (pw *Writer) Err() error {
	pw.mu.Lock()
	defer pw.mu.Unlock()
	return pw.err
}
