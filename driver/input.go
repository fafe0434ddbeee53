// Package driver is the root side of both protocols: it loads the dataset,
// pads it to the leaf count and renders what the workers report.
package driver

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"TreeMPI/protocol"
)

var (
	ErrNotBinary     = errors.New("digit is not 0 or 1")
	ErrTooWide       = errors.New("number is wider than the leaf count")
	ErrTooManyValues = errors.New("more values than leaves")
	ErrBadValue      = errors.New("value is not a non-negative integer")
)

// ValueMode tells how the sort input file is read.
type ValueMode int

const (
	// ValuesBytes takes every byte of the file as one value, newlines included.
	ValuesBytes ValueMode = iota
	// ValuesDecimal takes whitespace separated decimal integers.
	ValuesDecimal
)

func (m ValueMode) String() string {
	if m == ValuesDecimal {
		return "decimal"
	}
	return "bytes"
}

func ParseValueMode(s string) (ValueMode, error) {
	switch s {
	case "", "bytes":
		return ValuesBytes, nil
	case "decimal":
		return ValuesDecimal, nil
	}
	return 0, fmt.Errorf("unknown value mode %q", s)
}

// Input is the unpadded dataset of one run.
type Input struct {
	Number1 []int // Adder operand, most significant bit first.
	Number2 []int // Adder operand, most significant bit first.
	Values  []int // Sort values, in input order.
}

// ReadNumbers parses two newline separated binary numbers. A trailing newline
// and carriage returns are ignored.
func ReadNumbers(r io.Reader) ([]int, []int, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, err
	}

	lines := strings.Split(strings.TrimRight(string(data), "\r\n"), "\n")
	if len(lines) > 2 {
		return nil, nil, fmt.Errorf("expected two numbers, got %d lines", len(lines))
	}

	numbers := make([][]int, 2)
	for i, line := range lines {
		line = strings.TrimRight(line, "\r")
		digits := make([]int, 0, len(line))
		for col, c := range line {
			if c != '0' && c != '1' {
				return nil, nil, fmt.Errorf("line %d column %d %q: %w", i+1, col+1, c, ErrNotBinary)
			}
			digits = append(digits, int(c-'0'))
		}
		numbers[i] = digits
	}
	return numbers[0], numbers[1], nil
}

// PadNumber left-pads number with zeros to width digits.
func PadNumber(number []int, width int) ([]int, error) {
	if len(number) > width {
		return nil, fmt.Errorf("%d digits for %d leaves: %w", len(number), width, ErrTooWide)
	}
	out := make([]int, width)
	copy(out[width-len(number):], number)
	return out, nil
}

// ReadValues parses the sort dataset in the given mode.
func ReadValues(r io.Reader, mode ValueMode) ([]int, error) {
	if mode == ValuesBytes {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, err
		}
		values := make([]int, len(data))
		for i, b := range data {
			values[i] = int(b)
		}
		return values, nil
	}

	var values []int
	sc := bufio.NewScanner(r)
	sc.Split(bufio.ScanWords)
	for sc.Scan() {
		v, err := strconv.Atoi(sc.Text())
		if err != nil || v < 0 {
			return nil, fmt.Errorf("%q: %w", sc.Text(), ErrBadValue)
		}
		values = append(values, v)
	}
	return values, sc.Err()
}

// PadValues appends Padding up to width entries.
func PadValues(values []int, width int) ([]int, error) {
	if len(values) > width {
		return nil, fmt.Errorf("%d values for %d leaves: %w", len(values), width, ErrTooManyValues)
	}
	out := make([]int, width)
	copy(out, values)
	for i := len(values); i < width; i++ {
		out[i] = protocol.Padding
	}
	return out, nil
}

// LoadNumbers reads the adder dataset from path.
func LoadNumbers(path string) (Input, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Input{}, err
	}
	n1, n2, err := ReadNumbers(bytes.NewReader(data))
	if err != nil {
		return Input{}, fmt.Errorf("%s: %w", path, err)
	}
	return Input{Number1: n1, Number2: n2}, nil
}

// LoadValues reads the sort dataset from path.
func LoadValues(path string, mode ValueMode) (Input, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Input{}, err
	}
	values, err := ReadValues(bytes.NewReader(data), mode)
	if err != nil {
		return Input{}, fmt.Errorf("%s: %w", path, err)
	}
	return Input{Values: values}, nil
}

// Numbers returns both operands padded to leaves digits.
func (in Input) Numbers(leaves int) ([]int, []int, error) {
	n1, err := PadNumber(in.Number1, leaves)
	if err != nil {
		return nil, nil, err
	}
	n2, err := PadNumber(in.Number2, leaves)
	if err != nil {
		return nil, nil, err
	}
	return n1, n2, nil
}

// Padded returns the sort values padded to leaves entries.
func (in Input) Padded(leaves int) ([]int, error) {
	return PadValues(in.Values, leaves)
}
