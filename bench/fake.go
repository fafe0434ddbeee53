package bench

import (
	"bytes"
	"math/rand"
	"strconv"

	"TreeMPI/driver"
)

// FakeNumbers returns two random operands of width bits.
func FakeNumbers(width int, seed int64) driver.Input {
	rng := rand.New(rand.NewSource(seed))
	in := driver.Input{Number1: make([]int, width), Number2: make([]int, width)}
	for i := 0; i < width; i++ {
		in.Number1[i] = rng.Intn(2)
		in.Number2[i] = rng.Intn(2)
	}
	return in
}

// FakeValues returns count random byte values.
func FakeValues(count int, seed int64) driver.Input {
	rng := rand.New(rand.NewSource(seed))
	in := driver.Input{Values: make([]int, count)}
	for i := range in.Values {
		in.Values[i] = rng.Intn(256)
	}
	return in
}

// NumbersFile renders operands in the adder's input file format.
func NumbersFile(in driver.Input) []byte {
	var buffer bytes.Buffer
	for _, number := range [][]int{in.Number1, in.Number2} {
		for _, d := range number {
			buffer.WriteString(strconv.Itoa(d))
		}
		buffer.WriteString("\n")
	}
	return buffer.Bytes()
}

// ValuesFile renders values in the decimal sort input format.
func ValuesFile(in driver.Input) []byte {
	var buffer bytes.Buffer
	for i, v := range in.Values {
		if i > 0 {
			buffer.WriteString(" ")
		}
		buffer.WriteString(strconv.Itoa(v))
	}
	buffer.WriteString("\n")
	return buffer.Bytes()
}
