// Package kfmt implements the kernel log: an allocation-free Printf that can
// be used before the Go allocator is up, an early ring buffer that holds its
// output until a sink is attached, and Panic.
package kfmt

import (
	"io"
	"unsafe"
)

// maxBufSize defines the buffer size for formatting numbers.
const maxBufSize = 32

var (
	errMissingArg   = []byte("(MISSING)")
	errWrongArgType = []byte("%!(WRONGTYPE)")
	errNoVerb       = []byte("%!(NOVERB)")
	errExtraArg     = []byte("%!(EXTRA)")
	trueValue       = []byte("true")
	falseValue      = []byte("false")

	numFmtBuf [maxBufSize + 1]byte

	// singleByte is a shared buffer for emitting one character at a time;
	// slicing the format string would make the compiler allocate.
	singleByte = []byte(" ")

	// earlyPrintBuffer collects Printf output until SetOutputSink is called.
	earlyPrintBuffer ringBuffer

	// outputSink receives Printf output. While nil, output goes to
	// earlyPrintBuffer.
	outputSink io.Writer
)

// SetOutputSink sets the default target for calls to Printf to w and copies
// any data accumulated in the early ring buffer to it.
func SetOutputSink(w io.Writer) {
	outputSink = w
	if w != nil {
		io.Copy(w, &earlyPrintBuffer)
	}
}

// Printf formats according to a format specifier and writes to the kernel
// log. It does not allocate and supports the following subset of fmt verbs:
//
//	%s  string or []byte
//	%d  base 10 integer (space padded)
//	%x  base 16 integer, lower-case (zero padded)
//	%o  base 8 integer (zero padded)
//	%t  bool
//
// An optional decimal width may precede the verb. Only built-in integer
// types are recognized, so named types such as mm.VirtualAddress must be
// converted before being passed in.
func Printf(format string, args ...interface{}) {
	Fprintf(outputSink, format, args...)
}

// Fprintf behaves exactly like Printf but it writes the formatted output to
// the specified io.Writer.
func Fprintf(w io.Writer, format string, args ...interface{}) {
	var (
		argIndex int
		width    int
		verb     byte
	)

	for i := 0; i < len(format); i++ {
		if format[i] != '%' {
			writeByte(w, format[i])
			continue
		}

		for width, i = 0, i+1; i < len(format) && format[i] >= '0' && format[i] <= '9'; i++ {
			width = width*10 + int(format[i]-'0')
		}

		if i == len(format) {
			doWrite(w, errNoVerb)
			break
		}

		switch verb = format[i]; verb {
		case '%':
			writeByte(w, '%')
			continue
		case 'd', 'x', 'o', 's', 't':
		default:
			doWrite(w, errNoVerb)
			continue
		}

		if argIndex >= len(args) {
			doWrite(w, errMissingArg)
			continue
		}

		switch verb {
		case 'd':
			fmtInt(w, args[argIndex], 10, width)
		case 'x':
			fmtInt(w, args[argIndex], 16, width)
		case 'o':
			fmtInt(w, args[argIndex], 8, width)
		case 's':
			fmtString(w, args[argIndex], width)
		case 't':
			fmtBool(w, args[argIndex])
		}
		argIndex++
	}

	for ; argIndex < len(args); argIndex++ {
		doWrite(w, errExtraArg)
	}
}

func fmtBool(w io.Writer, v interface{}) {
	b, ok := v.(bool)
	switch {
	case !ok:
		doWrite(w, errWrongArgType)
	case b:
		doWrite(w, trueValue)
	default:
		doWrite(w, falseValue)
	}
}

func fmtString(w io.Writer, v interface{}, width int) {
	switch str := v.(type) {
	case string:
		writeRepeat(w, ' ', width-len(str))
		for i := 0; i < len(str); i++ {
			writeByte(w, str[i])
		}
	case []byte:
		writeRepeat(w, ' ', width-len(str))
		doWrite(w, str)
	default:
		doWrite(w, errWrongArgType)
	}
}

// fmtInt writes v in the requested base. Base 10 output is padded with spaces
// and the sign sits next to the digits; base 8/16 output is padded with zeros
// and the sign comes first.
func fmtInt(w io.Writer, v interface{}, base uint64, width int) {
	var (
		uval uint64
		neg  bool
	)

	switch n := v.(type) {
	case uint8:
		uval = uint64(n)
	case uint16:
		uval = uint64(n)
	case uint32:
		uval = uint64(n)
	case uint64:
		uval = n
	case uint:
		uval = uint64(n)
	case uintptr:
		uval = uint64(n)
	case int8:
		uval, neg = abs(int64(n))
	case int16:
		uval, neg = abs(int64(n))
	case int32:
		uval, neg = abs(int64(n))
	case int64:
		uval, neg = abs(n)
	case int:
		uval, neg = abs(int64(n))
	default:
		doWrite(w, errWrongArgType)
		return
	}

	if width > maxBufSize {
		width = maxBufSize
	}

	// Digits are produced right to left at the end of numFmtBuf.
	pos := len(numFmtBuf)
	for {
		pos--
		digit := uval % base
		if digit < 10 {
			numFmtBuf[pos] = byte(digit) + '0'
		} else {
			numFmtBuf[pos] = byte(digit-10) + 'a'
		}
		if uval /= base; uval == 0 {
			break
		}
	}

	digits := len(numFmtBuf) - pos
	if neg {
		digits++
	}

	if base == 10 {
		writeRepeat(w, ' ', width-digits)
		if neg {
			writeByte(w, '-')
		}
	} else {
		if neg {
			writeByte(w, '-')
		}
		writeRepeat(w, '0', width-digits)
	}

	doWrite(w, numFmtBuf[pos:])
}

func abs(v int64) (uint64, bool) {
	if v < 0 {
		return uint64(-v), true
	}
	return uint64(v), false
}

func writeRepeat(w io.Writer, ch byte, count int) {
	for ; count > 0; count-- {
		writeByte(w, ch)
	}
}

func writeByte(w io.Writer, ch byte) {
	singleByte[0] = ch
	doWrite(w, singleByte)
}

// doWrite hides p from escape analysis. Without it the compiler cannot prove
// that p does not escape through the io.Writer call and every Printf would
// allocate, which crashes the kernel before the allocator is initialized.
func doWrite(w io.Writer, p []byte) {
	doRealWrite(w, noEscape(unsafe.Pointer(&p)))
}

func doRealWrite(w io.Writer, bufPtr unsafe.Pointer) {
	p := *(*[]byte)(bufPtr)
	if w != nil {
		w.Write(p)
	} else {
		earlyPrintBuffer.Write(p)
	}
}

// noEscape hides a pointer from escape analysis. This function is copied over
// from runtime/stubs.go
//
//go:nosplit
func noEscape(p unsafe.Pointer) unsafe.Pointer {
	x := uintptr(p)
	return unsafe.Pointer(x ^ 0)
}
