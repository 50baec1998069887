// Package conv formats integers into caller buffers without fmt or
// strconv, for the link and status paths that must not allocate.
//
// Each function fills buf from the end and returns the used tail.
package conv

const hexDigits = "0123456789ABCDEF"

// Utoa writes n in base 10. buf should hold 20 bytes.
func Utoa(buf []byte, n uint64) []byte {
	i := len(buf)
	if i == 0 {
		return buf
	}
	for {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
		if n == 0 || i == 0 {
			return buf[i:]
		}
	}
}

// Itoa writes n in base 10 with a leading '-' when negative. buf should
// hold 20 bytes.
func Itoa(buf []byte, n int64) []byte {
	if n >= 0 {
		return Utoa(buf, uint64(n))
	}
	if len(buf) < 2 {
		return buf[:0]
	}
	d := Utoa(buf[1:], uint64(-n))
	i := len(buf) - len(d) - 1
	buf[i] = '-'
	return buf[i:]
}

// U32Hex writes n as 8 uppercase hex digits, zero padded, no prefix.
func U32Hex(buf []byte, n uint32) []byte {
	if len(buf) < 8 {
		return buf[:0]
	}
	i := len(buf)
	for j := 0; j < 8; j++ {
		i--
		buf[i] = hexDigits[n&0xF]
		n >>= 4
	}
	return buf[i:]
}

// Deci writes n tenths with one fractional digit ("72.5", "-0.5"). buf
// should hold 22 bytes.
func Deci(buf []byte, n int64) []byte {
	if len(buf) < 4 {
		return buf[:0]
	}
	neg := n < 0
	u := uint64(n)
	if neg {
		u = uint64(-n)
	}
	i := len(buf) - 2
	buf[i+1] = byte('0' + u%10)
	buf[i] = '.'
	i -= len(Utoa(buf[1:i], u/10))
	if neg {
		i--
		buf[i] = '-'
	}
	return buf[i:]
}

// AppendDeci appends Deci(n) to dst.
func AppendDeci(dst []byte, n int64) []byte {
	var b [22]byte
	return append(dst, Deci(b[:], n)...)
}
