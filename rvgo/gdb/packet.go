package gdb

import (
	"errors"
	"fmt"
	"io"
)

const (
	// MaxPacketSize is the largest payload accepted, and advertised in qSupported.
	MaxPacketSize = 4096

	escapeByte    = 0x7d
	interruptByte = 0x03
	ackByte       = '+'
	nackByte      = '-'
)

var (
	ErrChecksum       = errors.New("packet checksum mismatch")
	ErrMalformed      = errors.New("malformed packet")
	ErrPacketTooLarge = errors.New("packet too large")
)

// Checksum is the modulo 256 sum of the bytes, as they appear on the wire.
func Checksum(b []byte) byte {
	var sum byte
	for _, c := range b {
		sum += c
	}
	return sum
}

func needsEscape(c byte) bool {
	return c == '$' || c == '#' || c == escapeByte || c == '*'
}

// AppendPacket frames payload as $data#cc, escaping the bytes that would
// otherwise end the frame or start a run-length sequence.
func AppendPacket(dst []byte, payload []byte) []byte {
	dst = append(dst, '$')
	start := len(dst)
	for _, c := range payload {
		if needsEscape(c) {
			dst = append(dst, escapeByte, c^0x20)
		} else {
			dst = append(dst, c)
		}
	}
	sum := Checksum(dst[start:])
	return fmt.Appendf(dst, "#%02x", sum)
}

// decoder reads framed packets from a byte source.
type decoder struct {
	next func() (byte, error)
	// restart is set when a '$' was found inside the previous frame,
	// so the next frame is already open.
	restart bool
}

func unhex(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// ReadPacket returns the unescaped payload of the next frame. Bytes between
// frames are skipped. ErrChecksum, ErrMalformed and ErrPacketTooLarge are
// recoverable: the frame has been consumed and the next call resumes after it.
// Any other error comes from the byte source.
func (d *decoder) ReadPacket() ([]byte, error) {
	if !d.restart {
		for {
			c, err := d.next()
			if err != nil {
				return nil, err
			}
			if c == '$' {
				break
			}
		}
	}
	d.restart = false

	var (
		payload  []byte
		sum      byte
		tooLarge bool
		escaped  bool
	)
	for {
		c, err := d.next()
		if err != nil {
			return nil, err
		}
		if c == '#' && !escaped {
			break
		}
		if c == '$' && !escaped {
			d.restart = true
			return nil, fmt.Errorf("%w: frame start inside a packet", ErrMalformed)
		}
		sum += c
		if escaped {
			c ^= 0x20
			escaped = false
		} else if c == escapeByte {
			escaped = true
			continue
		}
		if len(payload) >= MaxPacketSize {
			// keep consuming up to the checksum so the stream stays in sync
			tooLarge = true
			continue
		}
		payload = append(payload, c)
	}

	var want byte
	for i := 0; i < 2; i++ {
		c, err := d.next()
		if err != nil {
			return nil, err
		}
		v, ok := unhex(c)
		if !ok {
			return nil, fmt.Errorf("%w: bad checksum digit %q", ErrMalformed, c)
		}
		want = want<<4 | v
	}
	if tooLarge {
		return nil, ErrPacketTooLarge
	}
	if want != sum {
		return nil, fmt.Errorf("%w: got %02x, computed %02x", ErrChecksum, want, sum)
	}
	return payload, nil
}

// isRecoverable reports whether a decode error only affects the current frame.
func isRecoverable(err error) bool {
	return errors.Is(err, ErrChecksum) || errors.Is(err, ErrMalformed) || errors.Is(err, ErrPacketTooLarge)
}

// byteSource adapts an io.ByteReader to the decoder.
func byteSource(r io.ByteReader) func() (byte, error) {
	return r.ReadByte
}
