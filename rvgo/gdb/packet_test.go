package gdb

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func decodeAll(t *testing.T, stream []byte) *decoder {
	t.Helper()
	return &decoder{next: byteSource(bytes.NewReader(stream))}
}

func TestAppendPacket(t *testing.T) {
	require.Equal(t, "$#00", string(AppendPacket(nil, nil)))
	require.Equal(t, "$OK#9a", string(AppendPacket(nil, []byte("OK"))))
	require.Equal(t, "$S05#b8", string(AppendPacket(nil, []byte("S05"))))

	// the checksum covers the escape byte and the escaped byte
	framed := AppendPacket(nil, []byte("a#"))
	require.Equal(t, []byte{'$', 'a', escapeByte, '#' ^ 0x20, '#'}, framed[:5])
	require.Equal(t, Checksum([]byte{'a', escapeByte, '#' ^ 0x20}), byte(0x61+0x7d+0x03))
	require.Equal(t, "#e1", string(framed[5:]))
}

func TestDecoderRoundTrip(t *testing.T) {
	payloads := []string{"", "g", "m20000000,4", "a#b$c}d*e", strings.Repeat("x", MaxPacketSize)}
	var stream []byte
	for _, p := range payloads {
		stream = append(stream, '+') // acks between frames are skipped
		stream = AppendPacket(stream, []byte(p))
	}
	dec := decodeAll(t, stream)
	for _, want := range payloads {
		got, err := dec.ReadPacket()
		require.NoError(t, err)
		require.Equal(t, want, string(got))
	}
}

func TestDecoderChecksumMismatch(t *testing.T) {
	dec := decodeAll(t, []byte("$g#00$g#67"))
	_, err := dec.ReadPacket()
	require.ErrorIs(t, err, ErrChecksum)
	require.True(t, isRecoverable(err))

	pkt, err := dec.ReadPacket()
	require.NoError(t, err)
	require.Equal(t, "g", string(pkt))
}

func TestDecoderTooLarge(t *testing.T) {
	big := strings.Repeat("a", MaxPacketSize+1)
	stream := AppendPacket(nil, []byte(big))
	stream = AppendPacket(stream, []byte("?"))
	dec := decodeAll(t, stream)

	_, err := dec.ReadPacket()
	require.ErrorIs(t, err, ErrPacketTooLarge)
	pkt, err := dec.ReadPacket()
	require.NoError(t, err)
	require.Equal(t, "?", string(pkt))
}

func TestDecoderMalformed(t *testing.T) {
	t.Run("frame start inside packet", func(t *testing.T) {
		dec := decodeAll(t, []byte("$abc$g#67"))
		_, err := dec.ReadPacket()
		require.ErrorIs(t, err, ErrMalformed)
		pkt, err := dec.ReadPacket()
		require.NoError(t, err)
		require.Equal(t, "g", string(pkt))
	})
	t.Run("bad checksum digits", func(t *testing.T) {
		dec := decodeAll(t, []byte("$g#zz$?#3f"))
		_, err := dec.ReadPacket()
		require.ErrorIs(t, err, ErrMalformed)
		pkt, err := dec.ReadPacket()
		require.NoError(t, err)
		require.Equal(t, "?", string(pkt))
	})
}

func TestTargetXML(t *testing.T) {
	require.Contains(t, targetXML, "<architecture>riscv:rv32</architecture>")
	require.Contains(t, targetXML, `<reg name="zero" bitsize="32" type="int" regnum="0"/>`)
	require.Contains(t, targetXML, `<reg name="pc" bitsize="32" type="code_ptr" regnum="32"/>`)
	require.Equal(t, 33, strings.Count(targetXML, "<reg "))
}
