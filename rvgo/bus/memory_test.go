package bus

import (
	"bytes"
	"crypto/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryRegionZeroSize(t *testing.T) {
	_, err := NewMemoryRegion("ram", 0, 0, ReadWrite)
	require.Error(t, err)
}

func TestMemoryRegionReadWrite(t *testing.T) {
	m, err := NewMemoryRegion("ram", 0x8000, 0x100, ReadWrite)
	require.NoError(t, err)
	require.Equal(t, Range{Start: 0x8000, Size: 0x100}, m.Range())

	require.NoError(t, m.Write(0x80fc, []byte{1, 2, 3, 4}))
	got := make([]byte, 4)
	require.NoError(t, m.Read(0x80fc, got))
	require.Equal(t, []byte{1, 2, 3, 4}, got)

	require.ErrorIs(t, m.Read(0x80fd, got), ErrOutOfBounds)
	require.ErrorIs(t, m.Write(0x7fff, []byte{1}), ErrOutOfBounds)
}

func TestMemoryRegionTopOfAddressSpace(t *testing.T) {
	m, err := NewMemoryRegion("top", 0xffff_ff00, 0x100, ReadWrite)
	require.NoError(t, err)
	require.Equal(t, uint64(1)<<32, m.Range().End())
	require.True(t, m.Range().Contains(0xffff_ffff))
	require.False(t, m.Range().Contains(0))
	require.NoError(t, m.Write(0xffff_fffc, []byte{1, 2, 3, 4}))
}

func TestMemoryRegionLoad(t *testing.T) {
	t.Run("fits", func(t *testing.T) {
		m, err := NewMemoryRegion("flash", 0, 0x1000, ReadWrite)
		require.NoError(t, err)
		img := make([]byte, 0x800)
		_, err = rand.Read(img)
		require.NoError(t, err)
		n, err := m.Load(bytes.NewReader(img))
		require.NoError(t, err)
		require.Equal(t, len(img), n)
		require.Equal(t, img, m.Bytes()[:len(img)])
	})
	t.Run("exact", func(t *testing.T) {
		m, err := NewMemoryRegion("flash", 0, 4, ReadWrite)
		require.NoError(t, err)
		_, err = m.Load(strings.NewReader("abcd"))
		require.NoError(t, err)
	})
	t.Run("too large", func(t *testing.T) {
		m, err := NewMemoryRegion("flash", 0, 4, ReadWrite)
		require.NoError(t, err)
		_, err = m.Load(strings.NewReader("abcde"))
		require.ErrorContains(t, err, "does not fit")
		require.Equal(t, make([]byte, 4), m.Bytes())
	})
	t.Run("empty", func(t *testing.T) {
		m, err := NewMemoryRegion("flash", 0, 4, ReadWrite)
		require.NoError(t, err)
		_, err = m.Load(strings.NewReader(""))
		require.ErrorIs(t, err, ErrEmptyImage)
	})
}
