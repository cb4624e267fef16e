package gdb

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	rv "github.com/rvemu/rvemu/rvgo/riscv"
)

func TestServer(t *testing.T) {
	core := newTestCore(t, rv.ADDI(1, 0, 1), rv.InstrEBreak)
	srv, err := Listen("127.0.0.1:0", core, testLogger(), false)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	served := make(chan error, 1)
	go func() { served <- srv.Serve(ctx) }()

	dial := func() *testClient {
		conn, err := net.Dial("tcp", srv.Addr().String())
		require.NoError(t, err)
		require.NoError(t, conn.SetDeadline(time.Now().Add(10*time.Second)))
		return &testClient{t: t, conn: conn, r: bufio.NewReader(conn)}
	}

	c := dial()
	require.Equal(t, "S05", c.roundTrip("c"))
	require.Equal(t, "01000000", c.roundTrip("p1"))
	require.Equal(t, "OK", c.roundTrip("D"))
	_ = c.conn.Close()

	// the next client gets a freshly reset core, with memory intact
	c = dial()
	require.Equal(t, "00000000", c.roundTrip("p1"))
	require.Equal(t, "93001000", c.roundTrip("m0,4"))

	// cancelling drops the active client and stops accepting
	cancel()
	select {
	case err := <-served:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
	_, err = c.r.ReadByte()
	require.Error(t, err)
}

func TestListenFailure(t *testing.T) {
	core := newTestCore(t)
	srv, err := Listen("127.0.0.1:0", core, testLogger(), false)
	require.NoError(t, err)
	defer srv.Close()

	_, err = Listen(srv.Addr().String(), core, testLogger(), false)
	require.ErrorContains(t, err, "failed to listen")
}
