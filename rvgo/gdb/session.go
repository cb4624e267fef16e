package gdb

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/log"

	"github.com/rvemu/rvemu/rvgo/fast"
	"github.com/rvemu/rvemu/rvgo/riscv"
)

// Signal numbers used in stop replies.
const (
	sigInt  = 2
	sigIll  = 4
	sigTrap = 5
	sigSegv = 11
)

const (
	maxRetransmits = 3

	errParse  = "E01"
	errMemory = "E14"
)

var errNoAck = errors.New("peer did not acknowledge the reply")

// errDisconnected ends the session when the client goes away while running
// or before acknowledging a reply.
var errDisconnected = errors.New("client disconnected")

// Session serves one debugger connection.
type Session struct {
	core *fast.Core
	conn io.Writer
	log  log.Logger

	// Trace logs every packet at info level.
	Trace bool

	// rx is fed by the receive pump and closed when the connection ends.
	rx   chan byte
	quit chan struct{}
	dec  decoder
	bps  *fast.Breakpoints

	wbuf []byte
}

// NewSession binds a session to a connection. Serve starts reading from it.
func NewSession(conn io.ReadWriter, core *fast.Core, logger log.Logger) *Session {
	s := &Session{
		core: core,
		conn: conn,
		log:  logger,
		rx:   make(chan byte, MaxPacketSize),
		quit: make(chan struct{}),
		bps:  fast.NewBreakpoints(),
	}
	s.dec.next = s.readByte
	go s.pump(conn)
	return s
}

// pump forwards incoming bytes to rx, so the run loop can poll for the
// interrupt byte without blocking.
func (s *Session) pump(r io.Reader) {
	defer close(s.rx)
	var buf [512]byte
	for {
		n, err := r.Read(buf[:])
		for _, c := range buf[:n] {
			select {
			case s.rx <- c:
			case <-s.quit:
				return
			}
		}
		if err != nil {
			return
		}
	}
}

func (s *Session) readByte() (byte, error) {
	c, ok := <-s.rx
	if !ok {
		return 0, io.EOF
	}
	return c, nil
}

func (s *Session) tracef(msg string, ctx ...any) {
	if s.Trace {
		s.log.Info(msg, ctx...)
	} else {
		s.log.Trace(msg, ctx...)
	}
}

// Serve resets the core and handles packets until the client detaches,
// kills the session or disconnects.
func (s *Session) Serve() error {
	defer close(s.quit)
	s.core.Reset()
	s.log.Info("Debugger attached", "pc", hexutil.Uint64(s.core.PC))
	for {
		pkt, err := s.dec.ReadPacket()
		if err != nil {
			if isRecoverable(err) {
				s.log.Warn("Dropping packet", "err", err)
				if err := s.writeRaw([]byte{nackByte}); err != nil {
					return err
				}
				continue
			}
			if errors.Is(err, io.EOF) {
				s.log.Info("Debugger disconnected")
				return nil
			}
			return err
		}
		if err := s.writeRaw([]byte{ackByte}); err != nil {
			return err
		}
		s.tracef("RSP recv", "packet", string(pkt))
		done, err := s.dispatch(string(pkt))
		if errors.Is(err, errDisconnected) {
			s.log.Info("Debugger disconnected", "pc", hexutil.Uint64(s.core.PC))
			return nil
		}
		if err != nil {
			return err
		}
		if done {
			s.log.Info("Debugger detached")
			return nil
		}
	}
}

func (s *Session) writeRaw(b []byte) error {
	_, err := s.conn.Write(b)
	return err
}

// reply sends a packet and waits for the acknowledgement, retransmitting on '-'.
func (s *Session) reply(payload string) error {
	s.tracef("RSP send", "packet", payload)
	s.wbuf = AppendPacket(s.wbuf[:0], []byte(payload))
	for attempt := 0; attempt <= maxRetransmits; attempt++ {
		if err := s.writeRaw(s.wbuf); err != nil {
			return err
		}
		ack, err := s.awaitAck()
		if errors.Is(err, io.EOF) {
			return errDisconnected
		}
		if err != nil {
			return err
		}
		if ack {
			return nil
		}
		s.log.Debug("Retransmitting reply", "attempt", attempt+1)
	}
	return errNoAck
}

func (s *Session) awaitAck() (bool, error) {
	for {
		c, err := s.readByte()
		if err != nil {
			return false, err
		}
		switch c {
		case ackByte:
			return true, nil
		case nackByte:
			return false, nil
		default:
			s.tracef("Ignoring byte while waiting for ack", "byte", c)
		}
	}
}

func (s *Session) dispatch(pkt string) (done bool, err error) {
	if pkt == "" {
		return false, s.reply("")
	}
	args := pkt[1:]
	switch pkt[0] {
	case '?':
		return false, s.reply(stopReply(fast.Stop{Reason: fast.StopHalt}))
	case 'g':
		return false, s.reply(s.readRegisters())
	case 'G':
		return false, s.reply(s.writeRegisters(args))
	case 'p':
		return false, s.reply(s.readRegister(args))
	case 'P':
		return false, s.reply(s.writeRegister(args))
	case 'm':
		return false, s.reply(s.readMemory(args))
	case 'M':
		return false, s.reply(s.writeMemory(args))
	case 's':
		if !s.resumeAt(args) {
			return false, s.reply(errParse)
		}
		return false, s.reply(stopReply(s.core.SingleStep()))
	case 'c':
		if !s.resumeAt(args) {
			return false, s.reply(errParse)
		}
		return false, s.cont()
	case 'Z', 'z':
		return false, s.reply(s.breakpoint(pkt[0] == 'Z', args))
	case 'q':
		return false, s.query(args)
	case 'H':
		return false, s.reply("OK")
	case 'k':
		return true, nil
	case 'D':
		return true, s.reply("OK")
	default:
		return false, s.reply("")
	}
}

// resumeAt handles the optional address of s and c.
func (s *Session) resumeAt(args string) bool {
	if args == "" {
		return true
	}
	addr, err := parseHex(args)
	if err != nil || !aligned(addr) {
		return false
	}
	s.core.PC = addr
	return true
}

// cont runs until a stop condition, polling the connection for the
// interrupt byte after every retired instruction.
func (s *Session) cont() error {
	disconnected := false
	stop := s.core.Run(s.bps, func(*fast.Core) bool {
		select {
		case c, ok := <-s.rx:
			if !ok {
				disconnected = true
				return true
			}
			if c == interruptByte {
				return true
			}
			s.tracef("Ignoring byte while running", "byte", c)
			return false
		default:
			return false
		}
	})
	if disconnected {
		return errDisconnected
	}
	s.log.Debug("Stopped", "reason", stop.Reason, "pc", hexutil.Uint64(stop.PC), "steps", s.core.Steps, "err", stop.Err)
	return s.reply(stopReply(stop))
}

func stopReply(stop fast.Stop) string {
	sig := sigTrap
	switch stop.Reason {
	case fast.StopInterrupt:
		sig = sigInt
	case fast.StopFault:
		var df *fast.DecodeFault
		if errors.As(stop.Err, &df) {
			sig = sigIll
		} else {
			sig = sigSegv
		}
	}
	return fmt.Sprintf("S%02x", sig)
}

// aligned reports whether pc is a valid instruction address.
func aligned(pc uint32) bool {
	return pc%riscv.InstrWidth == 0
}

func parseHex(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 16, 32)
	return uint32(v), err
}

// encodeWord formats a register in target byte order.
func encodeWord(v uint32) string {
	return hex.EncodeToString(binary.LittleEndian.AppendUint32(nil, v))
}

func decodeWord(s string) (uint32, bool) {
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != 4 {
		return 0, false
	}
	return binary.LittleEndian.Uint32(b), true
}

func (s *Session) readRegisters() string {
	var sb strings.Builder
	for _, r := range s.core.Registers {
		sb.WriteString(encodeWord(r))
	}
	return sb.String()
}

// writeRegisters accepts the 32 GPRs, optionally followed by the pc.
func (s *Session) writeRegisters(args string) string {
	n := len(args) / 8
	if len(args)%8 != 0 || (n != riscv.RegCount && n != riscv.RegCount+1) {
		return errParse
	}
	var vals [riscv.RegCount + 1]uint32
	for i := 0; i < n; i++ {
		v, ok := decodeWord(args[i*8 : i*8+8])
		if !ok {
			return errParse
		}
		vals[i] = v
	}
	if n > riscv.RegCount && !aligned(vals[riscv.RegPC]) {
		return errParse
	}
	for i := 1; i < riscv.RegCount; i++ {
		s.core.WriteRegister(uint32(i), vals[i])
	}
	if n > riscv.RegCount {
		s.core.PC = vals[riscv.RegPC]
	}
	return "OK"
}

func (s *Session) readRegister(args string) string {
	n, err := parseHex(args)
	if err != nil {
		return errParse
	}
	switch {
	case n < riscv.RegCount:
		return encodeWord(s.core.ReadRegister(n))
	case n == riscv.RegPC:
		return encodeWord(s.core.PC)
	default:
		return errParse
	}
}

func (s *Session) writeRegister(args string) string {
	num, val, ok := strings.Cut(args, "=")
	if !ok {
		return errParse
	}
	n, err := parseHex(num)
	if err != nil {
		return errParse
	}
	v, ok := decodeWord(val)
	if !ok {
		return errParse
	}
	switch {
	case n < riscv.RegCount:
		s.core.WriteRegister(n, v)
	case n == riscv.RegPC:
		if !aligned(v) {
			return errParse
		}
		s.core.PC = v
	default:
		return errParse
	}
	return "OK"
}

// parseAddrLen parses "addr,length".
func parseAddrLen(args string) (addr uint32, length int, ok bool) {
	a, l, found := strings.Cut(args, ",")
	if !found {
		return 0, 0, false
	}
	addr, err := parseHex(a)
	if err != nil {
		return 0, 0, false
	}
	n, err := parseHex(l)
	if err != nil {
		return 0, 0, false
	}
	return addr, int(n), true
}

func (s *Session) readMemory(args string) string {
	addr, length, ok := parseAddrLen(args)
	if !ok {
		return errParse
	}
	// the hex reply has to fit in a packet
	length = min(length, MaxPacketSize/2)
	data, err := s.core.Bus.ReadBytes(addr, length)
	if err != nil {
		s.log.Debug("Memory read failed", "addr", hexutil.Uint64(addr), "len", length, "err", err)
		return errMemory
	}
	return hex.EncodeToString(data)
}

func (s *Session) writeMemory(args string) string {
	head, body, found := strings.Cut(args, ":")
	if !found {
		return errParse
	}
	addr, length, ok := parseAddrLen(head)
	if !ok {
		return errParse
	}
	data, err := hex.DecodeString(body)
	if err != nil || len(data) != length {
		return errParse
	}
	if err := s.core.Bus.WriteBytes(addr, data); err != nil {
		s.log.Debug("Memory write failed", "addr", hexutil.Uint64(addr), "len", length, "err", err)
		return errMemory
	}
	return "OK"
}

// breakpoint handles Z/z type,addr,kind. Software and hardware breakpoints
// are the same thing here; watchpoints are not supported.
func (s *Session) breakpoint(insert bool, args string) string {
	parts := strings.Split(args, ",")
	if len(parts) < 2 {
		return errParse
	}
	if parts[0] != "0" && parts[0] != "1" {
		return ""
	}
	addr, err := parseHex(parts[1])
	if err != nil {
		return errParse
	}
	if insert {
		s.bps.Add(addr)
	} else {
		s.bps.Remove(addr)
	}
	return "OK"
}

func (s *Session) query(args string) error {
	switch {
	case strings.HasPrefix(args, "Supported"):
		return s.reply(fmt.Sprintf("PacketSize=%x;qXfer:features:read+", MaxPacketSize))
	case args == "Attached" || strings.HasPrefix(args, "Attached:"):
		return s.reply("1")
	case strings.HasPrefix(args, "Xfer:features:read:"):
		return s.reply(readFeatures(strings.TrimPrefix(args, "Xfer:features:read:")))
	case strings.HasPrefix(args, "Rcmd,"):
		return s.monitor(strings.TrimPrefix(args, "Rcmd,"))
	default:
		return s.reply("")
	}
}

// readFeatures serves "annex:offset,length" out of the target description.
func readFeatures(args string) string {
	annex, rest, found := strings.Cut(args, ":")
	if !found {
		return errParse
	}
	if annex != "target.xml" {
		return "E00"
	}
	off, length, ok := parseAddrLen(rest)
	if !ok {
		return errParse
	}
	if int(off) >= len(targetXML) {
		return "l"
	}
	end := min(int(off)+length, len(targetXML), int(off)+MaxPacketSize-1)
	if end == len(targetXML) {
		return "l" + targetXML[off:end]
	}
	return "m" + targetXML[off:end]
}

// monitor runs a "monitor <cmd>" request. Output goes back as O packets.
func (s *Session) monitor(hexCmd string) error {
	raw, err := hex.DecodeString(hexCmd)
	if err != nil {
		return s.reply(errParse)
	}
	var out string
	switch cmd := strings.TrimSpace(string(raw)); cmd {
	case "reset":
		s.core.Reset()
		out = fmt.Sprintf("core reset, pc=%08x\n", s.core.PC)
	case "hash":
		out = s.core.StateHash().Hex() + "\n"
	case "regs":
		out = s.dumpRegisters()
	default:
		out = fmt.Sprintf("unknown monitor command %q, try reset, hash or regs\n", cmd)
	}
	if err := s.reply("O" + hex.EncodeToString([]byte(out))); err != nil {
		return err
	}
	return s.reply("OK")
}

func (s *Session) dumpRegisters() string {
	var sb strings.Builder
	for i, name := range abiNames {
		fmt.Fprintf(&sb, "x%-2d %-4s %08x", i, name, s.core.Registers[i])
		if i%4 == 3 {
			sb.WriteByte('\n')
		} else {
			sb.WriteString("  ")
		}
	}
	fmt.Fprintf(&sb, "pc %08x  mscratch %08x  steps %d  status %s\n",
		s.core.PC, s.core.CSR.MScratch, s.core.Steps, s.core.Status)
	return sb.String()
}
