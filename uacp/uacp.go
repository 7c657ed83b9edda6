// Package uacp implements the OPC UA Connection Protocol (Part 6 §7): the
// HEL/ACK handshake that negotiates buffer sizes before any SecureChannel
// traffic flows, plus the raw message framing uasc.SecureChannel chunks
// ride on top of. Two transport bindings are provided: TCP, the standard's
// own opc.tcp:// scheme, and a WebSocket binding (spec.md §9's "abstract
// the byte-stream behind an interface" design note; grounded on
// gorilla/websocket the way thane-ai-agent's bridge uses it) for
// deployments that need to cross an HTTP-only boundary.
package uacp

import (
	"context"
	"encoding/binary"
	"io"
	"net"
	"time"

	"github.com/open62541/open62541-sub001/debug"
	"github.com/open62541/open62541-sub001/errors"
)

// Message type codes, the first 3 bytes of every uacp MessageHeader.
const (
	MessageTypeHello          = "HEL"
	MessageTypeAcknowledge    = "ACK"
	MessageTypeError          = "ERR"
	MessageTypeReverseHello   = "RHE"
)

// headerSize is the fixed 8-byte MessageHeader: 3-byte type, 1-byte chunk
// indicator ('F' for these control messages), 4-byte little-endian length
// including the header itself.
const headerSize = 8

// DefaultReceiveBufferSize and DefaultSendBufferSize are the buffer sizes
// this stack advertises in Hello/Acknowledge absent explicit
// configuration (spec.md §6).
const (
	DefaultReceiveBufferSize = 64 * 1024
	DefaultSendBufferSize    = 64 * 1024
	DefaultMaxMessageSize    = 16 * 1024 * 1024
	DefaultMaxChunkCount     = 0 // unlimited
)

// Hello is the client's opening message, naming the endpoint it dialed and
// the buffer limits it can honor.
type Hello struct {
	ProtocolVersion   uint32
	ReceiveBufferSize uint32
	SendBufferSize    uint32
	MaxMessageSize    uint32
	MaxChunkCount     uint32
	EndpointURL       string
}

// Acknowledge is the server's reply, with its own (possibly smaller)
// buffer limits; both sides must honor the minimum of the two from then
// on (spec.md §4.4's "chunk size is the minimum of both sides' Hello/
// Acknowledge values").
type Acknowledge struct {
	ProtocolVersion   uint32
	ReceiveBufferSize uint32
	SendBufferSize    uint32
	MaxMessageSize    uint32
	MaxChunkCount     uint32
}

// ErrorMessage is sent in place of Acknowledge (or at any later point) to
// report a fatal transport-level problem before closing the connection.
type ErrorMessage struct {
	Error  uint32
	Reason string
}

// Conn is a negotiated uacp connection: framed message read/write on top
// of a net.Conn, after Hello/Acknowledge has run. uasc.SecureChannel reads
// and writes MSG/OPN/CLO chunks through it.
type Conn struct {
	nc     net.Conn
	dbg    *debug.Logger
	Local  Acknowledge // our advertised/accepted limits
	Remote Acknowledge // peer's advertised/accepted limits

	readDeadline  time.Duration
	writeDeadline time.Duration
}

// Option configures a Dial or Accept call.
type Option func(*dialConfig)

type dialConfig struct {
	receiveBufferSize uint32
	sendBufferSize    uint32
	maxMessageSize    uint32
	maxChunkCount     uint32
	dbg               *debug.Logger
	dialTimeout       time.Duration
}

func defaultDialConfig() *dialConfig {
	return &dialConfig{
		receiveBufferSize: DefaultReceiveBufferSize,
		sendBufferSize:    DefaultSendBufferSize,
		maxMessageSize:    DefaultMaxMessageSize,
		maxChunkCount:     DefaultMaxChunkCount,
		dialTimeout:       5 * time.Second,
	}
}

// WithBufferSizes overrides the receive/send buffer sizes advertised in
// Hello.
func WithBufferSizes(recv, send uint32) Option {
	return func(c *dialConfig) { c.receiveBufferSize, c.sendBufferSize = recv, send }
}

// WithMaxMessageSize overrides the advertised maximum message size.
func WithMaxMessageSize(n uint32) Option {
	return func(c *dialConfig) { c.maxMessageSize = n }
}

// WithDebugLogger attaches a trace-gated logger (spec.md §9's uniform
// logging style).
func WithDebugLogger(l *debug.Logger) Option {
	return func(c *dialConfig) { c.dbg = l }
}

// WithDialTimeout bounds the TCP dial and handshake round trip.
func WithDialTimeout(d time.Duration) Option {
	return func(c *dialConfig) { c.dialTimeout = d }
}

// Dial opens a TCP connection to endpointURL's host:port and performs the
// Hello/Acknowledge handshake. opc.ws:// and opc.wss:// URLs are handed to
// DialWebSocket instead.
func Dial(ctx context.Context, endpointURL string, opts ...Option) (*Conn, error) {
	if IsWebSocket(endpointURL) {
		return DialWebSocket(ctx, endpointURL, opts...)
	}
	cfg := defaultDialConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	addr, err := hostPort(endpointURL)
	if err != nil {
		return nil, err
	}
	d := net.Dialer{Timeout: cfg.dialTimeout}
	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errors.Wrap(err, "uacp: dial")
	}
	return handshakeClient(nc, endpointURL, cfg)
}

func handshakeClient(nc net.Conn, endpointURL string, cfg *dialConfig) (*Conn, error) {
	hello := Hello{
		ProtocolVersion:   0,
		ReceiveBufferSize: cfg.receiveBufferSize,
		SendBufferSize:    cfg.sendBufferSize,
		MaxMessageSize:    cfg.maxMessageSize,
		MaxChunkCount:     cfg.maxChunkCount,
		EndpointURL:       endpointURL,
	}
	if err := writeHello(nc, &hello); err != nil {
		nc.Close()
		return nil, err
	}
	msgType, body, err := readMessage(nc)
	if err != nil {
		nc.Close()
		return nil, err
	}
	switch msgType {
	case MessageTypeAcknowledge:
		ack, err := decodeAcknowledge(body)
		if err != nil {
			nc.Close()
			return nil, err
		}
		c := &Conn{
			nc:     nc,
			dbg:    cfg.dbg,
			Local:  Acknowledge{ProtocolVersion: 0, ReceiveBufferSize: cfg.receiveBufferSize, SendBufferSize: cfg.sendBufferSize, MaxMessageSize: cfg.maxMessageSize, MaxChunkCount: cfg.maxChunkCount},
			Remote: *ack,
		}
		c.debugf("uacp: handshake complete recvBuf=%d sendBuf=%d", c.effectiveReceiveBufferSize(), c.effectiveSendBufferSize())
		return c, nil
	case MessageTypeError:
		em, err := decodeErrorMessage(body)
		if err != nil {
			nc.Close()
			return nil, err
		}
		nc.Close()
		return nil, errors.Errorf("uacp: server rejected hello: %s (0x%08x)", em.Reason, em.Error)
	default:
		nc.Close()
		return nil, errors.Errorf("uacp: unexpected message type %q during handshake", msgType)
	}
}

// Accept performs the server side of the handshake on an already-accepted
// net.Conn: read Hello, reply with Acknowledge (or Error and close).
func Accept(nc net.Conn, opts ...Option) (*Conn, error) {
	cfg := defaultDialConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	msgType, body, err := readMessage(nc)
	if err != nil {
		nc.Close()
		return nil, err
	}
	if msgType != MessageTypeHello {
		writeErrorMessage(nc, &ErrorMessage{Error: uint32(0x807D0000), Reason: "expected Hello"})
		nc.Close()
		return nil, errors.Errorf("uacp: expected HEL, got %q", msgType)
	}
	hello, err := decodeHello(body)
	if err != nil {
		writeErrorMessage(nc, &ErrorMessage{Error: uint32(0x80070000), Reason: "malformed hello"})
		nc.Close()
		return nil, err
	}
	ack := Acknowledge{
		ProtocolVersion:   0,
		ReceiveBufferSize: cfg.receiveBufferSize,
		SendBufferSize:    cfg.sendBufferSize,
		MaxMessageSize:    cfg.maxMessageSize,
		MaxChunkCount:     cfg.maxChunkCount,
	}
	if err := writeAcknowledge(nc, &ack); err != nil {
		nc.Close()
		return nil, err
	}
	c := &Conn{
		nc:    nc,
		dbg:   cfg.dbg,
		Local: ack,
		Remote: Acknowledge{
			ProtocolVersion:   hello.ProtocolVersion,
			ReceiveBufferSize: hello.ReceiveBufferSize,
			SendBufferSize:    hello.SendBufferSize,
			MaxMessageSize:    hello.MaxMessageSize,
			MaxChunkCount:     hello.MaxChunkCount,
		},
	}
	c.debugf("uacp: accepted connection from %s endpoint=%q", nc.RemoteAddr(), hello.EndpointURL)
	return c, nil
}

func (c *Conn) debugf(format string, args ...interface{}) {
	if c.dbg != nil {
		c.dbg.Printf(format, args...)
	}
}

// effectiveReceiveBufferSize/effectiveSendBufferSize are the negotiated
// chunk size limits: the minimum of what each side advertised.
func (c *Conn) effectiveReceiveBufferSize() uint32 { return min32(c.Local.ReceiveBufferSize, c.Remote.SendBufferSize) }
func (c *Conn) effectiveSendBufferSize() uint32    { return min32(c.Local.SendBufferSize, c.Remote.ReceiveBufferSize) }

// EffectiveSendChunkSize is the largest chunk this Conn may write, honored
// by uasc.SecureChannel when it splits a message into chunks.
func (c *Conn) EffectiveSendChunkSize() uint32 { return c.effectiveSendBufferSize() }

// EffectiveReceiveChunkSize is the largest chunk the peer may send us.
func (c *Conn) EffectiveReceiveChunkSize() uint32 { return c.effectiveReceiveBufferSize() }

// MaxMessageSize is the lower of both sides' advertised reassembled
// message size limits, enforced while accumulating chunks.
func (c *Conn) MaxMessageSize() uint32 {
	return min32NonZero(c.Local.MaxMessageSize, c.Remote.MaxMessageSize)
}

func min32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}

func min32NonZero(a, b uint32) uint32 {
	if a == 0 {
		return b
	}
	if b == 0 {
		return a
	}
	return min32(a, b)
}

// ReadChunk reads one raw framed message (MSG/OPN/CLO) and returns its
// 3-byte type, 1-byte chunk indicator, and body (header stripped).
func (c *Conn) ReadChunk() (msgType string, chunkType byte, body []byte, err error) {
	hdr := make([]byte, headerSize)
	if _, err := io.ReadFull(c.nc, hdr); err != nil {
		return "", 0, nil, err
	}
	size := binary.LittleEndian.Uint32(hdr[4:8])
	if size < headerSize {
		return "", 0, nil, errors.Wrap(ErrBadMessageSize, "uacp: chunk smaller than header")
	}
	if max := c.effectiveReceiveBufferSize(); max > 0 && size > max {
		return "", 0, nil, errors.Wrap(ErrBadMessageSize, "uacp: chunk exceeds negotiated buffer size")
	}
	body = make([]byte, size-headerSize)
	if _, err := io.ReadFull(c.nc, body); err != nil {
		return "", 0, nil, err
	}
	return string(hdr[0:3]), hdr[3], body, nil
}

// WriteChunk writes one raw framed message.
func (c *Conn) WriteChunk(msgType string, chunkType byte, body []byte) error {
	if len(msgType) != 3 {
		return errors.Errorf("uacp: message type must be 3 bytes, got %q", msgType)
	}
	hdr := make([]byte, headerSize)
	copy(hdr[0:3], msgType)
	hdr[3] = chunkType
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(headerSize+len(body)))
	if _, err := c.nc.Write(hdr); err != nil {
		return err
	}
	_, err := c.nc.Write(body)
	return err
}

// Close closes the underlying transport.
func (c *Conn) Close() error { return c.nc.Close() }

// LocalAddr/RemoteAddr expose the underlying transport addresses, used by
// server-side connection logging.
func (c *Conn) LocalAddr() net.Addr  { return c.nc.LocalAddr() }
func (c *Conn) RemoteAddr() net.Addr { return c.nc.RemoteAddr() }

// SetDeadline forwards to the underlying net.Conn, letting uasc.SecureChannel
// enforce per-operation timeouts without a background goroutine.
func (c *Conn) SetDeadline(t time.Time) error { return c.nc.SetDeadline(t) }

// ErrBadMessageSize is returned when a peer sends a chunk larger than the
// negotiated buffer size, grounds for closing the connection per spec.md
// §9's "reject, don't silently truncate" Open Question resolution.
var ErrBadMessageSize = errors.New("uacp: bad message size")

func readMessage(nc net.Conn) (msgType string, body []byte, err error) {
	hdr := make([]byte, headerSize)
	if _, err := io.ReadFull(nc, hdr); err != nil {
		return "", nil, err
	}
	size := binary.LittleEndian.Uint32(hdr[4:8])
	if size < headerSize || size > 4096 {
		return "", nil, errors.Wrap(ErrBadMessageSize, "uacp: invalid handshake message size")
	}
	body = make([]byte, size-headerSize)
	if _, err := io.ReadFull(nc, body); err != nil {
		return "", nil, err
	}
	return string(hdr[0:3]), body, nil
}

func writeHello(nc net.Conn, h *Hello) error {
	body := make([]byte, 0, 32+len(h.EndpointURL))
	body = appendUint32(body, h.ProtocolVersion)
	body = appendUint32(body, h.ReceiveBufferSize)
	body = appendUint32(body, h.SendBufferSize)
	body = appendUint32(body, h.MaxMessageSize)
	body = appendUint32(body, h.MaxChunkCount)
	body = appendString(body, h.EndpointURL)
	return writeFramed(nc, MessageTypeHello, body)
}

func decodeHello(body []byte) (*Hello, error) {
	r := &reader{b: body}
	h := &Hello{}
	var err error
	if h.ProtocolVersion, err = r.uint32(); err != nil {
		return nil, err
	}
	if h.ReceiveBufferSize, err = r.uint32(); err != nil {
		return nil, err
	}
	if h.SendBufferSize, err = r.uint32(); err != nil {
		return nil, err
	}
	if h.MaxMessageSize, err = r.uint32(); err != nil {
		return nil, err
	}
	if h.MaxChunkCount, err = r.uint32(); err != nil {
		return nil, err
	}
	if h.EndpointURL, err = r.str(); err != nil {
		return nil, err
	}
	return h, nil
}

func writeAcknowledge(nc net.Conn, a *Acknowledge) error {
	body := make([]byte, 0, 20)
	body = appendUint32(body, a.ProtocolVersion)
	body = appendUint32(body, a.ReceiveBufferSize)
	body = appendUint32(body, a.SendBufferSize)
	body = appendUint32(body, a.MaxMessageSize)
	body = appendUint32(body, a.MaxChunkCount)
	return writeFramed(nc, MessageTypeAcknowledge, body)
}

func decodeAcknowledge(body []byte) (*Acknowledge, error) {
	r := &reader{b: body}
	a := &Acknowledge{}
	var err error
	if a.ProtocolVersion, err = r.uint32(); err != nil {
		return nil, err
	}
	if a.ReceiveBufferSize, err = r.uint32(); err != nil {
		return nil, err
	}
	if a.SendBufferSize, err = r.uint32(); err != nil {
		return nil, err
	}
	if a.MaxMessageSize, err = r.uint32(); err != nil {
		return nil, err
	}
	if a.MaxChunkCount, err = r.uint32(); err != nil {
		return nil, err
	}
	return a, nil
}

func writeErrorMessage(nc net.Conn, em *ErrorMessage) error {
	body := make([]byte, 0, 8+len(em.Reason))
	body = appendUint32(body, em.Error)
	body = appendString(body, em.Reason)
	return writeFramed(nc, MessageTypeError, body)
}

func decodeErrorMessage(body []byte) (*ErrorMessage, error) {
	r := &reader{b: body}
	em := &ErrorMessage{}
	var err error
	if em.Error, err = r.uint32(); err != nil {
		return nil, err
	}
	if em.Reason, err = r.str(); err != nil {
		return nil, err
	}
	return em, nil
}

func writeFramed(nc net.Conn, msgType string, body []byte) error {
	hdr := make([]byte, headerSize)
	copy(hdr[0:3], msgType)
	hdr[3] = 'F'
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(headerSize+len(body)))
	if _, err := nc.Write(hdr); err != nil {
		return err
	}
	_, err := nc.Write(body)
	return err
}

func appendUint32(b []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(b, tmp[:]...)
}

func appendString(b []byte, s string) []byte {
	if s == "" {
		return appendUint32(b, 0xFFFFFFFF)
	}
	b = appendUint32(b, uint32(len(s)))
	return append(b, s...)
}

type reader struct {
	b   []byte
	pos int
}

func (r *reader) uint32() (uint32, error) {
	if r.pos+4 > len(r.b) {
		return 0, io.ErrUnexpectedEOF
	}
	v := binary.LittleEndian.Uint32(r.b[r.pos : r.pos+4])
	r.pos += 4
	return v, nil
}

func (r *reader) str() (string, error) {
	n, err := r.uint32()
	if err != nil {
		return "", err
	}
	if n == 0xFFFFFFFF {
		return "", nil
	}
	if r.pos+int(n) > len(r.b) {
		return "", io.ErrUnexpectedEOF
	}
	s := string(r.b[r.pos : r.pos+int(n)])
	r.pos += int(n)
	return s, nil
}
