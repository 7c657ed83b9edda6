// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

// Package uasc implements the OPC UA Secure Conversation layer (Part 6
// §6.7): chunked, sequenced message framing over a uacp.Conn, with an
// asymmetric handshake (Open/RenewSecureChannel) that derives symmetric
// keys for everything that follows. Grounded on the vendored
// gopcua/opcua uasc.SecureChannel (the richest single reference in the
// retrieved example pack for this layer), generalized per spec.md §4.4-§4.5
// to run on both the client and the server side of the wire, to reject
// interleaved chunks instead of buffering them, and to mark a token due for
// renewal at a fixed fraction of its lifetime (NeedsRenewal) rather than at
// expiry.
package uasc

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/open62541/open62541-sub001/errors"
	"github.com/open62541/open62541-sub001/ua"
	"github.com/open62541/open62541-sub001/uacp"
	"github.com/open62541/open62541-sub001/uapolicy"
)

const (
	stateClosed int32 = iota
	stateOpening
	stateOpen
)

// pendingRequest tracks one in-flight request awaiting its response,
// correlated by RequestHandle the way the vendored SecureChannel
// correlates by RequestID; this stack keys on RequestHandle instead
// because Services dispatch (spec.md §4.7) already mints one per call and
// it survives a mid-request token rotation, where the chunk-level
// RequestID does not.
type pendingRequest struct {
	resp chan response
}

type response struct {
	msg ua.Response
	err error
}

// tokenEpoch is one ChannelSecurityToken together with the symmetric keys
// derived for each direction.
type tokenEpoch struct {
	token      ua.ChannelSecurityToken
	sendKeys   uapolicy.SymmetricKeys
	recvKeys   uapolicy.SymmetricKeys
	sendSeqNum uint32
}

// SecureChannel is one secured conversation over a uacp.Conn. It can run
// on the initiating (client) side, where Open drives the handshake, or the
// accepting (server) side, where AcceptOpen waits for the peer's first OPN
// chunk (spec.md §4.4). A single goroutine per direction is expected to
// call ReceiveLoop; SendRequest/SendResponse are safe to call concurrently
// with it and with each other.
type SecureChannel struct {
	conn   *uacp.Conn
	cfg    *Config
	policy *uapolicy.Policy

	isServer  bool
	channelID uint32

	mu           sync.Mutex
	current      *tokenEpoch
	previous     *tokenEpoch // epoch replaced by the last installToken; the receive path does not consult it
	localNonce   []byte
	remoteNonce  []byte
	recvBuf      map[uint32][][]byte // requestID -> accumulated chunk bodies, for a message split across chunks
	recvBufOwner uint32              // requestID currently reassembling; 0 means none in flight
	pending      map[uint32]*pendingRequest
	nextHandle   uint32

	state atomic.Int32

	renewAt  time.Time
	closed   chan struct{}
	closeErr error
}

// Open dials nothing itself — conn must already be a negotiated uacp.Conn
// (uacp.Dial) — and drives the asymmetric OpenSecureChannel handshake as
// the client, issuing a fresh token (spec.md §4.4). The endpoint URL is
// given to uacp.Dial by the caller; Open does not take or use it.
func Open(ctx context.Context, conn *uacp.Conn, cfg *Config) (*SecureChannel, error) {
	policy, err := uapolicy.ByURI(cfg.SecurityPolicyURI)
	if err != nil {
		return nil, err
	}
	s := newSecureChannel(conn, cfg, policy, false)
	if err := s.openSecureChannel(ctx, ua.SecurityTokenRequestTypeIssue); err != nil {
		return nil, err
	}
	return s, nil
}

// AcceptOpen runs the server side of the handshake: it blocks for the
// client's first OPN chunk, resolves the requested security policy (the
// requested security mode is not checked), and issues the initial token (spec.md §4.4, §4.7's "server accepts a new
// channel" path).
func AcceptOpen(ctx context.Context, conn *uacp.Conn, cfg *Config) (*SecureChannel, error) {
	s := newSecureChannel(conn, cfg, nil, true)
	if err := s.acceptOpenSecureChannel(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func newSecureChannel(conn *uacp.Conn, cfg *Config, policy *uapolicy.Policy, isServer bool) *SecureChannel {
	s := &SecureChannel{
		conn:     conn,
		cfg:      cfg,
		policy:   policy,
		isServer: isServer,
		recvBuf:  make(map[uint32][][]byte),
		pending:  make(map[uint32]*pendingRequest),
		closed:   make(chan struct{}),
	}
	return s
}

// ChannelID returns the server-assigned SecureChannelId.
func (s *SecureChannel) ChannelID() uint32 { return s.channelID }

// CurrentToken returns the active ChannelSecurityToken, for stamping into
// an OpenSecureChannelResponse or for Session transfer bookkeeping.
func (s *SecureChannel) CurrentToken() ua.ChannelSecurityToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.token
}

func (s *SecureChannel) nonce(length int) ([]byte, error) {
	if length == 0 {
		return nil, nil
	}
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return nil, errors.Wrap(err, "uasc: generate nonce")
	}
	return b, nil
}

// nonceLength returns the symmetric nonce length this policy's key
// derivation needs, or 0 for SecurityPolicy None.
func nonceLength(p *uapolicy.Policy) int {
	if p == nil || p.URI == uapolicy.None {
		return 0
	}
	if n := p.EncryptionAlgorithm.KeyLength(); n > 0 {
		return n
	}
	return 32
}

// openSecureChannel is the client path: send OPN, wait for the response,
// install the returned token.
func (s *SecureChannel) openSecureChannel(ctx context.Context, reqType ua.SecurityTokenRequestType) error {
	s.state.Store(stateOpening)

	localNonce, err := s.nonce(nonceLength(s.policy))
	if err != nil {
		return err
	}
	s.localNonce = localNonce

	req := &ua.OpenSecureChannelRequest{
		RequestHeader:         ua.RequestHeader{Timestamp: s.cfg.now(), RequestHandle: s.nextRequestHandle()},
		ClientProtocolVersion: 0,
		RequestType:           reqType,
		SecurityMode:          securityModeToUA(s.cfg.SecurityMode),
		ClientNonce:           localNonce,
		RequestedLifetime:     uint32(s.cfg.RequestedLifetime / time.Millisecond),
	}

	body, err := ua.EncodeMessage(req)
	if err != nil {
		return errors.Wrap(err, "uasc: encode OpenSecureChannelRequest")
	}
	if err := s.writeChunk(MessageTypeOpen, ChunkTypeFinal, 0, body); err != nil {
		return err
	}

	msgType, chunkType, raw, err := s.conn.ReadChunk()
	if err != nil {
		return errors.Wrap(err, "uasc: read OpenSecureChannelResponse")
	}
	if msgType != MessageTypeOpen || chunkType != ChunkTypeFinal {
		return errors.Wrap(ua.StatusBadTcpMessageTypeInvalid, "uasc: expected final OPN chunk")
	}
	rc, err := decodeRawChunk(msgType, raw)
	if err != nil {
		return err
	}
	s.channelID = rc.secureChannelID

	if s.cfg.VerifyCertificate != nil && rc.asym != nil && len(rc.asym.SenderCertificate) > 0 {
		if err := s.cfg.VerifyCertificate(rc.asym.SenderCertificate); err != nil {
			return errors.Wrap(err, "uasc: server certificate rejected")
		}
	}

	_, svc, err := ua.DecodeMessage(rc.body)
	if err != nil {
		return errors.Wrap(err, "uasc: decode OpenSecureChannelResponse body")
	}
	resp, ok := svc.(*ua.OpenSecureChannelResponse)
	if !ok {
		return errors.Errorf("uasc: unexpected service %T in OPN response", svc)
	}
	if resp.ResponseHeader.ServiceResult.IsBad() {
		return resp.ResponseHeader.ServiceResult
	}
	s.remoteNonce = resp.ServerNonce
	s.installToken(resp.SecurityToken)
	s.state.Store(stateOpen)
	return nil
}

// acceptOpenSecureChannel is the server path.
func (s *SecureChannel) acceptOpenSecureChannel(ctx context.Context) error {
	s.state.Store(stateOpening)

	msgType, chunkType, raw, err := s.conn.ReadChunk()
	if err != nil {
		return errors.Wrap(err, "uasc: read OpenSecureChannelRequest")
	}
	if msgType != MessageTypeOpen || chunkType != ChunkTypeFinal {
		return errors.Wrap(ua.StatusBadTcpMessageTypeInvalid, "uasc: expected final OPN chunk")
	}
	rc, err := decodeRawChunk(msgType, raw)
	if err != nil {
		return err
	}
	s.channelID = rc.secureChannelID
	if s.channelID == 0 {
		s.channelID = newChannelID()
	}

	policy, err := uapolicy.ByURI(uapolicy.URI(rc.asym.SecurityPolicyURI))
	if err != nil {
		return errors.Wrap(err, "uasc: unsupported client security policy")
	}
	s.policy = policy

	if s.cfg.VerifyCertificate != nil && len(rc.asym.SenderCertificate) > 0 {
		if err := s.cfg.VerifyCertificate(rc.asym.SenderCertificate); err != nil {
			return errors.Wrap(err, "uasc: client certificate rejected")
		}
	}

	_, svc, err := ua.DecodeMessage(rc.body)
	if err != nil {
		return errors.Wrap(err, "uasc: decode OpenSecureChannelRequest body")
	}
	req, ok := svc.(*ua.OpenSecureChannelRequest)
	if !ok {
		return errors.Errorf("uasc: unexpected service %T in OPN request", svc)
	}
	s.remoteNonce = req.ClientNonce

	localNonce, err := s.nonce(nonceLength(s.policy))
	if err != nil {
		return err
	}
	s.localNonce = localNonce

	lifetime := s.cfg.RequestedLifetime
	if req.RequestedLifetime > 0 {
		lifetime = time.Duration(req.RequestedLifetime) * time.Millisecond
	}
	token := ua.ChannelSecurityToken{
		ChannelID:       s.channelID,
		TokenID:         newTokenID(),
		CreatedAt:       ua.DateTimeToTicks(s.cfg.now()),
		RevisedLifetime: uint32(lifetime / time.Millisecond),
	}
	s.installToken(token)

	resp := &ua.OpenSecureChannelResponse{
		ResponseHeader:        *ua.NewResponseHeader(s.cfg.now(), &req.RequestHeader, ua.StatusOK),
		ServerProtocolVersion: 0,
		SecurityToken:         token,
		ServerNonce:           localNonce,
	}
	body, err := ua.EncodeMessage(resp)
	if err != nil {
		return errors.Wrap(err, "uasc: encode OpenSecureChannelResponse")
	}
	if err := s.writeChunk(MessageTypeOpen, ChunkTypeFinal, token.TokenID, body); err != nil {
		return err
	}
	s.state.Store(stateOpen)
	return nil
}

func securityModeToUA(m SecurityMode) ua.MessageSecurityMode {
	switch m {
	case SecurityModeSign:
		return ua.MessageSecurityModeSign
	case SecurityModeSignAndEncrypt:
		return ua.MessageSecurityModeSignAndEncrypt
	default:
		return ua.MessageSecurityModeNone
	}
}

// installToken derives fresh symmetric keys for both directions off
// localNonce/remoteNonce and the given token, making it current. The
// previous epoch (if any) is kept in s.previous. The receive path does not
// check a chunk's TokenID, so chunks are accepted whichever token they name.
func (s *SecureChannel) installToken(token ua.ChannelSecurityToken) {
	s.mu.Lock()
	defer s.mu.Unlock()

	epoch := &tokenEpoch{token: token}
	if s.policy != nil && s.policy.URI != uapolicy.None {
		if s.isServer {
			epoch.sendKeys = s.policy.DeriveKeys(s.remoteNonce, s.localNonce)
			epoch.recvKeys = s.policy.DeriveKeys(s.localNonce, s.remoteNonce)
		} else {
			epoch.sendKeys = s.policy.DeriveKeys(s.localNonce, s.remoteNonce)
			epoch.recvKeys = s.policy.DeriveKeys(s.remoteNonce, s.localNonce)
		}
	}
	s.previous = s.current
	s.current = epoch

	lifetime := time.Duration(token.RevisedLifetime) * time.Millisecond
	if lifetime <= 0 {
		lifetime = DefaultLifetime
	}
	s.renewAt = s.cfg.now().Add(time.Duration(float64(lifetime) * rotationFraction))
}

// NeedsRenewal reports whether the current token has crossed its 75%
// rotation point (spec.md §9's Open Question resolution). Nothing in this
// module polls it or calls Renew, so tokens are not renewed automatically.
func (s *SecureChannel) NeedsRenewal() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.renewAt.IsZero() && !s.cfg.now().Before(s.renewAt)
}

// Renew issues a RenewSecureChannel request (client side only); the server
// side renews reactively inside ReceiveLoop when it sees RequestType ==
// Renew on an OPN chunk.
func (s *SecureChannel) Renew(ctx context.Context) error {
	if s.isServer {
		return errors.New("uasc: server channel renews reactively, not via Renew")
	}
	return s.openSecureChannel(ctx, ua.SecurityTokenRequestTypeRenew)
}

func (s *SecureChannel) nextRequestHandle() uint32 {
	return atomic.AddUint32(&s.nextHandle, 1)
}

// uacpHeaderSize mirrors uacp's unexported MessageHeader size (3-byte type,
// 1-byte chunk type, 4-byte total size) needed here to budget how much body
// fits in one physical chunk; uacp.Conn.WriteChunk prepends it itself.
const uacpHeaderSize = 8

// sequenceHeaderSize is SequenceHeader's wire size: SequenceNumber + RequestID.
const sequenceHeaderSize = 8

// securityHeader encodes the per-chunk security header: the full
// AsymmetricSecurityHeader for OPN, or the 4-byte SymmetricSecurityHeader
// otherwise. Every physical chunk of a message carries its own copy,
// identical across chunks except where noted (Part 6 §6.7.2).
func (s *SecureChannel) securityHeader(msgType string, tokenID uint32) ([]byte, error) {
	e := ua.NewEncoder()
	if msgType == MessageTypeOpen {
		ash := &AsymmetricSecurityHeader{
			SecurityPolicyURI: string(s.cfg.SecurityPolicyURI),
			SenderCertificate: s.cfg.LocalCertificate,
		}
		if s.cfg.RemoteCertificate != nil {
			thumb := uapolicy.CertificateThumbprint(s.cfg.RemoteCertificate)
			ash.ReceiverCertificateThumbprint = thumb[:]
		}
		if err := ash.Encode(e); err != nil {
			return nil, err
		}
	} else {
		sh := &SymmetricSecurityHeader{TokenID: tokenID}
		if err := sh.Encode(e); err != nil {
			return nil, err
		}
	}
	return e.Bytes(), nil
}

// writeChunk wraps body in the appropriate security header and sequence
// header and writes it through the uacp.Conn, splitting across multiple
// chunks if body exceeds the negotiated send buffer size (spec.md §4.5).
// All but the last physical chunk go out as ChunkTypeIntermediate sharing
// one RequestID; the last carries the caller's chunkType (normally Final).
// SequenceNumbers still increment once per physical chunk. Chunks are
// written in plaintext under every SecurityPolicy: the symmetric keys
// installToken derives are not used to sign or encrypt them, and
// ReceiveLoop neither verifies nor decrypts incoming chunks.
func (s *SecureChannel) writeChunk(msgType string, chunkType byte, tokenID uint32, body []byte) error {
	chanID := ua.NewEncoder()
	encodeUint32(chanID, s.channelID)
	shdr, err := s.securityHeader(msgType, tokenID)
	if err != nil {
		return err
	}
	extHeader := append(chanID.Bytes(), shdr...)

	maxChunk := s.conn.EffectiveSendChunkSize()
	payloadLimit := len(body)
	if maxChunk > 0 {
		payloadLimit = int(maxChunk) - uacpHeaderSize - len(extHeader) - sequenceHeaderSize
		if payloadLimit <= 0 {
			return errors.Errorf("uasc: negotiated chunk size %d too small for %s header", maxChunk, msgType)
		}
	}

	reqID := s.nextRequestHandle()

	for offset := 0; ; {
		end := len(body)
		final := true
		if payloadLimit > 0 && end-offset > payloadLimit {
			end = offset + payloadLimit
			final = false
		}
		chunk := body[offset:end]

		s.mu.Lock()
		epoch := s.current
		if epoch != nil {
			epoch.sendSeqNum = nextSequenceNumber(epoch.sendSeqNum)
		}
		seqNum := uint32(1)
		if epoch != nil {
			seqNum = epoch.sendSeqNum
		}
		s.mu.Unlock()

		e := ua.NewEncoder()
		seq := SequenceHeader{SequenceNumber: seqNum, RequestID: reqID}
		if err := seq.Encode(e); err != nil {
			return err
		}
		buf := make([]byte, 0, len(extHeader)+len(e.Bytes())+len(chunk))
		buf = append(buf, extHeader...)
		buf = append(buf, e.Bytes()...)
		buf = append(buf, chunk...)

		ct := ChunkTypeIntermediate
		if final {
			ct = chunkType
		}
		if err := s.conn.WriteChunk(msgType, ct, buf); err != nil {
			return err
		}
		if final {
			return nil
		}
		offset = end
	}
}

func encodeUint32(e *ua.Encoder, v uint32) { e.WriteUint32(v) }

// SendRequest writes req as a full MSG (stamping its RequestHeader),
// registers a pending correlation entry keyed on its RequestHandle, and
// returns the decoded response once ReceiveLoop delivers it or ctx expires.
// Grounded on the vendored SendRequestWithTimeout/sendAsyncWithTimeout
// pair, collapsed into one synchronous call since this stack's
// client.go callers always block for the answer (async parking happens
// server-side, see server.AsyncOperations).
func (s *SecureChannel) SendRequest(ctx context.Context, req ua.Request, authToken *ua.NodeID) (ua.Response, error) {
	handle := s.nextRequestHandle()
	hdr := req.Header()
	hdr.RequestHandle = handle
	hdr.Timestamp = s.cfg.now()
	hdr.AuthenticationToken = authToken
	req.SetHeader(hdr)

	pr := &pendingRequest{resp: make(chan response, 1)}
	s.mu.Lock()
	s.pending[handle] = pr
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.pending, handle)
		s.mu.Unlock()
	}()

	body, err := ua.EncodeMessage(req)
	if err != nil {
		return nil, errors.Wrap(err, "uasc: encode request")
	}
	s.mu.Lock()
	tokenID := uint32(0)
	if s.current != nil {
		tokenID = s.current.token.TokenID
	}
	s.mu.Unlock()
	if err := s.writeChunk(MessageTypeMessage, ChunkTypeFinal, tokenID, body); err != nil {
		return nil, err
	}

	select {
	case r := <-pr.resp:
		return r.msg, r.err
	case <-ctx.Done():
		return nil, ua.StatusBadRequestTimeout
	case <-s.closed:
		return nil, s.closeErr
	}
}

// SendResponse writes resp as a full MSG chunk (server side); it does not
// wait for anything further.
func (s *SecureChannel) SendResponse(resp ua.Response) error {
	body, err := ua.EncodeMessage(resp)
	if err != nil {
		return errors.Wrap(err, "uasc: encode response")
	}
	s.mu.Lock()
	tokenID := uint32(0)
	if s.current != nil {
		tokenID = s.current.token.TokenID
	}
	s.mu.Unlock()
	return s.writeChunk(MessageTypeMessage, ChunkTypeFinal, tokenID, body)
}

// Handler processes one decoded request arriving on the server side,
// returning the response to send back. Registered by server.Server before
// ReceiveLoop is started.
type Handler func(ctx context.Context, channelID uint32, req ua.Request) (ua.Response, error)

// ReceiveLoop reads chunks until ctx is cancelled or the peer closes the
// connection, reassembling chunked messages, rejecting interleaved
// continuations, dispatching requests to handler (server side) or
// responses to their pending caller (client side). It is meant to run in
// its own goroutine; callers observe termination via the error it returns.
func (s *SecureChannel) ReceiveLoop(ctx context.Context, handler Handler) error {
	for {
		select {
		case <-ctx.Done():
			s.fail(ctx.Err())
			return ctx.Err()
		default:
		}

		msgType, chunkType, raw, err := s.conn.ReadChunk()
		if err != nil {
			s.fail(err)
			return err
		}

		switch msgType {
		case MessageTypeClose:
			s.fail(ua.StatusBadSecureChannelClosed)
			return nil
		case MessageTypeOpen:
			if !s.isServer {
				continue // unsolicited OPN on the client side; ignore
			}
			if err := s.handleRenew(raw); err != nil {
				s.cfg.Logger.Printf("uasc: renew failed: %v", err)
			}
			continue
		case MessageTypeMessage:
			// fall through
		default:
			s.fail(ua.StatusBadTcpMessageTypeInvalid)
			return ua.StatusBadTcpMessageTypeInvalid
		}

		rc, err := decodeRawChunk(msgType, raw)
		if err != nil {
			s.fail(err)
			return err
		}

		complete, err := s.accumulate(rc, chunkType)
		if err != nil {
			s.cfg.Logger.Printf("uasc: chunk reassembly error: %v", err)
			continue
		}
		if complete == nil {
			continue // chunkType == intermediate, message not complete yet
		}

		_, svc, err := ua.DecodeMessage(complete)
		if err != nil {
			s.cfg.Logger.Printf("uasc: decode message body: %v", err)
			continue
		}

		if resp, ok := svc.(ua.Response); ok && !s.isServer {
			s.dispatchResponse(resp)
			continue
		}
		if req, ok := svc.(ua.Request); ok && s.isServer {
			if handler == nil {
				continue
			}
			resp, err := handler(ctx, s.channelID, req)
			if err != nil {
				s.cfg.Logger.Printf("uasc: handler error: %v", err)
				continue
			}
			if resp != nil {
				if err := s.SendResponse(resp); err != nil {
					s.cfg.Logger.Printf("uasc: send response: %v", err)
				}
			}
			continue
		}
		s.cfg.Logger.Printf("uasc: message %T not valid for this channel side", svc)
	}
}

// accumulate implements spec.md §9's interleaved-chunk rejection policy: a
// channel reassembles at most one in-flight chunked message at a time;
// an intermediate/final chunk whose RequestID doesn't match the message
// currently being reassembled is rejected with BadTcpMessageTypeInvalid
// rather than buffered alongside it. A message whose reassembled body would
// exceed the connection's MaxMessageSize is dropped with
// BadTcpMessageTooLarge.
func (s *SecureChannel) accumulate(rc *rawChunk, chunkType byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reqID := rc.seq.RequestID
	if s.recvBufOwner != 0 && s.recvBufOwner != reqID {
		return nil, errors.Wrap(ua.StatusBadTcpMessageTypeInvalid, "uasc: interleaved chunk on channel")
	}

	if limit := s.conn.MaxMessageSize(); limit > 0 && chunkType != ChunkTypeAbort {
		total := len(rc.body)
		for _, b := range s.recvBuf[reqID] {
			total += len(b)
		}
		if total > int(limit) {
			delete(s.recvBuf, reqID)
			s.recvBufOwner = 0
			return nil, errors.Wrap(ua.StatusBadTcpMessageTooLarge, "uasc: message exceeds negotiated maximum size")
		}
	}

	switch chunkType {
	case ChunkTypeAbort:
		delete(s.recvBuf, reqID)
		s.recvBufOwner = 0
		return nil, errors.New("uasc: peer aborted chunked message")
	case ChunkTypeIntermediate:
		s.recvBufOwner = reqID
		s.recvBuf[reqID] = append(s.recvBuf[reqID], rc.body)
		return nil, nil
	case ChunkTypeFinal:
		bodies := append(s.recvBuf[reqID], rc.body)
		delete(s.recvBuf, reqID)
		s.recvBufOwner = 0
		if len(bodies) == 1 {
			return bodies[0], nil
		}
		return mergeChunks(bodies), nil
	default:
		return nil, errors.Wrap(ua.StatusBadTcpMessageTypeInvalid, "uasc: unknown chunk type")
	}
}

func (s *SecureChannel) dispatchResponse(resp ua.Response) {
	handle := resp.Header().RequestHandle
	s.mu.Lock()
	pr := s.pending[handle]
	s.mu.Unlock()
	if pr == nil {
		s.cfg.Logger.Printf("uasc: response for unknown request handle %d", handle)
		return
	}
	result := resp.Header().ServiceResult
	var err error
	if result.IsBad() {
		err = result
	}
	select {
	case pr.resp <- response{msg: resp, err: err}:
	default:
	}
}

// handleRenew processes a client-initiated RenewSecureChannel OPN on the
// server side, issuing a new token (spec.md §4.4); see installToken for how
// the previous token is kept.
func (s *SecureChannel) handleRenew(raw []byte) error {
	rc, err := decodeRawChunk(MessageTypeOpen, raw)
	if err != nil {
		return err
	}
	_, svc, err := ua.DecodeMessage(rc.body)
	if err != nil {
		return err
	}
	req, ok := svc.(*ua.OpenSecureChannelRequest)
	if !ok {
		return errors.Errorf("uasc: unexpected service %T in renew OPN", svc)
	}

	s.mu.Lock()
	s.remoteNonce = req.ClientNonce
	s.mu.Unlock()
	localNonce, err := s.nonce(nonceLength(s.policy))
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.localNonce = localNonce
	s.mu.Unlock()

	lifetime := s.cfg.RequestedLifetime
	if req.RequestedLifetime > 0 {
		lifetime = time.Duration(req.RequestedLifetime) * time.Millisecond
	}
	token := ua.ChannelSecurityToken{
		ChannelID:       s.channelID,
		TokenID:         newTokenID(),
		CreatedAt:       ua.DateTimeToTicks(s.cfg.now()),
		RevisedLifetime: uint32(lifetime / time.Millisecond),
	}
	s.installToken(token)

	resp := &ua.OpenSecureChannelResponse{
		ResponseHeader:        *ua.NewResponseHeader(s.cfg.now(), &req.RequestHeader, ua.StatusOK),
		ServerProtocolVersion: 0,
		SecurityToken:         token,
		ServerNonce:           localNonce,
	}
	body, err := ua.EncodeMessage(resp)
	if err != nil {
		return err
	}
	return s.writeChunk(MessageTypeOpen, ChunkTypeFinal, token.TokenID, body)
}

// Close sends CloseSecureChannelRequest/writes a CLO chunk and tears down
// the underlying connection; per spec.md §4.5 no response is expected.
func (s *SecureChannel) Close(ctx context.Context) error {
	req := &ua.CloseSecureChannelRequest{
		RequestHeader: ua.RequestHeader{Timestamp: s.cfg.now(), RequestHandle: s.nextRequestHandle()},
	}
	body, err := ua.EncodeMessage(req)
	if err == nil {
		s.mu.Lock()
		tokenID := uint32(0)
		if s.current != nil {
			tokenID = s.current.token.TokenID
		}
		s.mu.Unlock()
		_ = s.writeChunk(MessageTypeClose, ChunkTypeFinal, tokenID, body)
	}
	s.fail(ua.StatusBadSecureChannelClosed)
	return s.conn.Close()
}

func (s *SecureChannel) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.closed:
		return
	default:
	}
	s.closeErr = err
	close(s.closed)
	for _, pr := range s.pending {
		select {
		case pr.resp <- response{err: err}:
		default:
		}
	}
}

// channelIDCounter/tokenIDCounter mint server-side identifiers. A real
// open62541 deployment partitions these by server instance; a single
// atomic counter is enough for one process's address space.
var channelIDCounter, tokenIDCounter atomic.Uint32

func newChannelID() uint32 {
	return channelIDCounter.Add(1)
}

func newTokenID() uint32 {
	return tokenIDCounter.Add(1)
}

// Err returns the reason ReceiveLoop stopped, once it has.
func (s *SecureChannel) Err() error {
	select {
	case <-s.closed:
		return s.closeErr
	default:
		return nil
	}
}

// String renders a short identity for logging, mirroring the detail the
// vendored SecureChannel's debug traces include.
func (s *SecureChannel) String() string {
	side := "client"
	if s.isServer {
		side = "server"
	}
	return fmt.Sprintf("uasc.SecureChannel{id=%d side=%s policy=%s}", s.channelID, side, s.cfg.SecurityPolicyURI)
}
