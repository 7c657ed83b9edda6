// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package server

import (
	"context"
	"crypto/rsa"
	"net"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/open62541/open62541-sub001/debug"
	"github.com/open62541/open62541-sub001/eventloop"
	"github.com/open62541/open62541-sub001/pubsubbridge"
	"github.com/open62541/open62541-sub001/uacp"
	"github.com/open62541/open62541-sub001/uapolicy"
	"github.com/open62541/open62541-sub001/uasc"
	"github.com/open62541/open62541-sub001/ua"
)

// samplingTickInterval drives Subscription.sampleAll/buildNotification
// across every live subscription; individual items still honor their own
// SamplingMS against this shared tick (spec.md §4.9).
const samplingTickInterval = 50 * time.Millisecond

// sessionSweepInterval governs how often idle sessions and expired parked
// operations are swept (spec.md §4.6, §4.8).
const sessionSweepInterval = time.Second

// Config bundles the server identity and listener options spec.md §6's
// configuration table names (EndpointURL, security policy/mode, server
// certificate, operation limits, and session/subscription timeouts).
type Config struct {
	ApplicationURI  string
	ApplicationName string
	ApplicationType ua.ApplicationType
	EndpointURL     string

	Certificate []byte
	PrivateKey  *rsa.PrivateKey

	SecurityPolicy uapolicy.URI
	SecurityMode   uasc.SecurityMode

	MaxSessionTimeout   time.Duration
	AsyncOperationTimeout time.Duration

	// MaxSessions and MaxSubscriptions bound live resource counts
	// (spec.md §6 `maxSessions`/`maxSubscriptions`); 0 means unlimited.
	MaxSessions      int
	MaxSubscriptions int

	Limits OperationLimits

	AccessControl AccessControl

	// SecureChannelPKI validates the client certificate presented during
	// OpenSecureChannel (spec.md §4.5 step 3). A nil value accepts any
	// certificate, matching AccessControl's permissive default.
	SecureChannelPKI CertificateGroup

	Metrics *Metrics
	Logger  *debug.Logger

	// PubSub, if non-nil, receives a Digest for every Publish response and
	// keep-alive the server sends (spec.md §6 `pubsub`, SPEC_FULL.md §D).
	// It is a one-way observability side-channel; publish failures never
	// affect the OPC UA response path.
	PubSub *pubsubbridge.Bridge

	Now func() time.Time
}

// withDefaults fills zero-valued Config fields the way open62541's server
// config builder applies its own defaults (spec.md §6).
func (c Config) withDefaults() Config {
	if c.MaxSessionTimeout == 0 {
		c.MaxSessionTimeout = 10 * time.Minute
	}
	if c.AsyncOperationTimeout == 0 {
		c.AsyncOperationTimeout = 30 * time.Second
	}
	if c.Limits == (OperationLimits{}) {
		c.Limits = DefaultOperationLimits()
	}
	if c.AccessControl == nil {
		c.AccessControl = NewDefaultAccessControl()
	}
	if c.Logger == nil {
		c.Logger = debug.New(nil)
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Server is the top-level OPC UA server: one EventLoop driving
// subscription publishing and housekeeping, one AddressSpace, and a set of
// live SecureChannels each read by its own ReceiveLoop goroutine. Every
// access to shared state — the address space, session/subscription
// tables, async operations — happens either from inside a channel's
// dispatch call or from an EventLoop callback, both of which hold mu
// first, giving the "all public API calls are implicitly serialized"
// guarantee of spec.md §5 without requiring the whole server to run on a
// single goroutine (uasc.SecureChannel.ReceiveLoop is documented to run in
// its own goroutine per connection, so a literal single-goroutine server
// would contradict the channel layer it sits on).
type Server struct {
	cfg Config

	mu sync.Mutex

	addressSpace  AddressSpace
	accessControl AccessControl
	sessions      *SessionTable
	subscriptions *SubscriptionTable
	asyncOps      *AsyncOperations
	metrics       *Metrics
	limits        OperationLimits

	asyncOperationTimeout time.Duration

	loop *eventloop.EventLoop

	channels map[uint32]*uasc.SecureChannel
	pending  map[pendingPublishKey]*pendingPublish

	listener net.Listener
	wg       sync.WaitGroup
}

type pendingPublishKey struct {
	subscriptionID uint32
	channelID      uint32
	requestHandle  uint32
}

// pendingPublish is a Publish request parked because its Subscription had
// nothing to report when it arrived; the EventLoop's sampling tick
// resolves it directly against sc once a notification is ready (spec.md
// §4.9's long-poll Publish design).
type pendingPublish struct {
	req     *ua.PublishRequest
	sc      *uasc.SecureChannel
	started time.Time
}

// NewServer wires an address space, access control plugin, and the
// session/subscription/async-operation tables into a Server ready to
// accept connections via ListenAndServe.
func NewServer(cfg Config, as AddressSpace) *Server {
	cfg = cfg.withDefaults()
	return &Server{
		cfg:                   cfg,
		addressSpace:          as,
		accessControl:         cfg.AccessControl,
		sessions:              NewSessionTable(),
		subscriptions:         NewSubscriptionTable(),
		asyncOps:              NewAsyncOperations(),
		metrics:               cfg.Metrics,
		limits:                cfg.Limits,
		asyncOperationTimeout: cfg.AsyncOperationTimeout,
		loop:                  eventloop.New(eventloop.WithClock(cfg.Now), eventloop.WithLogger(cfg.Logger)),
		channels:              make(map[uint32]*uasc.SecureChannel),
		pending:               make(map[pendingPublishKey]*pendingPublish),
	}
}

// NewPrometheusServer is a convenience constructor wiring a fresh
// prometheus.Registry's Metrics into cfg before building the Server
// (SPEC_FULL.md §B).
func NewPrometheusServer(cfg Config, as AddressSpace, reg prometheus.Registerer) *Server {
	cfg.Metrics = NewMetrics(reg)
	return NewServer(cfg, as)
}

func (s *Server) now() time.Time { return s.cfg.Now() }

// uaSecurityMode converts uasc's local SecurityMode enum (kept separate to
// avoid uasc importing ua for anything but message decoding) to the wire
// ua.MessageSecurityMode EndpointDescription reports.
func uaSecurityMode(m uasc.SecurityMode) ua.MessageSecurityMode {
	switch m {
	case uasc.SecurityModeSign:
		return ua.MessageSecurityModeSign
	case uasc.SecurityModeSignAndEncrypt:
		return ua.MessageSecurityModeSignAndEncrypt
	default:
		return ua.MessageSecurityModeNone
	}
}

// ListenAndServe accepts TCP connections on addr, performing the UACP
// handshake and OpenSecureChannel negotiation for each before handing the
// channel's ReceiveLoop to its own goroutine. It blocks until ctx is
// cancelled or the listener fails, then waits for every channel goroutine
// to unwind.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.listener = ln

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop.Run()
	}()
	s.scheduleHousekeeping()

	go func() {
		<-ctx.Done()
		s.loop.Stop()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			s.wg.Wait()
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(ctx, conn)
		}()
	}
}

// Stop halts the EventLoop and closes the listener, causing
// ListenAndServe to return once in-flight connections drain.
func (s *Server) Stop() {
	s.loop.Stop()
	if s.listener != nil {
		s.listener.Close()
	}
}

func (s *Server) serveConn(ctx context.Context, nc net.Conn) {
	uc, err := uacp.Accept(nc, uacp.WithDebugLogger(s.cfg.Logger))
	if err != nil {
		s.cfg.Logger.Printf("server: uacp accept: %v", err)
		nc.Close()
		return
	}

	scCfg := uasc.NewConfig(
		uasc.WithSecurityPolicy(s.cfg.SecurityPolicy),
		uasc.WithSecurityMode(s.cfg.SecurityMode),
		uasc.WithCertificate(s.cfg.Certificate, s.cfg.PrivateKey),
		uasc.WithLogger(s.cfg.Logger),
		uasc.WithClock(s.cfg.Now),
	)
	if s.cfg.SecureChannelPKI != nil {
		scCfg.VerifyCertificate = s.cfg.SecureChannelPKI.Verify
	}

	sc, err := uasc.AcceptOpen(ctx, uc, scCfg)
	if err != nil {
		s.cfg.Logger.Printf("server: open secure channel: %v", err)
		uc.Close()
		return
	}

	s.mu.Lock()
	s.channels[sc.ChannelID()] = sc
	s.metrics.setSecureChannels(len(s.channels))
	s.mu.Unlock()

	err = sc.ReceiveLoop(ctx, s.handleRequest)
	if err != nil {
		s.cfg.Logger.Printf("server: channel %d closed: %v", sc.ChannelID(), err)
	}

	s.mu.Lock()
	delete(s.channels, sc.ChannelID())
	s.metrics.setSecureChannels(len(s.channels))
	s.asyncOps.CancelChannel(sc.ChannelID(), ua.StatusBadSecureChannelIDInvalid)
	for k := range s.pending {
		if k.channelID == sc.ChannelID() {
			delete(s.pending, k)
		}
	}
	s.mu.Unlock()
}

// scheduleHousekeeping registers the EventLoop timers driving subscription
// publishing and idle cleanup (spec.md §4.9, §4.6, §4.8).
func (s *Server) scheduleHousekeeping() {
	s.loop.AddRepeated(samplingTickInterval, func(now time.Time) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.tickSubscriptions(now)
	})
	s.loop.AddRepeated(sessionSweepInterval, func(now time.Time) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.asyncOps.CancelExpired(now)
		s.metrics.setParkedAsyncOps(s.asyncOps.Len())
		s.sessions.slab.Each(func(h Handle, sess *Session) {
			if sess.expired(now) {
				s.closeSessionSubscriptions(h)
			}
		})
		s.sessions.ExpireIdle(now)
		s.metrics.setSessions(sessionCount(s.sessions))
	})
}

// tickSubscriptions samples every item, builds a notification for any
// subscription that has one ready or whose keep-alive fired, and resolves
// a parked Publish request if one is waiting (spec.md §4.9's Publish
// long-poll design).
func (s *Server) tickSubscriptions(now time.Time) {
	s.subscriptions.Each(func(sub *Subscription) {
		sub.sampleAll(s.addressSpace, now)

		if !sub.PublishingEnabled {
			return
		}
		if !sub.hasNotifications() {
			if sub.tickLifetime() {
				s.expireSubscription(sub.ID)
			}
			return
		}
		s.deliverOrQueue(sub, now)
	})
}

// deliverOrQueue builds sub's next NotificationMessage and sends it
// immediately against whichever Publish request is parked for it, if any.
// With no Publish parked nothing is built here; the queued samples stay on
// their MonitoredItems until the next Publish builds the message itself.
func (s *Server) deliverOrQueue(sub *Subscription, now time.Time) {
	for key, pp := range s.pending {
		if key.subscriptionID != sub.ID {
			continue
		}
		msg := sub.buildNotification(now)
		if msg == nil {
			continue
		}
		delete(s.pending, key)
		s.sendPublishResponse(pp, sub, msg, now)
		return
	}
	// Nobody is waiting yet; fall through to keep-alive bookkeeping only
	// (the notification itself is built lazily once a Publish arrives, via
	// buildNotification's own keepAliveCounter state).
}

func (s *Server) sendPublishResponse(pp *pendingPublish, sub *Subscription, msg *ua.NotificationMessage, now time.Time) {
	resp := &ua.PublishResponse{
		ResponseHeader:      *ua.NewResponseHeader(now, &pp.req.RequestHeader, ua.StatusOK),
		SubscriptionID:      sub.ID,
		NotificationMessage: *msg,
		MoreNotifications:   sub.hasNotifications(),
	}
	if len(pp.req.SubscriptionAcknowledgements) > 0 {
		resp.Results = make([]ua.StatusCode, len(pp.req.SubscriptionAcknowledgements))
		for i := range resp.Results {
			resp.Results[i] = ua.StatusOK
		}
	}
	s.metrics.observePublishLatencySeconds(now.Sub(pp.started).Seconds())
	if err := pp.sc.SendResponse(resp); err != nil {
		s.cfg.Logger.Printf("server: publish response: %v", err)
	}
	if s.cfg.PubSub != nil {
		s.cfg.PubSub.Publish(context.Background(), pubsubbridge.Digest{
			SubscriptionID:    sub.ID,
			SequenceNumber:    msg.SequenceNumber,
			PublishTime:       now,
			NotificationCount: len(msg.NotificationData),
			KeepAlive:         len(msg.NotificationData) == 0,
		})
	}
}

func (s *Server) expireSubscription(id uint32) {
	sub, ok := s.subscriptions.ByID(id)
	if !ok {
		return
	}
	if sess, ok := s.sessions.Get(sub.SessionHandle); ok {
		sess.subscriptions = removeHandle(sess.subscriptions, sub.handle)
	}
	s.subscriptions.Delete(id)
	s.metrics.setSubscriptions(subscriptionCount(s.subscriptions))
}

func (s *Server) closeSessionSubscriptions(h Handle) {
	sess, ok := s.sessions.Get(h)
	if !ok {
		return
	}
	s.asyncOps.CancelSession(h, ua.StatusBadSessionClosed)
	for _, subH := range sess.subscriptions {
		if sub, ok := s.subscriptions.Get(subH); ok {
			s.subscriptions.Delete(sub.ID)
		}
	}
	s.metrics.setSubscriptions(subscriptionCount(s.subscriptions))
	s.metrics.setSessions(sessionCount(s.sessions))
}

func removeHandle(hs []Handle, h Handle) []Handle {
	out := hs[:0]
	for _, x := range hs {
		if x != h {
			out = append(out, x)
		}
	}
	return out
}

func subscriptionCount(t *SubscriptionTable) int {
	n := 0
	t.Each(func(*Subscription) { n++ })
	return n
}

func sessionCount(t *SessionTable) int {
	n := 0
	t.slab.Each(func(Handle, *Session) { n++ })
	return n
}

// SetAsyncCallResult delivers the eventual outcome of a method that a
// MethodHandler handed off with StatusGoodCompletesAsynchronously,
// completing its parked Call and sending the now-resolved CallResponse
// over the originating SecureChannel (spec.md §4.8 step 3). Callers are
// typically a long-running operation's own completion goroutine or timer,
// naming the channelID and request handle under which callOne parked the
// Call (AsyncCallHandoff itself carries only a Cancel func). A call against an already-resolved or
// unknown (channelID, requestID) is a silent no-op.
func (s *Server) SetAsyncCallResult(channelID, requestID uint32, outputs []*ua.Variant, status ua.StatusCode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.asyncOps.Resolve(channelID, requestID, AsyncResult{Status: StatusOrValue{Value: outputs, Status: status}})
}

// handleRequest is the uasc.Handler every SecureChannel's ReceiveLoop
// dispatches into; it is only ever called from that channel's own
// goroutine, but every branch takes s.mu before touching shared state
// (spec.md §5).
func (s *Server) handleRequest(ctx context.Context, channelID uint32, req ua.Request) (ua.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	switch r := req.(type) {
	case *ua.GetEndpointsRequest:
		return s.handleGetEndpoints(r), nil
	case *ua.CreateSessionRequest:
		return s.handleCreateSession(channelID, r, now), nil
	case *ua.ActivateSessionRequest:
		return s.handleActivateSession(channelID, r, now), nil
	case *ua.CloseSessionRequest:
		return s.handleCloseSession(r, now), nil
	}

	sess, resp := s.sessionFor(req.Header(), now)
	if sess == nil {
		return resp, nil
	}
	sess.touch(now)

	switch r := req.(type) {
	case *ua.ReadRequest:
		s.metrics.observeRequest("Read", ua.StatusOK)
		return s.dispatchRead(sess, r), nil
	case *ua.WriteRequest:
		out := s.dispatchWrite(sess, channelID, r.RequestHeader.RequestHandle, r)
		s.metrics.observeRequest("Write", out.ResponseHeader.ServiceResult)
		return out, nil
	case *ua.BrowseRequest:
		s.metrics.observeRequest("Browse", ua.StatusOK)
		return s.dispatchBrowse(sess, r), nil
	case *ua.BrowseNextRequest:
		s.metrics.observeRequest("BrowseNext", ua.StatusOK)
		return s.dispatchBrowseNext(sess, r), nil
	case *ua.TranslateBrowsePathsToNodeIdsRequest:
		s.metrics.observeRequest("TranslateBrowsePathsToNodeIds", ua.StatusOK)
		return s.dispatchTranslateBrowsePaths(sess, r), nil
	case *ua.CallRequest:
		out, sync := s.dispatchCall(sess, channelID, r.RequestHeader.RequestHandle, r)
		s.metrics.observeRequest("Call", out.ResponseHeader.ServiceResult)
		if !sync {
			// A method handed off asynchronously; callOne parked it and
			// will send out over this channel itself once it resolves
			// (spec.md §4.8 step 3).
			return nil, nil
		}
		return out, nil
	case *ua.CreateSubscriptionRequest:
		return s.handleCreateSubscription(sess, r, now), nil
	case *ua.ModifySubscriptionRequest:
		return s.handleModifySubscription(r), nil
	case *ua.SetPublishingModeRequest:
		return s.handleSetPublishingMode(r, now), nil
	case *ua.DeleteSubscriptionsRequest:
		return s.handleDeleteSubscriptions(sess, r, now), nil
	case *ua.CreateMonitoredItemsRequest:
		return s.handleCreateMonitoredItems(r, now), nil
	case *ua.ModifyMonitoredItemsRequest:
		return s.handleModifyMonitoredItems(r, now), nil
	case *ua.SetMonitoringModeRequest:
		return s.handleSetMonitoringMode(r, now), nil
	case *ua.DeleteMonitoredItemsRequest:
		return s.handleDeleteMonitoredItems(r, now), nil
	case *ua.PublishRequest:
		return s.handlePublish(sess, channelID, r, now), nil
	case *ua.RepublishRequest:
		return s.handleRepublish(r, now), nil
	default:
		return errorResponseFor(req, now, ua.StatusBadServiceUnsupported), nil
	}
}

// sessionFor resolves h.AuthenticationToken to an activated Session,
// returning a nil Session and an error Response if that fails — the
// uniform "every service after CreateSession needs a live session" check
// (spec.md §4.6, §4.7).
func (s *Server) sessionFor(h *ua.RequestHeader, now time.Time) (*Session, ua.Response) {
	sess, ok := s.sessions.ByAuthToken(h.AuthenticationToken)
	if !ok {
		return nil, &ua.ServiceFault{ResponseHeader: *ua.NewResponseHeader(now, h, ua.StatusBadSessionIDInvalid)}
	}
	if sess.state != SessionStateActivated {
		return nil, &ua.ServiceFault{ResponseHeader: *ua.NewResponseHeader(now, h, ua.StatusBadSessionNotActivated)}
	}
	return sess, nil
}

func errorResponseFor(req ua.Request, now time.Time, status ua.StatusCode) ua.Response {
	return &ua.ServiceFault{ResponseHeader: *ua.NewResponseHeader(now, req.Header(), status)}
}

func (s *Server) handleGetEndpoints(req *ua.GetEndpointsRequest) *ua.GetEndpointsResponse {
	return &ua.GetEndpointsResponse{
		ResponseHeader: *ua.NewResponseHeader(s.now(), &req.RequestHeader, ua.StatusOK),
		Endpoints:      []*ua.EndpointDescription{s.endpointDescription()},
	}
}

func (s *Server) endpointDescription() *ua.EndpointDescription {
	return &ua.EndpointDescription{
		EndpointURL: s.cfg.EndpointURL,
		Server: ua.ApplicationDescription{
			ApplicationURI:  s.cfg.ApplicationURI,
			ApplicationName: ua.LocalizedText{Text: s.cfg.ApplicationName},
			ApplicationType: s.cfg.ApplicationType,
			DiscoveryURLs:   []string{s.cfg.EndpointURL},
		},
		ServerCertificate: s.cfg.Certificate,
		SecurityMode:      uaSecurityMode(s.cfg.SecurityMode),
		SecurityPolicyURI: string(s.cfg.SecurityPolicy),
		UserIdentityTokens: []*ua.UserTokenPolicy{
			{PolicyID: "anonymous", TokenType: ua.UserTokenTypeAnonymous},
			{PolicyID: "username", TokenType: ua.UserTokenTypeUserName},
		},
		TransportProfileURI: "http://opcfoundation.org/UA-Profile/Transport/uatcp-uasc-uabinary",
		SecurityLevel:       1,
	}
}

func (s *Server) handleCreateSession(channelID uint32, req *ua.CreateSessionRequest, now time.Time) *ua.CreateSessionResponse {
	if s.cfg.MaxSessions > 0 && sessionCount(s.sessions) >= s.cfg.MaxSessions {
		return &ua.CreateSessionResponse{ResponseHeader: *ua.NewResponseHeader(now, &req.RequestHeader, ua.StatusBadTooManySessions)}
	}
	timeout := revisedSessionTimeout(req.RequestedSessionTimeout, s.cfg.MaxSessionTimeout)
	sess, _ := s.sessions.Create(channelID, timeout, now)
	s.metrics.setSessions(sessionCount(s.sessions))
	return &ua.CreateSessionResponse{
		ResponseHeader:        *ua.NewResponseHeader(now, &req.RequestHeader, ua.StatusOK),
		SessionID:             sess.SessionID,
		AuthenticationToken:   sess.AuthenticationToken,
		RevisedSessionTimeout: float64(timeout / time.Millisecond),
		ServerCertificate:     s.cfg.Certificate,
		ServerEndpoints:       []*ua.EndpointDescription{s.endpointDescription()},
	}
}

func (s *Server) handleActivateSession(channelID uint32, req *ua.ActivateSessionRequest, now time.Time) *ua.ActivateSessionResponse {
	sess, ok := s.sessions.ByAuthToken(req.RequestHeader.AuthenticationToken)
	if !ok {
		return &ua.ActivateSessionResponse{ResponseHeader: *ua.NewResponseHeader(now, &req.RequestHeader, ua.StatusBadSessionIDInvalid)}
	}
	identity := decodeUserIdentity(req.UserIdentityToken)
	status := sess.activate(s.accessControl, identity, channelID, req.LocaleIDs, now)
	if !status.IsGood() {
		return &ua.ActivateSessionResponse{ResponseHeader: *ua.NewResponseHeader(now, &req.RequestHeader, status)}
	}
	return &ua.ActivateSessionResponse{ResponseHeader: *ua.NewResponseHeader(now, &req.RequestHeader, ua.StatusOK)}
}

func (s *Server) handleCloseSession(req *ua.CloseSessionRequest, now time.Time) *ua.CloseSessionResponse {
	sess, ok := s.sessions.ByAuthToken(req.RequestHeader.AuthenticationToken)
	if !ok {
		return &ua.CloseSessionResponse{ResponseHeader: *ua.NewResponseHeader(now, &req.RequestHeader, ua.StatusBadSessionIDInvalid)}
	}
	if req.DeleteSubscriptions {
		s.closeSessionSubscriptions(sess.handle)
	}
	s.sessions.Close(sess.handle)
	s.metrics.setSessions(sessionCount(s.sessions))
	return &ua.CloseSessionResponse{ResponseHeader: *ua.NewResponseHeader(now, &req.RequestHeader, ua.StatusOK)}
}

func (s *Server) handleCreateSubscription(sess *Session, req *ua.CreateSubscriptionRequest, now time.Time) *ua.CreateSubscriptionResponse {
	if s.cfg.MaxSubscriptions > 0 && subscriptionCount(s.subscriptions) >= s.cfg.MaxSubscriptions {
		return &ua.CreateSubscriptionResponse{ResponseHeader: *ua.NewResponseHeader(now, &req.RequestHeader, ua.StatusBadTooManySubscriptions)}
	}
	lifetime, keepAlive := revisedLifetimeCount(req.RequestedLifetimeCount, req.RequestedMaxKeepAliveCount)
	sub, h := s.subscriptions.Create(sess.handle, req.RequestedPublishingInterval, lifetime, keepAlive, req.MaxNotificationsPerPublish, req.Priority, req.PublishingEnabled)
	sess.subscriptions = append(sess.subscriptions, h)
	s.metrics.setSubscriptions(subscriptionCount(s.subscriptions))
	return &ua.CreateSubscriptionResponse{
		ResponseHeader:            *ua.NewResponseHeader(now, &req.RequestHeader, ua.StatusOK),
		SubscriptionID:            sub.ID,
		RevisedPublishingInterval: sub.PublishingInterval,
		RevisedLifetimeCount:      lifetime,
		RevisedMaxKeepAliveCount:  keepAlive,
	}
}

func (s *Server) handleModifySubscription(req *ua.ModifySubscriptionRequest) *ua.ModifySubscriptionResponse {
	now := s.now()
	sub, ok := s.subscriptions.ByID(req.SubscriptionID)
	if !ok {
		return &ua.ModifySubscriptionResponse{ResponseHeader: *ua.NewResponseHeader(now, &req.RequestHeader, ua.StatusBadSubscriptionIDInvalid)}
	}
	lifetime, keepAlive := revisedLifetimeCount(req.RequestedLifetimeCount, req.RequestedMaxKeepAliveCount)
	sub.PublishingInterval = req.RequestedPublishingInterval
	sub.LifetimeCount = lifetime
	sub.MaxKeepAliveCount = keepAlive
	sub.MaxNotificationsPerPublish = req.MaxNotificationsPerPublish
	sub.Priority = req.Priority
	return &ua.ModifySubscriptionResponse{
		ResponseHeader:            *ua.NewResponseHeader(now, &req.RequestHeader, ua.StatusOK),
		RevisedPublishingInterval: sub.PublishingInterval,
		RevisedLifetimeCount:      lifetime,
		RevisedMaxKeepAliveCount:  keepAlive,
	}
}

func (s *Server) handleSetPublishingMode(req *ua.SetPublishingModeRequest, now time.Time) *ua.SetPublishingModeResponse {
	results := make([]ua.StatusCode, len(req.SubscriptionIDs))
	for i, id := range req.SubscriptionIDs {
		sub, ok := s.subscriptions.ByID(id)
		if !ok {
			results[i] = ua.StatusBadSubscriptionIDInvalid
			continue
		}
		sub.PublishingEnabled = req.PublishingEnabled
		results[i] = ua.StatusOK
	}
	return &ua.SetPublishingModeResponse{ResponseHeader: *ua.NewResponseHeader(now, &req.RequestHeader, ua.StatusOK), Results: results}
}

func (s *Server) handleDeleteSubscriptions(sess *Session, req *ua.DeleteSubscriptionsRequest, now time.Time) *ua.DeleteSubscriptionsResponse {
	results := make([]ua.StatusCode, len(req.SubscriptionIDs))
	for i, id := range req.SubscriptionIDs {
		sub, ok := s.subscriptions.ByID(id)
		if !ok {
			results[i] = ua.StatusBadSubscriptionIDInvalid
			continue
		}
		sess.subscriptions = removeHandle(sess.subscriptions, sub.handle)
		s.subscriptions.Delete(id)
		results[i] = ua.StatusOK
	}
	s.metrics.setSubscriptions(subscriptionCount(s.subscriptions))
	return &ua.DeleteSubscriptionsResponse{ResponseHeader: *ua.NewResponseHeader(now, &req.RequestHeader, ua.StatusOK), Results: results}
}

func (s *Server) handleCreateMonitoredItems(req *ua.CreateMonitoredItemsRequest, now time.Time) *ua.CreateMonitoredItemsResponse {
	resp := &ua.CreateMonitoredItemsResponse{ResponseHeader: *ua.NewResponseHeader(now, &req.RequestHeader, ua.StatusOK)}
	sub, ok := s.subscriptions.ByID(req.SubscriptionID)
	if !ok {
		resp.ResponseHeader.ServiceResult = ua.StatusBadSubscriptionIDInvalid
		return resp
	}
	if len(req.ItemsToCreate) > s.limits.MaxMonitoredItemsPerCall {
		resp.ResponseHeader.ServiceResult = ua.StatusBadTooManyOperations
		return resp
	}
	resp.Results = make([]*ua.MonitoredItemCreateResult, len(req.ItemsToCreate))
	for i, item := range req.ItemsToCreate {
		resp.Results[i] = s.createMonitoredItem(sub, item)
	}
	s.metrics.setMonitoredItems(monitoredItemCount(s.subscriptions))
	return resp
}

func (s *Server) createMonitoredItem(sub *Subscription, item *ua.MonitoredItemCreateRequest) *ua.MonitoredItemCreateResult {
	n, ok := s.addressSpace.Node(item.ItemToMonitor.NodeID)
	if !ok {
		return &ua.MonitoredItemCreateResult{StatusCode: ua.StatusBadNodeIDUnknown}
	}
	revisedInterval := revisedSamplingInterval(item.RequestedParams.SamplingInterval, n.MinSamplingMS, sub.PublishingInterval)
	queueSize := item.RequestedParams.QueueSize
	if queueSize == 0 {
		queueSize = 1
	}
	mi := newMonitoredItem(0, item, revisedInterval, queueSize)
	sub.addItem(mi)
	return &ua.MonitoredItemCreateResult{
		StatusCode:              ua.StatusOK,
		MonitoredItemID:         mi.ID,
		RevisedSamplingInterval: revisedInterval,
		RevisedQueueSize:        queueSize,
	}
}

func monitoredItemCount(t *SubscriptionTable) int {
	n := 0
	t.Each(func(sub *Subscription) { n += len(sub.items) })
	return n
}

func (s *Server) handleModifyMonitoredItems(req *ua.ModifyMonitoredItemsRequest, now time.Time) *ua.ModifyMonitoredItemsResponse {
	resp := &ua.ModifyMonitoredItemsResponse{ResponseHeader: *ua.NewResponseHeader(now, &req.RequestHeader, ua.StatusOK)}
	sub, ok := s.subscriptions.ByID(req.SubscriptionID)
	if !ok {
		resp.ResponseHeader.ServiceResult = ua.StatusBadSubscriptionIDInvalid
		return resp
	}
	resp.Results = make([]*ua.MonitoredItemModifyResult, len(req.ItemsToModify))
	for i, m := range req.ItemsToModify {
		mi, ok := sub.items[m.MonitoredItemID]
		if !ok {
			resp.Results[i] = &ua.MonitoredItemModifyResult{StatusCode: ua.StatusBadMonitoredItemIDInvalid}
			continue
		}
		n, _ := s.addressSpace.Node(mi.NodeID)
		minSampling := 0.0
		if n != nil {
			minSampling = n.MinSamplingMS
		}
		mi.SamplingMS = revisedSamplingInterval(m.RequestedParams.SamplingInterval, minSampling, sub.PublishingInterval)
		mi.QueueSize = m.RequestedParams.QueueSize
		if mi.QueueSize == 0 {
			mi.QueueSize = 1
		}
		mi.ClientHandle = m.RequestedParams.ClientHandle
		if m.RequestedParams.Filter != nil {
			if f, ok := m.RequestedParams.Filter.Body.(*ua.DataChangeFilter); ok {
				mi.Trigger = f.Trigger
				mi.DeadbandType = f.DeadbandType
				mi.DeadbandValue = f.DeadbandValue
			}
		}
		resp.Results[i] = &ua.MonitoredItemModifyResult{StatusCode: ua.StatusOK, RevisedSamplingInterval: mi.SamplingMS, RevisedQueueSize: mi.QueueSize}
	}
	return resp
}

func (s *Server) handleSetMonitoringMode(req *ua.SetMonitoringModeRequest, now time.Time) *ua.SetMonitoringModeResponse {
	resp := &ua.SetMonitoringModeResponse{ResponseHeader: *ua.NewResponseHeader(now, &req.RequestHeader, ua.StatusOK)}
	sub, ok := s.subscriptions.ByID(req.SubscriptionID)
	if !ok {
		resp.ResponseHeader.ServiceResult = ua.StatusBadSubscriptionIDInvalid
		return resp
	}
	resp.Results = make([]ua.StatusCode, len(req.MonitoredItemIDs))
	for i, id := range req.MonitoredItemIDs {
		mi, ok := sub.items[id]
		if !ok {
			resp.Results[i] = ua.StatusBadMonitoredItemIDInvalid
			continue
		}
		mi.Mode = req.MonitoringMode
		resp.Results[i] = ua.StatusOK
	}
	return resp
}

func (s *Server) handleDeleteMonitoredItems(req *ua.DeleteMonitoredItemsRequest, now time.Time) *ua.DeleteMonitoredItemsResponse {
	resp := &ua.DeleteMonitoredItemsResponse{ResponseHeader: *ua.NewResponseHeader(now, &req.RequestHeader, ua.StatusOK)}
	sub, ok := s.subscriptions.ByID(req.SubscriptionID)
	if !ok {
		resp.ResponseHeader.ServiceResult = ua.StatusBadSubscriptionIDInvalid
		return resp
	}
	resp.Results = make([]ua.StatusCode, len(req.MonitoredItemIDs))
	for i, id := range req.MonitoredItemIDs {
		if sub.removeItem(id) {
			resp.Results[i] = ua.StatusOK
		} else {
			resp.Results[i] = ua.StatusBadMonitoredItemIDInvalid
		}
	}
	s.metrics.setMonitoredItems(monitoredItemCount(s.subscriptions))
	return resp
}

// handlePublish implements the long-poll Publish service (spec.md §4.9):
// if every owned subscription is empty, the request is parked and nil is
// returned so ReceiveLoop sends nothing; the EventLoop's sampling tick
// answers it later directly against the captured *uasc.SecureChannel.
func (s *Server) handlePublish(sess *Session, channelID uint32, req *ua.PublishRequest, now time.Time) ua.Response {
	for _, ack := range req.SubscriptionAcknowledgements {
		if sub, ok := s.subscriptions.ByID(ack.SubscriptionID); ok {
			_ = sub.republish(ack.SequenceNumber) // acknowledgement observed; retransmit queue trims lazily
		}
	}

	var ready *Subscription
	for _, h := range sess.subscriptions {
		sub, ok := s.subscriptions.Get(h)
		if !ok || !sub.PublishingEnabled {
			continue
		}
		if sub.hasNotifications() {
			ready = sub
			break
		}
	}
	if len(sess.subscriptions) == 0 {
		return &ua.PublishResponse{ResponseHeader: *ua.NewResponseHeader(now, &req.RequestHeader, ua.StatusBadNoSubscription)}
	}
	if ready == nil {
		sc, ok := s.channels[channelID]
		if !ok {
			return &ua.PublishResponse{ResponseHeader: *ua.NewResponseHeader(now, &req.RequestHeader, ua.StatusBadSecureChannelIDInvalid)}
		}
		key := pendingPublishKey{subscriptionID: firstSubscriptionID(s.subscriptions, sess), channelID: channelID, requestHandle: req.RequestHeader.RequestHandle}
		s.pending[key] = &pendingPublish{req: req, sc: sc, started: now}
		return nil
	}

	msg := ready.buildNotification(now)
	resp := &ua.PublishResponse{
		ResponseHeader:      *ua.NewResponseHeader(now, &req.RequestHeader, ua.StatusOK),
		SubscriptionID:      ready.ID,
		NotificationMessage: *msg,
		MoreNotifications:   ready.hasNotifications(),
	}
	if s.cfg.PubSub != nil {
		s.cfg.PubSub.Publish(context.Background(), pubsubbridge.Digest{
			SubscriptionID:    ready.ID,
			SequenceNumber:    msg.SequenceNumber,
			PublishTime:       now,
			NotificationCount: len(msg.NotificationData),
			KeepAlive:         len(msg.NotificationData) == 0,
		})
	}
	return resp
}

func firstSubscriptionID(t *SubscriptionTable, sess *Session) uint32 {
	for _, h := range sess.subscriptions {
		if sub, ok := t.Get(h); ok {
			return sub.ID
		}
	}
	return 0
}

func (s *Server) handleRepublish(req *ua.RepublishRequest, now time.Time) *ua.RepublishResponse {
	sub, ok := s.subscriptions.ByID(req.SubscriptionID)
	if !ok {
		return &ua.RepublishResponse{ResponseHeader: *ua.NewResponseHeader(now, &req.RequestHeader, ua.StatusBadSubscriptionIDInvalid)}
	}
	msg := sub.republish(req.RetransmitSequenceNumber)
	if msg == nil {
		return &ua.RepublishResponse{ResponseHeader: *ua.NewResponseHeader(now, &req.RequestHeader, ua.StatusBadMessageNotAvailable)}
	}
	return &ua.RepublishResponse{ResponseHeader: *ua.NewResponseHeader(now, &req.RequestHeader, ua.StatusOK), NotificationMessage: *msg}
}
