// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

// Package opcua implements a client for the OPC UA Secure Conversation /
// Session / Service stack built in uacp, uasc, and ua (spec.md §4). It
// dials a SecureChannel, creates and activates a Session on top of it,
// and exposes the request/response services (Read, Write, Browse,
// Subscription/MonitoredItem management, Publish) as synchronous calls
// correlated internally by uasc.SecureChannel.SendRequest, the same
// single-channel-many-callers shape the vendored gopcua/opcua client
// reference used, reworked around this stack's synchronous SendRequest
// instead of its callback-based Send.
package opcua

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/open62541/open62541-sub001/debug"
	"github.com/open62541/open62541-sub001/errors"
	"github.com/open62541/open62541-sub001/id"
	"github.com/open62541/open62541-sub001/ua"
	"github.com/open62541/open62541-sub001/uacp"
	"github.com/open62541/open62541-sub001/uapolicy"
	"github.com/open62541/open62541-sub001/uasc"
)

// defaultRequestTimeout bounds a synchronous Send when the caller's
// context carries no deadline.
const defaultRequestTimeout = 30 * time.Second

// GetEndpoints dials endpoint just long enough to run the GetEndpoints
// service and returns the EndpointDescriptions it advertises (spec.md §6).
func GetEndpoints(ctx context.Context, endpoint string) ([]*ua.EndpointDescription, error) {
	c := NewClient(endpoint)
	if err := c.Dial(ctx); err != nil {
		return nil, err
	}
	defer c.Close(ctx)
	res, err := c.GetEndpoints(ctx)
	if err != nil {
		return nil, err
	}
	return res.Endpoints, nil
}

// Client is a high-level client for an OPC UA server: it establishes a
// SecureChannel and a Session on top of it (spec.md §4.4, §4.6).
type Client struct {
	endpointURL string
	cfg         *ClientConfig
	sessionCfg  *SessionConfig

	sechan *uasc.SecureChannel

	session  atomic.Value // *Session
	once     sync.Once
	cancel   context.CancelFunc
	recvDone chan struct{}

	subMu         sync.Mutex
	subscriptions map[uint32]*Subscription
}

// NewClient creates a new Client for endpoint. When no Options are given
// the client dials with DefaultClientConfig/DefaultSessionConfig: no
// security and an anonymous identity, set during CreateSession.
func NewClient(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpointURL:   endpoint,
		cfg:           DefaultClientConfig(),
		sessionCfg:    DefaultSessionConfig(),
		subscriptions: make(map[uint32]*Subscription),
	}
	for _, opt := range opts {
		opt(c.cfg, c.sessionCfg)
	}
	return c
}

// Connect dials a SecureChannel and creates and activates a Session on it.
func (c *Client) Connect(ctx context.Context) error {
	if c.sechan != nil {
		return errors.New("opcua: already connected")
	}
	if err := c.Dial(ctx); err != nil {
		return err
	}
	s, err := c.CreateSession(ctx, c.sessionCfg)
	if err != nil {
		_ = c.Close(ctx)
		return err
	}
	if err := c.ActivateSession(ctx, s); err != nil {
		_ = c.Close(ctx)
		return err
	}
	return nil
}

// Dial establishes the SecureChannel (uacp handshake plus the uasc
// asymmetric Open) and starts the receive loop that dispatches responses
// to their waiting caller.
func (c *Client) Dial(ctx context.Context) error {
	c.once.Do(func() { c.session.Store((*Session)(nil)) })
	if c.sechan != nil {
		return errors.New("opcua: secure channel already connected")
	}

	conn, err := uacp.Dial(ctx, c.endpointURL, c.cfg.DialOptions...)
	if err != nil {
		return err
	}

	uascCfg := uasc.NewConfig(
		uasc.WithSecurityPolicy(c.cfg.SecurityPolicyURI),
		uasc.WithSecurityMode(c.cfg.SecurityMode),
		uasc.WithCertificate(c.cfg.Certificate, c.cfg.PrivateKey),
		uasc.WithRemoteCertificate(c.cfg.RemoteCertificate),
		uasc.WithRequestedLifetime(c.cfg.RequestedLifetime),
		uasc.WithLogger(c.cfg.Logger),
	)
	sechan, err := uasc.Open(ctx, conn, uascCfg)
	if err != nil {
		_ = conn.Close()
		return err
	}

	recvCtx, cancel := context.WithCancel(context.Background())
	c.sechan = sechan
	c.cancel = cancel
	c.recvDone = make(chan struct{})
	go func() {
		defer close(c.recvDone)
		if err := sechan.ReceiveLoop(recvCtx, nil); err != nil {
			c.cfg.Logger.Printf("opcua: receive loop stopped: %v", err)
		}
	}()
	return nil
}

// Close closes the session, if any, and tears down the SecureChannel.
func (c *Client) Close(ctx context.Context) error {
	_ = c.CloseSession(ctx)
	if c.sechan == nil {
		return nil
	}
	err := c.sechan.Close(ctx)
	if c.cancel != nil {
		c.cancel()
	}
	return err
}

// Session returns the active session, or nil.
func (c *Client) Session() *Session {
	s, _ := c.session.Load().(*Session)
	return s
}

// Done returns a channel that closes once the receive loop has exited,
// signalling the SecureChannel is no longer usable.
func (c *Client) Done() <-chan struct{} {
	return c.recvDone
}

// Session is an OPC UA Session as described in Part 4, 5.6.
type Session struct {
	cfg *SessionConfig

	// resp is the CreateSessionResponse carrying the parameters
	// ActivateSession needs.
	resp *ua.CreateSessionResponse

	serverCertificate []byte
	serverNonce       []byte
}

// CreateSession creates a new Session which is not yet activated and not
// associated with the client. Call ActivateSession to both activate and
// associate it.
//
// If cfg has no UserIdentityToken set, CreateSession fills in an
// anonymous one using the PolicyID the server advertised for its
// unsecured endpoint, defaulting to "Anonymous" if none is found.
//
// See Part 4, 5.6.2.
func (c *Client) CreateSession(ctx context.Context, cfg *SessionConfig) (*Session, error) {
	if c.sechan == nil {
		return nil, errors.New("opcua: secure channel not connected")
	}

	nonce := make([]byte, 32)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	req := &ua.CreateSessionRequest{
		ClientDescription:       cfg.ClientDescription,
		ServerURI:               "",
		EndpointURL:             c.endpointURL,
		SessionName:             fmt.Sprintf("open62541-sub001-%d", time.Now().UnixNano()),
		ClientNonce:             nonce,
		ClientCertificate:       c.cfg.Certificate,
		RequestedSessionTimeout: float64(cfg.SessionTimeout / time.Millisecond),
	}

	resp, err := c.sendRequest(ctx, req, nil)
	if err != nil {
		return nil, err
	}
	res, ok := resp.(*ua.CreateSessionResponse)
	if !ok {
		return nil, errors.Errorf("opcua: unexpected response %T to CreateSessionRequest", resp)
	}

	if err := c.verifySessionSignature(res.ServerCertificate, nonce, res.ServerSignature); err != nil {
		c.cfg.Logger.Printf("opcua: session signature verification failed: %v", err)
	}

	if cfg.UserIdentityToken == nil {
		cfg.UserIdentityToken = &ua.AnonymousIdentityToken{PolicyID: anonymousPolicyID(res.ServerEndpoints)}
	}
	if tok, ok := cfg.UserIdentityToken.(*ua.AnonymousIdentityToken); ok && tok.PolicyID == "" {
		tok.PolicyID = anonymousPolicyID(res.ServerEndpoints)
	}
	if tok, ok := cfg.UserIdentityToken.(*ua.UserNameIdentityToken); ok && tok.PolicyID == "" {
		tok.PolicyID = userNamePolicyID(res.ServerEndpoints)
	}

	return &Session{
		cfg:               cfg,
		resp:              res,
		serverNonce:       res.ServerNonce,
		serverCertificate: res.ServerCertificate,
	}, nil
}

const defaultAnonymousPolicyID = "Anonymous"
const defaultUserNamePolicyID = "Username"

// anonymousPolicyID finds the PolicyID of the first unsecured endpoint's
// Anonymous UserTokenPolicy, falling back to the conventional default.
func anonymousPolicyID(endpoints []*ua.EndpointDescription) string {
	for _, e := range endpoints {
		if e.SecurityMode != ua.MessageSecurityModeNone || e.SecurityPolicyURI != string(uapolicy.None) {
			continue
		}
		for _, t := range e.UserIdentityTokens {
			if t.TokenType == ua.UserTokenTypeAnonymous {
				return t.PolicyID
			}
		}
	}
	return defaultAnonymousPolicyID
}

// userNamePolicyID finds the PolicyID of the first UserName UserTokenPolicy
// across all endpoints, falling back to the conventional default.
func userNamePolicyID(endpoints []*ua.EndpointDescription) string {
	for _, e := range endpoints {
		for _, t := range e.UserIdentityTokens {
			if t.TokenType == ua.UserTokenTypeUserName {
				return t.PolicyID
			}
		}
	}
	return defaultUserNamePolicyID
}

// ActivateSession activates s and associates it with the client. If the
// client already has a session it is closed first; call DetachSession to
// retain it instead.
//
// See Part 4, 5.6.3.
func (c *Client) ActivateSession(ctx context.Context, s *Session) error {
	sig, sigAlg, err := c.signSessionNonce(s.serverCertificate, s.serverNonce)
	if err != nil {
		return errors.Wrap(err, "opcua: creating session signature")
	}

	tok := s.cfg.UserIdentityToken
	if tok == nil {
		tok = &ua.AnonymousIdentityToken{PolicyID: defaultAnonymousPolicyID}
	}
	if unt, ok := tok.(*ua.UserNameIdentityToken); ok {
		pass, passAlg, err := c.encryptUserPassword(s.serverCertificate, s.cfg.AuthPassword)
		if err != nil {
			return errors.Wrap(err, "opcua: encrypting user password")
		}
		unt.Password = pass
		unt.EncryptionAlgorithm = passAlg
	}

	req := &ua.ActivateSessionRequest{
		ClientSignature:    ua.SignatureData{Algorithm: sigAlg, Signature: sig},
		LocaleIDs:          s.cfg.LocaleIDs,
		UserIdentityToken:  ua.NewExtensionObject(tok),
		UserTokenSignature: ua.SignatureData{},
	}

	resp, err := c.sendRequest(ctx, req, s.resp.AuthenticationToken)
	if err != nil {
		return err
	}
	res, ok := resp.(*ua.ActivateSessionResponse)
	if !ok {
		return errors.Errorf("opcua: unexpected response %T to ActivateSessionRequest", resp)
	}
	s.serverNonce = res.ServerNonce

	if prev := c.Session(); prev != nil {
		if err := c.closeSession(ctx, prev); err != nil {
			return err
		}
	}
	c.session.Store(s)
	return nil
}

// CloseSession closes the current session.
//
// See Part 4, 5.6.4.
func (c *Client) CloseSession(ctx context.Context) error {
	if err := c.closeSession(ctx, c.Session()); err != nil {
		return err
	}
	c.session.Store((*Session)(nil))
	return nil
}

func (c *Client) closeSession(ctx context.Context, s *Session) error {
	if s == nil || c.sechan == nil {
		return nil
	}
	req := &ua.CloseSessionRequest{DeleteSubscriptions: true}
	_, err := c.sendRequest(ctx, req, s.resp.AuthenticationToken)
	return err
}

// DetachSession removes the session from the client without closing it.
// The caller is responsible for closing or re-activating it. If the
// client has no active session DetachSession returns no error.
func (c *Client) DetachSession() (*Session, error) {
	s := c.Session()
	c.session.Store((*Session)(nil))
	return s, nil
}

// Send sends req over the SecureChannel, injecting the active session's
// authentication token if any, and blocks for the matching response.
func (c *Client) Send(ctx context.Context, req ua.Request) (ua.Response, error) {
	var authToken *ua.NodeID
	if s := c.Session(); s != nil {
		authToken = s.resp.AuthenticationToken
	}
	return c.sendRequest(ctx, req, authToken)
}

func (c *Client) sendRequest(ctx context.Context, req ua.Request, authToken *ua.NodeID) (ua.Response, error) {
	if c.sechan == nil {
		return nil, errors.New("opcua: secure channel not connected")
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultRequestTimeout)
		defer cancel()
	}
	resp, err := c.sechan.SendRequest(ctx, req, authToken)
	if err != nil {
		return nil, err
	}
	if result := resp.Header().ServiceResult; result.IsBad() {
		return resp, result
	}
	return resp, nil
}

// GetEndpoints returns the endpoints this client's server advertises.
func (c *Client) GetEndpoints(ctx context.Context) (*ua.GetEndpointsResponse, error) {
	req := &ua.GetEndpointsRequest{EndpointURL: c.endpointURL}
	resp, err := c.Send(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp.(*ua.GetEndpointsResponse), nil
}

// Read executes a synchronous Read request, defaulting each ReadValueID's
// AttributeID to Value when unset.
func (c *Client) Read(ctx context.Context, req *ua.ReadRequest) (*ua.ReadResponse, error) {
	rvs := make([]*ua.ReadValueID, len(req.NodesToRead))
	for i, rv := range req.NodesToRead {
		rc := *rv
		if rc.AttributeID == 0 {
			rc.AttributeID = id.AttributeIDValue
		}
		rvs[i] = &rc
	}
	req = &ua.ReadRequest{
		MaxAge:             req.MaxAge,
		TimestampsToReturn: req.TimestampsToReturn,
		NodesToRead:        rvs,
	}
	resp, err := c.Send(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp.(*ua.ReadResponse), nil
}

// Write executes a synchronous Write request.
func (c *Client) Write(ctx context.Context, req *ua.WriteRequest) (*ua.WriteResponse, error) {
	resp, err := c.Send(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp.(*ua.WriteResponse), nil
}

// Browse executes a synchronous Browse request.
func (c *Client) Browse(ctx context.Context, req *ua.BrowseRequest) (*ua.BrowseResponse, error) {
	resp, err := c.Send(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp.(*ua.BrowseResponse), nil
}

// Subscription is a client-side handle on a server-side Subscription: its
// revised parameters plus the channel PublishLoop delivers notifications
// to (spec.md §4.9).
type Subscription struct {
	SubscriptionID            uint32
	RevisedPublishingInterval float64
	RevisedLifetimeCount      uint32
	RevisedMaxKeepAliveCount  uint32
	Channel                   chan PublishNotificationData

	stop chan struct{}
}

// SubscriptionParameters requests a Subscription's publishing timer and
// notification limits; the server may revise any of them.
type SubscriptionParameters struct {
	Interval                   time.Duration
	LifetimeCount              uint32
	MaxKeepAliveCount          uint32
	MaxNotificationsPerPublish uint32
	Priority                   byte
	ChannelBufferSize          int
}

// NewDefaultSubscriptionParameters returns parameters modeled on a
// moderately active reporting subscription.
func NewDefaultSubscriptionParameters() *SubscriptionParameters {
	return &SubscriptionParameters{
		MaxNotificationsPerPublish: 10000,
		LifetimeCount:              10000,
		MaxKeepAliveCount:          3000,
		Interval:                   100 * time.Millisecond,
	}
}

// Subscribe creates a Subscription and starts its dedicated Publish loop.
// See NewDefaultSubscriptionParameters for sensible defaults.
func (c *Client) Subscribe(ctx context.Context, params SubscriptionParameters) (*Subscription, error) {
	req := &ua.CreateSubscriptionRequest{
		RequestedPublishingInterval: float64(params.Interval / time.Millisecond),
		RequestedLifetimeCount:      params.LifetimeCount,
		RequestedMaxKeepAliveCount:  params.MaxKeepAliveCount,
		PublishingEnabled:           true,
		MaxNotificationsPerPublish:  params.MaxNotificationsPerPublish,
		Priority:                    params.Priority,
	}
	res, err := c.CreateSubscription(ctx, req)
	if err != nil {
		return nil, err
	}
	if res.ResponseHeader.ServiceResult.IsBad() {
		return nil, res.ResponseHeader.ServiceResult
	}

	sub := &Subscription{
		SubscriptionID:            res.SubscriptionID,
		RevisedPublishingInterval: res.RevisedPublishingInterval,
		RevisedLifetimeCount:      res.RevisedLifetimeCount,
		RevisedMaxKeepAliveCount:  res.RevisedMaxKeepAliveCount,
		Channel:                   make(chan PublishNotificationData, params.ChannelBufferSize),
		stop:                      make(chan struct{}),
	}

	c.subMu.Lock()
	c.subscriptions[sub.SubscriptionID] = sub
	c.subMu.Unlock()

	go c.publishLoop(sub)
	return sub, nil
}

// CreateSubscription sends a CreateSubscriptionRequest without registering
// a Publish loop; most callers want Subscribe instead.
func (c *Client) CreateSubscription(ctx context.Context, req *ua.CreateSubscriptionRequest) (*ua.CreateSubscriptionResponse, error) {
	resp, err := c.Send(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp.(*ua.CreateSubscriptionResponse), nil
}

// Unsubscribe deletes sub on the server and stops its Publish loop.
func (c *Client) Unsubscribe(ctx context.Context, sub *Subscription) error {
	c.subMu.Lock()
	if _, ok := c.subscriptions[sub.SubscriptionID]; ok {
		close(sub.stop)
		delete(c.subscriptions, sub.SubscriptionID)
	}
	c.subMu.Unlock()

	res, err := c.DeleteSubscriptions(ctx, []uint32{sub.SubscriptionID})
	if err != nil {
		return err
	}
	if len(res.Results) > 0 && res.Results[0].IsBad() {
		return res.Results[0]
	}
	return nil
}

// DeleteSubscriptions deletes one or more Subscriptions by id.
func (c *Client) DeleteSubscriptions(ctx context.Context, subIDs []uint32) (*ua.DeleteSubscriptionsResponse, error) {
	req := &ua.DeleteSubscriptionsRequest{SubscriptionIDs: subIDs}
	resp, err := c.Send(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp.(*ua.DeleteSubscriptionsResponse), nil
}

// NewMonitoredItemCreateRequestWithDefaults builds a MonitoredItemCreateRequest
// for nodeID/attributeID (defaulting to Value) reporting with a queue size
// of 10, discarding the oldest sample when full.
func NewMonitoredItemCreateRequestWithDefaults(nodeID *ua.NodeID, attributeID uint32, clientHandle uint32) *ua.MonitoredItemCreateRequest {
	if attributeID == 0 {
		attributeID = id.AttributeIDValue
	}
	return &ua.MonitoredItemCreateRequest{
		ItemToMonitor: ua.ReadValueID{
			NodeID:      nodeID,
			AttributeID: attributeID,
		},
		MonitoringMode: ua.MonitoringModeReporting,
		RequestedParams: ua.MonitoringParameters{
			ClientHandle:  clientHandle,
			DiscardOldest: true,
			QueueSize:     10,
		},
	}
}

// PublishNotificationData is one Subscription's delivered notification, or
// the error that ended its Publish loop.
type PublishNotificationData struct {
	SubscriptionID uint32
	Error          error
	Value          interface{}
}

// Publish sends a single PublishRequest with the given acknowledgements.
func (c *Client) Publish(ctx context.Context, acks []*ua.SubscriptionAcknowledgement) (*ua.PublishResponse, error) {
	req := &ua.PublishRequest{SubscriptionAcknowledgements: acks}
	resp, err := c.Send(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp.(*ua.PublishResponse), nil
}

// publishLoop keeps one PublishRequest parked on the server at all times
// for sub, delivering each resulting notification to sub.Channel, until
// sub.stop is closed (spec.md §4.9's long-poll Publish design, mirrored
// here on the client that parks the requests).
func (c *Client) publishLoop(sub *Subscription) {
	ctx := context.Background()
	acks := make([]*ua.SubscriptionAcknowledgement, 0)
	for {
		select {
		case <-sub.stop:
			return
		default:
		}

		res, err := c.Publish(ctx, acks)
		if err != nil {
			switch err {
			case ua.StatusBadRequestTimeout, ua.StatusBadNoSubscription:
				continue
			}
			sub.Channel <- PublishNotificationData{SubscriptionID: sub.SubscriptionID, Error: err}
			continue
		}

		acks = acks[:0]
		for _, n := range res.AvailableSequenceNumbers {
			acks = append(acks, &ua.SubscriptionAcknowledgement{SubscriptionID: res.SubscriptionID, SequenceNumber: n})
		}
		c.notifySubscription(res)
	}
}

func (c *Client) notifySubscription(resp *ua.PublishResponse) {
	c.subMu.Lock()
	sub, ok := c.subscriptions[resp.SubscriptionID]
	c.subMu.Unlock()
	if !ok {
		c.cfg.Logger.Printf("opcua: publish response for unknown subscription %d", resp.SubscriptionID)
		return
	}

	for _, result := range resp.Results {
		if result.IsBad() {
			sub.Channel <- PublishNotificationData{SubscriptionID: resp.SubscriptionID, Error: result}
			return
		}
	}

	if len(resp.NotificationMessage.NotificationData) == 0 {
		return // keep-alive, nothing to deliver
	}

	for _, data := range resp.NotificationMessage.NotificationData {
		if data == nil || data.Value == nil {
			sub.Channel <- PublishNotificationData{SubscriptionID: resp.SubscriptionID, Error: errors.New("opcua: missing NotificationData parameter")}
			continue
		}
		switch data.Value.(type) {
		case *ua.DataChangeNotification, *ua.EventNotificationList:
			sub.Channel <- PublishNotificationData{SubscriptionID: resp.SubscriptionID, Value: data.Value}
		default:
			sub.Channel <- PublishNotificationData{SubscriptionID: resp.SubscriptionID, Error: errors.Errorf("opcua: unknown NotificationData parameter: %T", data.Value)}
		}
	}
}

// CreateMonitoredItems adds MonitoredItems to an existing Subscription.
func (c *Client) CreateMonitoredItems(ctx context.Context, subID uint32, ts ua.TimestampsToReturn, items ...*ua.MonitoredItemCreateRequest) (*ua.CreateMonitoredItemsResponse, error) {
	if subID == 0 {
		return nil, ua.StatusBadSubscriptionIDInvalid
	}
	req := &ua.CreateMonitoredItemsRequest{
		SubscriptionID:     subID,
		TimestampsToReturn: ts,
		ItemsToCreate:      items,
	}
	resp, err := c.Send(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp.(*ua.CreateMonitoredItemsResponse), nil
}

// DeleteMonitoredItems removes one or more MonitoredItems from a
// Subscription.
func (c *Client) DeleteMonitoredItems(ctx context.Context, subID uint32, monitoredItemIDs ...uint32) (*ua.DeleteMonitoredItemsResponse, error) {
	req := &ua.DeleteMonitoredItemsRequest{
		SubscriptionID:   subID,
		MonitoredItemIDs: monitoredItemIDs,
	}
	resp, err := c.Send(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp.(*ua.DeleteMonitoredItemsResponse), nil
}

// signSessionNonce signs serverCert||serverNonce with the client's private
// key under the SecureChannel's negotiated policy, proving possession of
// the certificate the client presented during Open (spec.md §4.6's
// ClientSignature parameter). It is a no-op, returning no error, when the
// channel runs SecurityPolicy#None.
func (c *Client) signSessionNonce(serverCert, serverNonce []byte) (sig []byte, alg string, err error) {
	if c.cfg.SecurityPolicyURI == uapolicy.None || c.cfg.PrivateKey == nil {
		return nil, "", nil
	}
	policy, err := uapolicy.ByURI(c.cfg.SecurityPolicyURI)
	if err != nil {
		return nil, "", err
	}
	sig, err = policy.AsymmetricSign(c.cfg.PrivateKey, append(append([]byte{}, serverCert...), serverNonce...))
	if err != nil {
		return nil, "", err
	}
	return sig, string(c.cfg.SecurityPolicyURI), nil
}

// verifySessionSignature checks the server's signature over
// clientCert||clientNonce using the server certificate CreateSession
// returned, the client-side counterpart of signSessionNonce.
func (c *Client) verifySessionSignature(serverCert, clientNonce []byte, sig ua.SignatureData) error {
	if c.cfg.SecurityPolicyURI == uapolicy.None || len(sig.Signature) == 0 {
		return nil
	}
	policy, err := uapolicy.ByURI(c.cfg.SecurityPolicyURI)
	if err != nil {
		return err
	}
	cert, err := uapolicy.ParseCertificate(serverCert)
	if err != nil {
		return err
	}
	pub, err := certRSAPublicKey(cert)
	if err != nil {
		return err
	}
	return policy.AsymmetricVerify(pub, append(append([]byte{}, c.cfg.Certificate...), clientNonce...), sig.Signature)
}

// encryptUserPassword encrypts password with the server certificate's
// public key under the channel's negotiated policy, the way
// UserNameIdentityToken.Password is protected on the wire (spec.md §4.6).
// It returns the plaintext password unencrypted when the channel runs
// SecurityPolicy#None, matching a server that only accepts that policy on
// an already-encrypted transport.
func (c *Client) encryptUserPassword(serverCert []byte, password string) ([]byte, string, error) {
	if c.cfg.SecurityPolicyURI == uapolicy.None {
		return []byte(password), "", nil
	}
	policy, err := uapolicy.ByURI(c.cfg.SecurityPolicyURI)
	if err != nil {
		return nil, "", err
	}
	cert, err := uapolicy.ParseCertificate(serverCert)
	if err != nil {
		return nil, "", err
	}
	pub, err := certRSAPublicKey(cert)
	if err != nil {
		return nil, "", err
	}
	ciphertext, err := policy.AsymmetricEncrypt(pub, []byte(password))
	if err != nil {
		return nil, "", err
	}
	return ciphertext, string(c.cfg.SecurityPolicyURI), nil
}

// certRSAPublicKey extracts cert's RSA public key, the only key type this
// stack's SecurityPolicy suites use (spec.md §4.4).
func certRSAPublicKey(cert *x509.Certificate) (*rsa.PublicKey, error) {
	pub, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, errors.Errorf("opcua: certificate public key is %T, not RSA", cert.PublicKey)
	}
	return pub, nil
}
