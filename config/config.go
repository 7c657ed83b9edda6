// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

// Package config parses the JSON5 server configuration described in
// spec.md §6 into a typed ServerConfig, the way open62541's
// plugins/ua_config_json.c walks its own cj5 token array into a
// UA_ServerConfig. It uses our own ua/json5 tokenizer rather than
// encoding/json so comments and trailing commas in operator-edited config
// files are accepted, then hands the decoded tree to viper so operators
// can still override individual keys with flags or OPCUA_ environment
// variables (SPEC_FULL.md §A).
package config

import (
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/open62541/open62541-sub001/errors"
	"github.com/open62541/open62541-sub001/pubsubbridge"
	"github.com/open62541/open62541-sub001/server"
	"github.com/open62541/open62541-sub001/ua"
	"github.com/open62541/open62541-sub001/ua/json5"
	"github.com/open62541/open62541-sub001/uapolicy"
	"github.com/open62541/open62541-sub001/uasc"
)

// RuleHandling selects how the server reacts to a soft protocol violation
// (verifyRequestTimestamp, allowEmptyVariables, allowAllCertificateUris in
// spec.md §6), mirroring open62541's UA_RuleHandling enum.
type RuleHandling string

const (
	RuleDefault RuleHandling = "Default"
	RuleWarn    RuleHandling = "Warn"
	RuleAbort   RuleHandling = "Abort"
	RuleAccept  RuleHandling = "Accept"
)

// ApplicationType is the ApplicationDescription.applicationType advertised
// in GetEndpoints (spec.md §6).
type ApplicationType string

const (
	ApplicationServer          ApplicationType = "Server"
	ApplicationClient          ApplicationType = "Client"
	ApplicationClientAndServer ApplicationType = "ClientAndServer"
	ApplicationDiscoveryServer ApplicationType = "DiscoveryServer"
)

// BuildInfo carries the product/manufacturer strings advertised in
// GetEndpoints's ServerStatusDataType (spec.md §6 `buildInfo`).
type BuildInfo struct {
	ProductURI       string `mapstructure:"productUri"`
	ManufacturerName string `mapstructure:"manufacturerName"`
	ProductName      string `mapstructure:"productName"`
	SoftwareVersion  string `mapstructure:"softwareVersion"`
	BuildNumber      string `mapstructure:"buildNumber"`
}

// ApplicationDescription configures the server's own ApplicationDescription
// (spec.md §6 `applicationDescription`).
type ApplicationDescription struct {
	ApplicationURI  string          `mapstructure:"applicationUri" validate:"required"`
	ApplicationName string          `mapstructure:"applicationName"`
	ApplicationType ApplicationType `mapstructure:"applicationType" validate:"omitempty,oneof=Server Client ClientAndServer DiscoveryServer"`
}

// TCPConfig holds the `tcp` section (spec.md §6 `tcp`). ToServerConfig
// does not pass these values on; the server's uacp connections use the
// uacp package defaults whatever is set here.
type TCPConfig struct {
	TCPBufSize   uint32 `mapstructure:"tcpBufSize"`
	TCPMaxMsgSize uint32 `mapstructure:"tcpMaxMsgSize"`
	TCPMaxChunks uint32 `mapstructure:"tcpMaxChunks"`
}

// SecurityPolicyConfig names one accepted SecurityPolicy URI plus the
// certificate/key pair it signs and encrypts with (spec.md §6
// `securityPolicies`).
type SecurityPolicyConfig struct {
	Policy         string `mapstructure:"policy" validate:"required"`
	CertificateFile string `mapstructure:"certificate" validate:"required"`
	PrivateKeyFile  string `mapstructure:"privateKey" validate:"required"`
}

// PKIConfig names the on-disk trust/issuer/revocation folders backing one
// CertificateGroup (spec.md §6 `secureChannelPKI`/`sessionPKI`).
type PKIConfig struct {
	TrustListFolder      string `mapstructure:"trustListFolder"`
	IssuerListFolder     string `mapstructure:"issuerListFolder"`
	RevocationListFolder string `mapstructure:"revocationListFolder"`
}

// Limits mirrors the flat maxNodesPer*/maxMonitoredItemsPerCall/
// maxReferencesPerNode keys of spec.md §6.
type Limits struct {
	MaxNodesPerRead                       int `mapstructure:"maxNodesPerRead"`
	MaxNodesPerWrite                      int `mapstructure:"maxNodesPerWrite"`
	MaxNodesPerBrowse                     int `mapstructure:"maxNodesPerBrowse"`
	MaxNodesPerMethodCall                 int `mapstructure:"maxNodesPerMethodCall"`
	MaxNodesPerRegisterNodes              int `mapstructure:"maxNodesPerRegisterNodes"`
	MaxNodesPerTranslateBrowsePathsToNodeIds int `mapstructure:"maxNodesPerTranslateBrowsePathsToNodeIds"`
	MaxNodesPerNodeManagement              int `mapstructure:"maxNodesPerNodeManagement"`
	MaxMonitoredItemsPerCall              int `mapstructure:"maxMonitoredItemsPerCall"`
	MaxReferencesPerNode                  int `mapstructure:"maxReferencesPerNode"`
}

// Range is a generic [Min, Max] pair, used by every *Limits key under
// `subscriptions` in spec.md §6.
type Range struct {
	Min float64 `mapstructure:"min"`
	Max float64 `mapstructure:"max"`
}

// SubscriptionsConfig is the `subscriptions` sub-object of spec.md §6.
type SubscriptionsConfig struct {
	PublishingIntervalLimits        Range         `mapstructure:"publishingIntervalLimits"`
	LifeTimeCountLimits              Range         `mapstructure:"lifeTimeCountLimits"`
	KeepAliveCountLimits              Range         `mapstructure:"keepAliveCountLimits"`
	SamplingIntervalLimits           Range         `mapstructure:"samplingIntervalLimits"`
	QueueSizeLimits                  Range         `mapstructure:"queueSizeLimits"`
	MaxNotificationsPerPublish       uint32        `mapstructure:"maxNotificationsPerPublish"`
	MaxRetransmissionQueueSize       uint32        `mapstructure:"maxRetransmissionQueueSize"`
	MaxEventsPerNode                 uint32        `mapstructure:"maxEventsPerNode"`
	EnableRetransmissionQueue        bool          `mapstructure:"enableRetransmissionQueue"`
	MaxPublishReqPerSession          uint32        `mapstructure:"maxPublishReqPerSession"`
	MaxMonitoredItems                uint32        `mapstructure:"maxMonitoredItems"`
	MaxMonitoredItemsPerSubscription uint32        `mapstructure:"maxMonitoredItemsPerSubscription"`
	MaxSubscriptionsPerSession       uint32        `mapstructure:"maxSubscriptionsPerSession"`
}

// HistorizingConfig is the optional `historizing` collaborator (spec.md
// §6). Historizing itself is out of this stack's scope; only the
// interface toggle is kept so a config file written for a fuller server
// still round-trips.
type HistorizingConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// MDNSConfig is the optional `mdns` discovery-announcement collaborator
// (spec.md §6).
type MDNSConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	ServerName string `mapstructure:"serverName"`
}

// PubSubConfig is the `pubsub` collaborator interface (spec.md §6): the
// PubSub service itself is out of scope, but its MQTT bridge endpoint
// (SPEC_FULL.md §B/§D, pubsubbridge package) is configured here.
type PubSubConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	BrokerURL string `mapstructure:"brokerUrl"`
	Topic     string `mapstructure:"topic"`
}

// ServerConfig is the top-level decoded form of spec.md §6's JSON5
// configuration document. Every top-level key is optional there; Load
// fills the gaps the same way open62541's config builder applies its
// compiled-in defaults.
type ServerConfig struct {
	BuildInfo               BuildInfo               `mapstructure:"buildInfo"`
	ApplicationDescription  ApplicationDescription  `mapstructure:"applicationDescription"`
	ShutdownDelay           time.Duration           `mapstructure:"shutdownDelay"`
	VerifyRequestTimestamp  RuleHandling            `mapstructure:"verifyRequestTimestamp" validate:"omitempty,oneof=Default Warn Abort Accept"`
	AllowEmptyVariables     RuleHandling            `mapstructure:"allowEmptyVariables" validate:"omitempty,oneof=Default Warn Abort Accept"`
	AllowAllCertificateUris RuleHandling            `mapstructure:"allowAllCertificateUris" validate:"omitempty,oneof=Default Warn Abort Accept"`
	ServerURLs              []string                `mapstructure:"serverUrls" validate:"required,min=1"`
	TCP                     TCPConfig               `mapstructure:"tcp"`
	SecurityPolicies        []SecurityPolicyConfig  `mapstructure:"securityPolicies"`
	SecureChannelPKI        PKIConfig               `mapstructure:"secureChannelPKI"`
	SessionPKI              PKIConfig               `mapstructure:"sessionPKI"`
	MaxSecureChannels       int                     `mapstructure:"maxSecureChannels"`
	MaxSessions             int                     `mapstructure:"maxSessions"`
	MaxSubscriptions        int                     `mapstructure:"maxSubscriptions"`
	MaxSecurityTokenLifetime time.Duration          `mapstructure:"maxSecurityTokenLifetime"`
	MaxSessionTimeout       time.Duration           `mapstructure:"maxSessionTimeout"`
	Limits                  Limits                  `mapstructure:"limits"`
	Subscriptions           SubscriptionsConfig     `mapstructure:"subscriptions"`
	Historizing             HistorizingConfig       `mapstructure:"historizing"`
	MDNS                    MDNSConfig              `mapstructure:"mdns"`
	PubSub                  PubSubConfig            `mapstructure:"pubsub"`
	AsyncOperationTimeout   time.Duration           `mapstructure:"asyncOperationTimeout"`
	MaxAsyncOperationQueueSize int                  `mapstructure:"maxAsyncOperationQueueSize"`
	ReverseReconnectInterval  time.Duration         `mapstructure:"reverseReconnectInterval"`
}

// Default returns the compiled-in defaults open62541 ships when a key is
// absent from the JSON5 document (spec.md §6).
func Default() ServerConfig {
	return ServerConfig{
		BuildInfo: BuildInfo{
			ManufacturerName: "open62541-sub001",
			ProductName:      "open62541-sub001 Server",
			SoftwareVersion:  "1.0.0",
		},
		ApplicationDescription: ApplicationDescription{
			ApplicationURI:  "urn:open62541.server.application",
			ApplicationName: "open62541-sub001",
			ApplicationType: ApplicationServer,
		},
		ShutdownDelay:          0,
		VerifyRequestTimestamp: RuleWarn,
		AllowEmptyVariables:    RuleWarn,
		ServerURLs:             []string{"opc.tcp://0.0.0.0:4840"},
		TCP: TCPConfig{
			TCPBufSize:    65535,
			TCPMaxMsgSize: 16 * 1024 * 1024,
			TCPMaxChunks:  4096,
		},
		MaxSecureChannels:        100,
		MaxSessions:              100,
		MaxSubscriptions:         1000,
		MaxSecurityTokenLifetime: 10 * time.Minute,
		MaxSessionTimeout:        10 * time.Minute,
		Limits: Limits{
			MaxNodesPerRead:                       1000,
			MaxNodesPerWrite:                       1000,
			MaxNodesPerBrowse:                      1000,
			MaxNodesPerMethodCall:                  1000,
			MaxNodesPerRegisterNodes:               1000,
			MaxNodesPerTranslateBrowsePathsToNodeIds: 1000,
			MaxNodesPerNodeManagement:               1000,
			MaxMonitoredItemsPerCall:                1000,
		},
		Subscriptions: SubscriptionsConfig{
			PublishingIntervalLimits:  Range{Min: 50, Max: 24 * 60 * 60 * 1000},
			LifeTimeCountLimits:       Range{Min: 3, Max: 15000},
			KeepAliveCountLimits:      Range{Min: 1, Max: 15000},
			SamplingIntervalLimits:    Range{Min: 50, Max: 24 * 60 * 60 * 1000},
			QueueSizeLimits:           Range{Min: 1, Max: 1000},
			MaxNotificationsPerPublish: 1000,
			MaxRetransmissionQueueSize: 256,
			EnableRetransmissionQueue:  true,
			MaxPublishReqPerSession:    20,
			MaxMonitoredItemsPerSubscription: 1000,
			MaxSubscriptionsPerSession:       50,
		},
		AsyncOperationTimeout:     30 * time.Second,
		MaxAsyncOperationQueueSize: 4096,
	}
}

// envPrefix namespaces environment-variable overrides, e.g.
// OPCUA_MAXSESSIONS=50 overrides the maxSessions key.
const envPrefix = "OPCUA"

// Load parses the JSON5 document at path (if path is non-empty and
// exists) over Default(), then layers environment variable and viper-held
// flag overrides on top, and validates the result. A missing path is not
// an error: the server starts from Default() plus env/flag overrides
// alone, matching open62541's "no config file means built-in defaults"
// behavior.
func Load(path string, v *viper.Viper) (*ServerConfig, error) {
	if v == nil {
		v = viper.New()
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := Default()
	defMap, err := toStringMap(def)
	if err != nil {
		return nil, errors.Wrap(err, "config: encoding defaults")
	}
	if err := v.MergeConfigMap(defMap); err != nil {
		return nil, errors.Wrap(err, "config: merging defaults")
	}

	if path != "" {
		if _, statErr := os.Stat(path); statErr == nil {
			fileMap, err := decodeJSON5File(path)
			if err != nil {
				return nil, errors.Wrap(err, "config: parsing "+path)
			}
			if err := v.MergeConfigMap(fileMap); err != nil {
				return nil, errors.Wrap(err, "config: merging "+path)
			}
		} else if !os.IsNotExist(statErr) {
			return nil, errors.Wrap(statErr, "config: stat "+path)
		}
	}

	var cfg ServerConfig
	hook := mapstructure.ComposeDecodeHookFunc(
		durationDecodeHook(),
		applicationTypeDecodeHook(),
		ruleHandlingDecodeHook(),
	)
	if err := v.Unmarshal(&cfg, viper.DecodeHook(hook)); err != nil {
		return nil, errors.Wrap(err, "config: unmarshal")
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New()

// Validate runs the go-playground/validator struct tags declared above,
// the same validation library SPEC_FULL.md's ambient stack names for
// every config/input struct in this module.
func Validate(cfg *ServerConfig) error {
	if err := validate.Struct(cfg); err != nil {
		return errors.Wrap(err, "config: validation failed")
	}
	for i, sp := range cfg.SecurityPolicies {
		if err := validate.Struct(sp); err != nil {
			return errors.Errorf("config: securityPolicies[%d]: %w", i, err)
		}
	}
	return nil
}

// decodeJSON5File reads and tokenizes a JSON5 config file, returning its
// decoded generic tree ready for viper.MergeConfigMap.
func decodeJSON5File(path string) (map[string]interface{}, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	res, err := json5.Parse(string(raw))
	if err != nil {
		return nil, err
	}
	if len(res.Tokens) == 0 {
		return map[string]interface{}{}, nil
	}
	v, _, err := decodeToken(res, 0)
	if err != nil {
		return nil, err
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, errors.New("config: top-level JSON5 document must be an object")
	}
	return m, nil
}

// decodeToken walks res's flat token array starting at idx, recursively
// materializing Go values the way a caller of ua/json5 would (that
// package only exposes Seek-by-key and scalar Get* accessors; this is the
// generic tree walk config needs to hand a whole document to viper). It
// returns the decoded value and the index immediately after idx's
// subtree, relying on Size to know how many immediate children follow an
// Object/Array token in document order.
func decodeToken(res *json5.Result, idx int) (interface{}, int, error) {
	tok := res.Tokens[idx]
	switch tok.Type {
	case json5.Object:
		m := make(map[string]interface{}, tok.Size)
		cursor := idx + 1
		for i := 0; i < tok.Size; i++ {
			key, err := res.GetString(cursor)
			if err != nil {
				return nil, 0, err
			}
			cursor++
			val, next, err := decodeToken(res, cursor)
			if err != nil {
				return nil, 0, err
			}
			m[key] = val
			cursor = next
		}
		return m, cursor, nil
	case json5.Array:
		arr := make([]interface{}, 0, tok.Size)
		cursor := idx + 1
		for i := 0; i < tok.Size; i++ {
			val, next, err := decodeToken(res, cursor)
			if err != nil {
				return nil, 0, err
			}
			arr = append(arr, val)
			cursor = next
		}
		return arr, cursor, nil
	case json5.String:
		s, err := res.GetString(idx)
		return s, idx + 1, err
	case json5.Number:
		f, err := res.GetFloat64(idx)
		return f, idx + 1, err
	case json5.Bool:
		b, err := res.GetBool(idx)
		return b, idx + 1, err
	case json5.Null:
		return nil, idx + 1, nil
	default:
		return nil, 0, errors.Errorf("config: unknown json5 token type %v", tok.Type)
	}
}

// toStringMap round-trips a ServerConfig through mapstructure's own
// encoder-equivalent (decode of its own mapstructure-tagged zero value)
// so Default() can seed viper the same way a parsed file would, without
// hand-maintaining a parallel map literal that would drift from the
// struct.
func toStringMap(cfg ServerConfig) (map[string]interface{}, error) {
	var m map[string]interface{}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  &m,
		TagName: "mapstructure",
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(structToMap(cfg)); err != nil {
		return nil, err
	}
	return m, nil
}

// structToMap converts cfg to a plain map keyed by its mapstructure tags
// via reflection, the input shape mapstructure.Decode expects.
func structToMap(v interface{}) map[string]interface{} {
	rv := reflect.ValueOf(v)
	rt := rv.Type()
	out := make(map[string]interface{}, rt.NumField())
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "" {
			tag = f.Name
		}
		fv := rv.Field(i)
		if fv.Kind() == reflect.Struct && fv.Type() != reflect.TypeOf(time.Duration(0)) {
			out[tag] = structToMap(fv.Interface())
			continue
		}
		out[tag] = fv.Interface()
	}
	return out
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case float64:
			return time.Duration(v) * time.Millisecond, nil
		case int:
			return time.Duration(v) * time.Millisecond, nil
		case int64:
			return time.Duration(v) * time.Millisecond, nil
		case time.Duration:
			return v, nil
		default:
			return data, nil
		}
	}
}

func applicationTypeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(ApplicationServer) {
			return data, nil
		}
		if s, ok := data.(string); ok {
			return ApplicationType(s), nil
		}
		return data, nil
	}
}

func ruleHandlingDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(RuleDefault) {
			return data, nil
		}
		if s, ok := data.(string); ok {
			return RuleHandling(s), nil
		}
		return data, nil
	}
}

// ToServerConfig maps the decoded configuration onto server.Config, the
// in-process type server.NewServer consumes. Certificate/key material is
// loaded separately (cmd/uaserver wires that in, since it needs to read
// and parse PEM/DER files before construction).
func (c *ServerConfig) ToServerConfig() server.Config {
	endpoint := ""
	if len(c.ServerURLs) > 0 {
		endpoint = c.ServerURLs[0]
	}
	mode := uasc.SecurityModeNone
	var policy uapolicy.URI
	if len(c.SecurityPolicies) > 0 {
		policy = uapolicy.URI(c.SecurityPolicies[0].Policy)
		if policy != "" && !strings.HasSuffix(string(policy), "#None") {
			mode = uasc.SecurityModeSignAndEncrypt
		}
	}
	return server.Config{
		ApplicationURI:  c.ApplicationDescription.ApplicationURI,
		ApplicationName: c.ApplicationDescription.ApplicationName,
		ApplicationType: c.ApplicationDescription.ApplicationType.applicationTypeUA(),
		EndpointURL:     endpoint,
		SecurityPolicy:  policy,
		SecurityMode:    mode,
		MaxSessionTimeout:    c.MaxSessionTimeout,
		AsyncOperationTimeout: c.AsyncOperationTimeout,
		MaxSessions:          c.MaxSessions,
		MaxSubscriptions:     c.MaxSubscriptions,
		Limits: server.OperationLimits{
			MaxNodesPerRead:                       c.Limits.MaxNodesPerRead,
			MaxNodesPerWrite:                       c.Limits.MaxNodesPerWrite,
			MaxNodesPerBrowse:                      c.Limits.MaxNodesPerBrowse,
			MaxNodesPerMethodCall:                  c.Limits.MaxNodesPerMethodCall,
			MaxNodesPerTranslateBrowsePathsToNodeIds: c.Limits.MaxNodesPerTranslateBrowsePathsToNodeIds,
			MaxMonitoredItemsPerCall:               c.Limits.MaxMonitoredItemsPerCall,
			MaxReferencesPerNode:                   c.Limits.MaxReferencesPerNode,
		},
	}
}

// ToPubSubBridge returns a pubsubbridge.Bridge for c.PubSub, or nil if the
// `pubsub` key is absent/disabled (spec.md §6). The returned bridge is not
// started; the caller runs pubsubbridge.Bridge.Start, and Publish calls
// made before it has connected are dropped.
func (c *ServerConfig) ToPubSubBridge() *pubsubbridge.Bridge {
	if !c.PubSub.Enabled || c.PubSub.BrokerURL == "" {
		return nil
	}
	return pubsubbridge.New(pubsubbridge.Config{
		BrokerURL: c.PubSub.BrokerURL,
		Topic:     c.PubSub.Topic,
		ClientID:  c.ApplicationDescription.ApplicationURI,
	}, nil)
}

// applicationTypeUA maps the config's ApplicationType onto the wire
// ua.ApplicationType GetEndpoints advertises.
func (t ApplicationType) applicationTypeUA() ua.ApplicationType {
	switch t {
	case ApplicationClient:
		return ua.ApplicationTypeClient
	case ApplicationClientAndServer:
		return ua.ApplicationTypeClientAndServer
	case ApplicationDiscoveryServer:
		return ua.ApplicationTypeDiscoveryServer
	default:
		return ua.ApplicationTypeServer
	}
}
