package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kilianp07/carrierchain/core/logger"
	coremon "github.com/kilianp07/carrierchain/core/monitoring"
)

// Default topics.
const (
	DefaultOfferTopic    = "carrier/%s/offer"
	DefaultResponseTopic = "carrier/+/response"
	DefaultFallbackTopic = "dispatch/fallback"
)

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Broker     string `json:"broker"`
	ClientID   string `json:"client_id"`
	Username   string `json:"username"`
	Password   string `json:"password"`
	UseTLS     bool   `json:"use_tls"`
	ClientCert string `json:"client_cert"`
	ClientKey  string `json:"client_key"`
	CABundle   string `json:"ca_bundle"`
	AuthMethod string `json:"auth_method"`
	// QoS per message class: "offer", "response", "fallback".
	QoS        map[string]byte `json:"qos"`
	LWTTopic   string          `json:"lwt_topic"`
	LWTPayload string          `json:"lwt_payload"`
	LWTQoS     byte            `json:"lwt_qos"`
	LWTRetain  bool            `json:"lwt_retain"`
	// MaxRetries applies to marketplace publishes only. Carrier offers are
	// published once.
	MaxRetries int `json:"max_retries"`
	BackoffMS  int `json:"backoff_ms"`
	// OfferTopic is a format string receiving the carrier id.
	OfferTopic    string      `json:"offer_topic"`
	ResponseTopic string      `json:"response_topic"`
	FallbackTopic string      `json:"fallback_topic"`
	TLSConfig     *tls.Config `json:"-"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.ClientID == "" {
		c.ClientID = "carrierchain"
	}
	if c.OfferTopic == "" {
		c.OfferTopic = DefaultOfferTopic
	}
	if c.ResponseTopic == "" {
		c.ResponseTopic = DefaultResponseTopic
	}
	if c.FallbackTopic == "" {
		c.FallbackTopic = DefaultFallbackTopic
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BackoffMS <= 0 {
		c.BackoffMS = 100
	}
}

// Enabled reports whether a broker is configured.
func (c Config) Enabled() bool { return c.Broker != "" }

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

type subscription struct {
	topic   string
	qosKey  string
	handler paho.MessageHandler
}

// PahoClient wraps a Paho connection shared by the notifier, the marketplace
// fallback and the response listener. Subscriptions are replayed on every
// reconnect.
type PahoClient struct {
	cli     pahoClient
	cfg     Config
	logger  logger.Logger
	backoff time.Duration

	mu   sync.Mutex
	subs []subscription
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// NewPahoClient connects to the MQTT broker.
func NewPahoClient(cfg Config, log logger.Logger) (*PahoClient, error) {
	cfg.SetDefaults()
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	pc := &PahoClient{
		cfg:     cfg,
		logger:  log,
		backoff: time.Duration(cfg.BackoffMS) * time.Millisecond,
	}

	opts.OnConnect = func(c paho.Client) {
		log.Infof("MQTT connected")
		pc.mu.Lock()
		subs := append([]subscription(nil), pc.subs...)
		pc.mu.Unlock()
		for _, s := range subs {
			pc.subscribe(c, s)
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	pc.cli = c
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return pc, nil
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.AuthMethod == "username_password" || cfg.AuthMethod == "both" || cfg.AuthMethod == "" {
		if cfg.Username != "" {
			opts.SetUsername(cfg.Username)
		}
		if cfg.Password != "" {
			opts.SetPassword(cfg.Password)
		}
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	if cfg.LWTTopic != "" {
		opts.SetWill(cfg.LWTTopic, cfg.LWTPayload, cfg.LWTQoS, cfg.LWTRetain)
	}
	return opts, nil
}

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(caBytes)
	cfg := &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}
	return cfg, nil
}

func (p *PahoClient) qos(key string) byte {
	if q, ok := p.cfg.QoS[key]; ok {
		return q
	}
	return 1
}

// Subscribe registers a handler that survives reconnects.
func (p *PahoClient) Subscribe(topic, qosKey string, handler paho.MessageHandler) error {
	s := subscription{topic: topic, qosKey: qosKey, handler: handler}
	p.mu.Lock()
	p.subs = append(p.subs, s)
	p.mu.Unlock()
	if p.cli.IsConnected() {
		return p.subscribe(p.cli, s)
	}
	return nil
}

type subscriber interface {
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

func (p *PahoClient) subscribe(c subscriber, s subscription) error {
	token := c.Subscribe(s.topic, p.qos(s.qosKey), s.handler)
	if token.Wait() && token.Error() != nil {
		p.logger.Errorf("subscribe %s: %v", s.topic, token.Error())
		return token.Error()
	}
	return nil
}

// publish sends payload on topic, retrying up to retries times with
// exponential backoff.
func (p *PahoClient) publish(topic, qosKey string, payload []byte, retries int) error {
	var publishErr error
	for attempt := 0; attempt <= retries; attempt++ {
		token := p.cli.Publish(topic, p.qos(qosKey), false, payload)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			return nil
		}
		p.logger.Errorf("publish to %s attempt %d failed: %v", topic, attempt+1, publishErr)
		if attempt < retries {
			time.Sleep(p.backoff * time.Duration(1<<attempt))
		}
	}
	coremon.CaptureException(publishErr, map[string]string{"module": "mqtt", "topic": topic})
	return publishErr
}

// Disconnect gracefully closes the MQTT connection.
func (p *PahoClient) Disconnect() {
	if p.cli != nil && p.cli.IsConnected() {
		p.cli.Disconnect(250)
	}
}
