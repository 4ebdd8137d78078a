package config

// HTTPConfig configures the dispatch API listener.
type HTTPConfig struct {
	Addr string `json:"addr"`
	// Token protects every route with a bearer token when set.
	Token string `json:"token"`
}

// SetDefaults applies sane defaults.
func (c *HTTPConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
}
