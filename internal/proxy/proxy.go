// Package proxy selects the outbound proxy for engine traffic.
package proxy

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

type Config struct {
	Enabled  bool
	Host     string
	Port     string
	Username string
	Password string
}

// Selector resolves the proxy URL handed to the engine. The upstream proxy
// only speaks plain HTTP, so source URLs are rewritten to http when a proxy is
// in use.
type Selector struct {
	cfg    Config
	logger *logrus.Logger
}

func NewSelector(cfg Config, logger *logrus.Logger) *Selector {
	if logger == nil {
		logger = logrus.New()
	}
	return &Selector{cfg: cfg, logger: logger}
}

// URL returns the proxy URL in user:pass@host:port form, or "" when the proxy
// is disabled or incompletely configured.
func (s *Selector) URL() string {
	if !s.cfg.Enabled {
		return ""
	}
	if s.cfg.Host == "" || s.cfg.Port == "" || s.cfg.Username == "" || s.cfg.Password == "" {
		s.logger.Warn("proxy enabled but configuration incomplete")
		return ""
	}
	return fmt.Sprintf("http://%s:%s@%s:%s", s.cfg.Username, s.cfg.Password, s.cfg.Host, s.cfg.Port)
}

// NormalizeURL rewrites https source URLs to http when a proxy is active.
func (s *Selector) NormalizeURL(raw string) string {
	if s.URL() == "" {
		return raw
	}
	return ConvertHTTPSToHTTP(raw)
}

// ConvertHTTPSToHTTP rewrites an https URL to http. Non-https URLs pass
// through unchanged.
func ConvertHTTPSToHTTP(raw string) string {
	if strings.HasPrefix(raw, "https://") {
		return "http://" + raw[len("https://"):]
	}
	return raw
}
