package config

import (
	"net/http"
	"strings"
)

// SiteConfig holds site-specific crawl settings for one host.
type SiteConfig struct {
	// Cookie is sent as the Cookie header, e.g. "name=value; name2=value2".
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are extra request headers for this site.
	Headers map[string]string `yaml:"headers,omitempty"`

	// IgnorePatterns are URL path globs to skip.
	IgnorePatterns []string `yaml:"ignorePatterns,omitempty"`

	// FollowPatterns restrict the crawl to matching paths when non-empty.
	FollowPatterns []string `yaml:"followPatterns,omitempty"`
}

// GetSiteConfig returns the configuration for host, merged over Defaults.
func (c *Config) GetSiteConfig(host string) SiteConfig {
	result := c.Defaults
	if len(c.Defaults.Headers) > 0 {
		result.Headers = make(map[string]string, len(c.Defaults.Headers))
		for k, v := range c.Defaults.Headers {
			result.Headers[k] = v
		}
	}

	site, ok := c.Sites[strings.ToLower(host)]
	if !ok {
		return result
	}
	if site.Cookie != "" {
		result.Cookie = site.Cookie
	}
	if len(site.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string)
		}
		for k, v := range site.Headers {
			result.Headers[k] = v
		}
	}
	if len(site.IgnorePatterns) > 0 {
		result.IgnorePatterns = site.IgnorePatterns
	}
	if len(site.FollowPatterns) > 0 {
		result.FollowPatterns = site.FollowPatterns
	}
	return result
}

// SiteHeaders returns the request headers of every configured site keyed
// by host, with the defaults under "*". Cookies become a Cookie header.
func (c *Config) SiteHeaders() map[string]http.Header {
	out := make(map[string]http.Header)
	if h := c.Defaults.httpHeader(); len(h) > 0 {
		out["*"] = h
	}
	for host, site := range c.Sites {
		if h := site.httpHeader(); len(h) > 0 {
			out[strings.ToLower(host)] = h
		}
	}
	return out
}

func (s SiteConfig) httpHeader() http.Header {
	h := make(http.Header, len(s.Headers)+1)
	for k, v := range s.Headers {
		h.Set(k, v)
	}
	if s.Cookie != "" {
		h.Set("Cookie", s.Cookie)
	}
	return h
}
