package rules

import (
	"context"
	"fmt"
	"net/netip"
	"net/url"
	"time"

	"github.com/nao1215/crawlscope/internal/model"
	"github.com/nao1215/crawlscope/internal/urlnorm"
)

// defaultResolveTimeout bounds a single host lookup.
const defaultResolveTimeout = 2 * time.Second

// Resolver looks up the addresses of a host. *net.Resolver satisfies it.
type Resolver interface {
	LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error)
}

// Rules is the per-job crawl policy. It is safe for concurrent use.
type Rules struct {
	maxDepth int
	maxPages int
	strategy model.Strategy

	// seedDomain is the seed's host, seedSite its registrable domain.
	seedDomain string
	seedSite   string

	ignorePatterns []string
	followPatterns []string

	resolver       Resolver
	resolveTimeout time.Duration
}

// Option configures Rules.
type Option func(*Rules)

// WithIgnorePatterns skips URLs whose path matches any pattern.
func WithIgnorePatterns(patterns []string) Option {
	return func(r *Rules) {
		r.ignorePatterns = patterns
	}
}

// WithFollowPatterns restricts the crawl to paths matching at least one
// pattern. The seed path is exempt. An empty list allows every path.
func WithFollowPatterns(patterns []string) Option {
	return func(r *Rules) {
		r.followPatterns = patterns
	}
}

// WithResolver enables the DNS-based private-address check.
func WithResolver(resolver Resolver, timeout time.Duration) Option {
	return func(r *Rules) {
		r.resolver = resolver
		if timeout > 0 {
			r.resolveTimeout = timeout
		}
	}
}

// New builds the rules for one job. It fails with urlnorm.ErrInvalidURL
// when the seed URL is malformed.
func New(opts model.CrawlOptions, ruleOpts ...Option) (*Rules, error) {
	seedDomain, err := urlnorm.Domain(opts.StartURL)
	if err != nil {
		return nil, fmt.Errorf("seed url: %w", err)
	}
	seedSite, err := urlnorm.RegistrableDomain(opts.StartURL)
	if err != nil {
		return nil, fmt.Errorf("seed url: %w", err)
	}

	strategy := opts.Strategy
	if strategy == "" {
		strategy = model.StrategyDomain
	}

	r := &Rules{
		maxDepth:       opts.MaxDepth,
		maxPages:       opts.MaxPages,
		strategy:       strategy,
		seedDomain:     seedDomain,
		seedSite:       seedSite,
		resolveTimeout: defaultResolveTimeout,
	}
	for _, opt := range ruleOpts {
		opt(r)
	}
	return r, nil
}

// ShouldCrawl reports whether rawURL may be crawled at depth, given the
// number of pages scraped so far.
func (r *Rules) ShouldCrawl(rawURL string, depth, pagesScraped int) bool {
	if depth >= r.maxDepth || pagesScraped >= r.maxPages {
		return false
	}
	if !r.InScope(rawURL) {
		return false
	}
	if r.isPrivate(rawURL) {
		return false
	}
	return r.pathAllowed(rawURL, depth)
}

// InScope reports whether rawURL's host is allowed by the strategy.
func (r *Rules) InScope(rawURL string) bool {
	switch r.strategy {
	case model.StrategyAll:
		return urlnorm.IsHTTPURL(rawURL)
	case model.StrategySite:
		site, err := urlnorm.RegistrableDomain(rawURL)
		return err == nil && site == r.seedSite
	default:
		domain, err := urlnorm.Domain(rawURL)
		return err == nil && domain == r.seedDomain
	}
}

// isPrivate reports whether rawURL targets a private address.
// Malformed URLs count as private.
func (r *Rules) isPrivate(rawURL string) bool {
	host, err := urlnorm.Domain(rawURL)
	if err != nil {
		return true
	}
	if IsPrivateHost(host) {
		return true
	}
	if r.resolver == nil {
		return false
	}
	if _, err := netip.ParseAddr(host); err == nil {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.resolveTimeout)
	defer cancel()
	addrs, err := r.resolver.LookupNetIP(ctx, "ip", host)
	if err != nil {
		// Unresolvable hosts fail at fetch time and are recorded there.
		return false
	}
	for _, addr := range addrs {
		if IsPrivateAddr(addr) {
			return true
		}
	}
	return false
}

// pathAllowed applies ignore and follow patterns.
func (r *Rules) pathAllowed(rawURL string, depth int) bool {
	if len(r.ignorePatterns) == 0 && len(r.followPatterns) == 0 {
		return true
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	p := u.Path
	if p == "" {
		p = "/"
	}

	for _, pattern := range r.ignorePatterns {
		if matchPattern(pattern, p) {
			return false
		}
	}

	if len(r.followPatterns) == 0 || depth == 0 {
		return true
	}
	for _, pattern := range r.followPatterns {
		if matchPattern(pattern, p) {
			return true
		}
	}
	return false
}
