package robots

import (
	"bufio"
	"bytes"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// fold is shared by every user-agent comparison.
var fold = cases.Fold()

// Group is one User-agent block of a robots.txt file.
type Group struct {
	Agents     []string
	Allow      []string
	Disallow   []string
	CrawlDelay time.Duration
	HasDelay   bool
}

// Rules is a parsed robots.txt file.
type Rules struct {
	Groups []*Group
}

// Parse reads a robots.txt body. Unknown keys and malformed lines are
// ignored, so Parse never fails.
//
// Consecutive User-agent lines share one group. A User-agent line that
// follows a rule line starts a new group.
func Parse(body []byte) *Rules {
	r := &Rules{}
	var (
		current      *Group
		sawDirective bool
	)

	scanner := bufio.NewScanner(bytes.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		switch key {
		case "user-agent":
			if current == nil || sawDirective {
				current = &Group{}
				r.Groups = append(r.Groups, current)
				sawDirective = false
			}
			if value != "" {
				current.Agents = append(current.Agents, value)
			}
		case "allow", "disallow":
			if current == nil {
				continue
			}
			sawDirective = true
			if value == "" {
				continue
			}
			if key == "allow" {
				current.Allow = append(current.Allow, value)
			} else {
				current.Disallow = append(current.Disallow, value)
			}
		case "crawl-delay":
			if current == nil {
				continue
			}
			sawDirective = true
			secs, err := strconv.ParseFloat(value, 64)
			if err != nil || secs < 0 {
				continue
			}
			current.CrawlDelay = time.Duration(secs * float64(time.Second)).Round(time.Millisecond)
			current.HasDelay = true
		}
	}
	return r
}

// Group selects the group for userAgent: an exact agent match, then an
// agent contained in userAgent, then "*". It returns nil when none applies.
func (r *Rules) Group(userAgent string) *Group {
	if r == nil {
		return nil
	}
	ua := fold.String(strings.TrimSpace(userAgent))

	var substring, wildcard *Group
	for _, g := range r.Groups {
		for _, agent := range g.Agents {
			a := fold.String(agent)
			switch {
			case a == "*":
				if wildcard == nil {
					wildcard = g
				}
			case a == ua:
				return g
			case ua != "" && strings.Contains(ua, a):
				if substring == nil {
					substring = g
				}
			}
		}
	}
	if substring != nil {
		return substring
	}
	return wildcard
}

// Allowed reports whether userAgent may fetch path. A matching Allow wins
// over any Disallow. Paths are compared case-insensitively because crawled
// URLs reach the checker with lowercased paths.
func (r *Rules) Allowed(path, userAgent string) bool {
	g := r.Group(userAgent)
	if g == nil {
		return true
	}
	if path == "" {
		path = "/"
	}
	for _, p := range g.Allow {
		if matchPath(p, path) {
			return true
		}
	}
	for _, p := range g.Disallow {
		if matchPath(p, path) {
			return false
		}
	}
	return true
}

// Delay returns the crawl delay of the group selected for userAgent.
func (r *Rules) Delay(userAgent string) (time.Duration, bool) {
	g := r.Group(userAgent)
	if g == nil || !g.HasDelay {
		return 0, false
	}
	return g.CrawlDelay, true
}

// matchPath is a case-insensitive prefix match. A trailing "*" is
// dropped first.
func matchPath(pattern, path string) bool {
	return strings.HasPrefix(strings.ToLower(path), strings.ToLower(strings.TrimSuffix(pattern, "*")))
}
