package oauth

import (
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"strings"
)

// redirectPolicy decides which redirect URIs a client may register.
type redirectPolicy struct {
	production    bool
	allowCustom   bool
	schemePattern []*regexp.Regexp
}

func newRedirectPolicy(issuer *url.URL, sec SecurityConfig) (*redirectPolicy, error) {
	p := &redirectPolicy{
		production:  !isLoopback(issuer.Hostname()),
		allowCustom: sec.AllowCustomRedirectSchemes,
	}
	for _, pattern := range sec.AllowedCustomSchemes {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid scheme pattern %q: %w", pattern, err)
		}
		p.schemePattern = append(p.schemePattern, re)
	}
	return p, nil
}

// validate rejects fragments, dangerous schemes, and plain http outside
// loopback when the server itself is not on loopback.
func (p *redirectPolicy) validate(uri string) error {
	parsed, err := url.Parse(uri)
	if err != nil {
		return fmt.Errorf("invalid redirect_uri format: %s", uri)
	}
	if parsed.Fragment != "" {
		return fmt.Errorf("redirect_uri must not contain fragments: %s", uri)
	}
	if parsed.Scheme == "" {
		return fmt.Errorf("redirect_uri must have a scheme: %s", uri)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		if !p.allowCustom {
			return fmt.Errorf("custom redirect_uri schemes not allowed (only http/https permitted)")
		}
		if slices.Contains(DangerousSchemes, scheme) {
			return fmt.Errorf("redirect_uri scheme '%s' is not allowed", parsed.Scheme)
		}
		if len(p.schemePattern) > 0 && !slices.ContainsFunc(p.schemePattern, func(re *regexp.Regexp) bool {
			return re.MatchString(scheme)
		}) {
			return fmt.Errorf("redirect_uri scheme '%s' does not match allowed patterns", parsed.Scheme)
		}
		return nil
	}

	if parsed.Host == "" {
		return fmt.Errorf("http/https redirect_uri must have a host: %s", uri)
	}
	if p.production && scheme != "https" && !isLoopback(parsed.Hostname()) {
		return fmt.Errorf("redirect_uri must use HTTPS in production (non-localhost redirects): %s", uri)
	}
	return nil
}

// isLoopback checks if a hostname is a loopback address
func isLoopback(hostname string) bool {
	return slices.Contains(LoopbackAddresses, strings.Trim(hostname, "[]"))
}
