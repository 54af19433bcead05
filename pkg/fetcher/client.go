package fetcher

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/proxy"
)

const (
	DefaultUserAgent    = "ComicLooms/1.0"
	DefaultMaxRedirects = 10
)

var (
	ErrInvalidProxyURL   = errors.New("invalid proxy URL")
	ErrUnsupportedScheme = errors.New("unsupported proxy scheme")
	ErrTooManyRedirects  = errors.New("redirect loop detected")
)

// UserAgents maps short browser names accepted on the command line to full
// user agent strings.
var UserAgents = map[string]string{
	"looms":   DefaultUserAgent,
	"firefox": "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0",
	"chrome":  "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
}

// ResolveUserAgent expands a short name from UserAgents; anything else is
// used verbatim.
func ResolveUserAgent(s string) string {
	if s == "" {
		return DefaultUserAgent
	}
	if ua, ok := UserAgents[strings.ToLower(s)]; ok {
		return ua
	}
	return s
}

var supportedSchemes = map[string]bool{
	"http":   true,
	"https":  true,
	"socks5": true,
}

// NewHTTPClient builds the client shared by gallery parsing and image
// fetches. Requests get the configured user agent, redirects are capped and
// a proxy is used when opts.Proxy is set. Timeouts are per request and are
// not set on the client.
func NewHTTPClient(opts *Options) (*http.Client, error) {
	var o Options
	if opts != nil {
		o = *opts
	}
	o.setDefault()

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if o.Proxy != "" {
		parsed, err := url.Parse(o.Proxy)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidProxyURL, o.Proxy)
		}
		if !supportedSchemes[parsed.Scheme] {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, parsed.Scheme)
		}
		if parsed.Scheme == "socks5" {
			var auth *proxy.Auth
			if parsed.User != nil {
				pass, _ := parsed.User.Password()
				auth = &proxy.Auth{
					User:     parsed.User.Username(),
					Password: pass,
				}
			}
			dialer, err := proxy.SOCKS5("tcp", parsed.Host, auth, proxy.Direct)
			if err != nil {
				return nil, err
			}
			transport.Proxy = nil
			transport.DialContext = dialer.(proxy.ContextDialer).DialContext
		} else {
			transport.Proxy = http.ProxyURL(parsed)
		}
	}

	return &http.Client{
		Transport: &userAgentTransport{
			base: transport,
			ua:   ResolveUserAgent(o.UserAgent),
		},
		CheckRedirect: redirectPolicy(o.MaxRedirects),
	}, nil
}

type userAgentTransport struct {
	base http.RoundTripper
	ua   string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") != "" {
		return t.base.RoundTrip(req)
	}
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.ua)
	return t.base.RoundTrip(req)
}

// headers kept when an image host redirects to another origin. Image CDNs
// commonly reject requests without the gallery Referer.
var safeHeaders = map[string]bool{
	"User-Agent":      true,
	"Accept":          true,
	"Accept-Language": true,
	"Accept-Encoding": true,
	"Referer":         true,
}

func redirectPolicy(maxRedirects int) func(*http.Request, []*http.Request) error {
	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return fmt.Errorf("%w: exceeded %d hops (last URL: %s)",
				ErrTooManyRedirects, maxRedirects, via[len(via)-1].URL)
		}
		if len(via) > 0 && via[len(via)-1].URL.Host != req.URL.Host {
			for key := range req.Header {
				if !safeHeaders[http.CanonicalHeaderKey(key)] {
					req.Header.Del(key)
				}
			}
		}
		return nil
	}
}
