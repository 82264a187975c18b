package exchange

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/yndnr/tokpool/internal/core/domain"
)

// DefaultTimeout bounds one token request.
const DefaultTimeout = 30 * time.Second

// Config configures a PasswordExchanger.
type Config struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string

	// RegionParam names the form field that carries the tuple region.
	// Empty means the region is not sent.
	RegionParam string

	// Transport is the base round tripper; nil uses http.DefaultTransport.
	Transport http.RoundTripper
	Timeout   time.Duration
}

// PasswordExchanger exchanges credential tuples for access tokens.
type PasswordExchanger struct {
	oauth  *oauth2.Config
	client *http.Client
}

// NewPasswordExchanger validates cfg and builds the exchanger.
func NewPasswordExchanger(cfg Config) (*PasswordExchanger, error) {
	if cfg.TokenURL == "" {
		return nil, domain.ErrMissingArgument.WithDetails("token url")
	}
	u, err := url.Parse(cfg.TokenURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, domain.ErrInvalidArgument.WithDetails("token url must be an absolute http(s) URL")
	}

	base := cfg.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	if cfg.RegionParam != "" {
		base = &regionTransport{param: cfg.RegionParam, next: base}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &PasswordExchanger{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		client: &http.Client{Transport: base, Timeout: timeout},
	}, nil
}

// Exchange implements service.Exchanger.
//
// A 429 from the endpoint is reported as domain.ErrRateLimited, every other
// failure as domain.ErrExchangeFailed.
func (e *PasswordExchanger) Exchange(ctx context.Context, tuple domain.CredentialTuple) (domain.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, e.client)
	ctx = context.WithValue(ctx, regionKey{}, tuple.Region)

	tok, err := e.oauth.PasswordCredentialsToken(ctx, tuple.Identifier, tuple.Secret)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil && re.Response.StatusCode == http.StatusTooManyRequests {
			return "", domain.ErrRateLimited.WithCause(err)
		}
		return "", domain.ErrExchangeFailed.WithCause(err)
	}
	if tok.AccessToken == "" {
		return "", domain.ErrExchangeFailed.WithDetails("empty access token")
	}
	return domain.Token(tok.AccessToken), nil
}

type regionKey struct{}

// regionTransport appends the tuple region, taken from the request
// context, to form-encoded token requests.
type regionTransport struct {
	param string
	next  http.RoundTripper
}

func (t *regionTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	region, _ := req.Context().Value(regionKey{}).(string)
	if region == "" || req.Body == nil ||
		!strings.HasPrefix(req.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		return t.next.RoundTrip(req)
	}

	raw, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		return nil, err
	}
	form, err := url.ParseQuery(string(raw))
	if err != nil {
		return nil, err
	}
	form.Set(t.param, region)
	body := form.Encode()

	out := req.Clone(req.Context())
	out.Body = io.NopCloser(strings.NewReader(body))
	out.ContentLength = int64(len(body))
	out.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(body)), nil
	}
	return t.next.RoundTrip(out)
}
