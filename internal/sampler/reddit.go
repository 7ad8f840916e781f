package sampler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"activity-tracker/internal/domain"
)

const (
	DefaultPublicBaseURL = "https://www.reddit.com"
	DefaultOAuthBaseURL  = "https://oauth.reddit.com"
	DefaultTokenURL      = "https://www.reddit.com/api/v1/access_token"
	DefaultUserAgent     = "activity-tracker/1.0"
	DefaultFetchTimeout  = 5 * time.Second

	// tokens this close to expiry are refreshed before use
	expiryMargin = 30 * time.Second
	maxBodyBytes = 1 << 20
)

// Credentials are the script-app secrets for the password grant. All four
// must be set for authenticated access.
type Credentials struct {
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
}

func (c Credentials) Complete() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.Username != "" && c.Password != ""
}

type Options struct {
	PublicBaseURL string
	OAuthBaseURL  string
	TokenURL      string
	UserAgent     string
	Timeout       time.Duration
	Credentials   Credentials
	// HTTPClient is used for both token exchange and fetches when set.
	HTTPClient *http.Client
}

// RedditSampler reads subreddit activity from the about endpoint.
type RedditSampler struct {
	opts   Options
	client *http.Client
	oauth  *oauth2.Config
	now    func() time.Time

	group singleflight.Group
	mu    sync.Mutex
	token domain.Token
}

func NewRedditSampler(opts Options) *RedditSampler {
	if opts.PublicBaseURL == "" {
		opts.PublicBaseURL = DefaultPublicBaseURL
	}
	if opts.OAuthBaseURL == "" {
		opts.OAuthBaseURL = DefaultOAuthBaseURL
	}
	if opts.TokenURL == "" {
		opts.TokenURL = DefaultTokenURL
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultFetchTimeout
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}

	s := &RedditSampler{opts: opts, client: client, now: time.Now}
	if opts.Credentials.Complete() {
		s.oauth = &oauth2.Config{
			ClientID:     opts.Credentials.ClientID,
			ClientSecret: opts.Credentials.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  opts.TokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		}
	}
	return s
}

// Authenticated reports whether fetches go through the OAuth host.
func (s *RedditSampler) Authenticated() bool {
	return s.oauth != nil
}

// Authenticate returns a cached token while it is still valid and
// otherwise performs one password-grant exchange shared by all concurrent
// callers. Without credentials it returns the zero Token.
func (s *RedditSampler) Authenticate(ctx context.Context) (domain.Token, error) {
	if s.oauth == nil {
		return domain.Token{}, nil
	}

	s.mu.Lock()
	cached := s.token
	s.mu.Unlock()
	if cached.AccessToken != "" && s.now().Add(expiryMargin).Before(cached.Expiry) {
		return cached, nil
	}

	v, err, _ := s.group.Do("token", func() (interface{}, error) {
		exchangeCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
		exchangeCtx = context.WithValue(exchangeCtx, oauth2.HTTPClient, &http.Client{
			Timeout:   s.opts.Timeout,
			Transport: userAgentTransport{agent: s.opts.UserAgent, base: s.client.Transport},
		})

		tok, err := s.oauth.PasswordCredentialsToken(exchangeCtx, s.opts.Credentials.Username, s.opts.Credentials.Password)
		if err != nil {
			return domain.Token{}, fmt.Errorf("%w: %v", domain.ErrAuthFailure, err)
		}
		if tok.AccessToken == "" {
			return domain.Token{}, fmt.Errorf("%w: empty access token", domain.ErrAuthFailure)
		}

		token := domain.Token{AccessToken: tok.AccessToken, Expiry: tok.Expiry}
		s.mu.Lock()
		s.token = token
		s.mu.Unlock()
		return token, nil
	})
	if err != nil {
		return domain.Token{}, err
	}
	return v.(domain.Token), nil
}

// aboutResponse is the subset of /r/{name}/about.json the sampler reads.
type aboutResponse struct {
	Data *struct {
		ActiveUserCount *int64 `json:"active_user_count"`
		AccountsActive  *int64 `json:"accounts_active"`
		Subscribers     *int64 `json:"subscribers"`
	} `json:"data"`
}

// Fetch issues one bounded request for resourceID. Any failure is returned
// wrapped in ErrFetchFailure or ErrMalformedResponse and means Absent.
func (s *RedditSampler) Fetch(ctx context.Context, token domain.Token, resourceID string) (domain.Sample, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	base := s.opts.PublicBaseURL
	if token.AccessToken != "" {
		base = s.opts.OAuthBaseURL
	}
	endpoint := strings.TrimRight(base, "/") + "/r/" + url.PathEscape(resourceID) + "/about.json?raw_json=1"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.Sample{}, fmt.Errorf("%w: %s: %v", domain.ErrFetchFailure, resourceID, err)
	}
	req.Header.Set("User-Agent", s.opts.UserAgent)
	req.Header.Set("Accept", "application/json")
	if token.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return domain.Sample{}, fmt.Errorf("%w: %s: %v", domain.ErrFetchFailure, resourceID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return domain.Sample{}, fmt.Errorf("%w: %s: status %d", domain.ErrFetchFailure, resourceID, resp.StatusCode)
	}

	var payload aboutResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&payload); err != nil {
		if ctx.Err() != nil {
			return domain.Sample{}, fmt.Errorf("%w: %s: %v", domain.ErrFetchFailure, resourceID, ctx.Err())
		}
		return domain.Sample{}, fmt.Errorf("%w: %s: %v", domain.ErrMalformedResponse, resourceID, err)
	}
	if payload.Data == nil {
		return domain.Sample{}, fmt.Errorf("%w: %s: missing data object", domain.ErrMalformedResponse, resourceID)
	}

	active := payload.Data.ActiveUserCount
	if active == nil {
		active = payload.Data.AccountsActive
	}
	if active == nil {
		return domain.Sample{}, fmt.Errorf("%w: %s: missing active user count", domain.ErrMalformedResponse, resourceID)
	}
	if *active < 0 || (payload.Data.Subscribers != nil && *payload.Data.Subscribers < 0) {
		return domain.Sample{}, fmt.Errorf("%w: %s: negative count", domain.ErrMalformedResponse, resourceID)
	}

	sample := domain.Sample{
		ResourceID:  resourceID,
		ActiveCount: *active,
		TotalCount:  payload.Data.Subscribers,
		ObservedAt:  s.now(),
	}
	return sample.Prepare(sample.ObservedAt), nil
}

type userAgentTransport struct {
	agent string
	base  http.RoundTripper
}

func (t userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.agent)
	return base.RoundTrip(req)
}
