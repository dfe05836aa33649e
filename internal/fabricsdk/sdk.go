package fabricsdk

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/imroc/req/v3"
	"github.com/openmined/fabsync/internal/version"
	"golang.org/x/time/rate"
)

const (
	DefaultFabricURL  = "https://api.fabric.microsoft.com"
	DefaultPowerBIURL = "https://api.powerbi.com"

	// Scope is the OAuth scope every Fabric and Power BI call is made under.
	Scope = "https://analysis.windows.net/powerbi/api/.default"
)

const (
	HeaderLocation    = "Location"
	HeaderOperationID = "x-ms-operation-id"
	HeaderRetryAfter  = "Retry-After"
	HeaderRequestID   = "RequestId"
)

var UserAgent = fmt.Sprintf("fabsync/%s (%s; %s; %s)", version.Version, version.Revision, runtime.GOOS, runtime.GOARCH)

// Config is the configuration for the Fabric client
type Config struct {
	FabricURL         string  // FabricURL defaults to DefaultFabricURL
	PowerBIURL        string  // PowerBIURL defaults to DefaultPowerBIURL
	RequestsPerSecond float64 // RequestsPerSecond <= 0 disables client-side throttling
	Burst             int
}

func (c *Config) withDefaults() *Config {
	out := *c
	if out.FabricURL == "" {
		out.FabricURL = DefaultFabricURL
	}
	if out.PowerBIURL == "" {
		out.PowerBIURL = DefaultPowerBIURL
	}
	if out.Burst <= 0 {
		out.Burst = 10
	}
	out.FabricURL = strings.TrimRight(out.FabricURL, "/")
	out.PowerBIURL = strings.TrimRight(out.PowerBIURL, "/")
	return &out
}

// Client is a stateless accessor for the Fabric REST API.
// Every call takes the bearer token it should run under, nothing is cached.
type Client struct {
	http       *req.Client
	fabricURL  string
	powerBIURL string
	limiter    *rate.Limiter
}

// New creates a new Fabric client
func New(cfg *Config) *Client {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg = cfg.withDefaults()

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)
	}

	// retries are owned by the export driver, never by the transport
	httpClient := req.C().
		SetCommonRetryCount(0).
		SetUserAgent(UserAgent).
		SetCommonHeader("Accept", "application/json").
		SetJsonMarshal(jsonMarshal).
		SetJsonUnmarshal(jsonUnmarshal)

	if limiter != nil {
		httpClient.OnBeforeRequest(func(_ *req.Client, r *req.Request) error {
			return limiter.Wait(r.Context())
		})
	}

	return &Client{
		http:       httpClient,
		fabricURL:  cfg.FabricURL,
		powerBIURL: cfg.PowerBIURL,
		limiter:    limiter,
	}
}

// Close releases idle connections held by the transport
func (c *Client) Close() {
	c.http.GetClient().CloseIdleConnections()
}

func (c *Client) request(ctx context.Context, token string) *req.Request {
	return c.http.R().
		SetContext(ctx).
		SetBearerAuthToken(token)
}

func (c *Client) fabric(format string, args ...any) string {
	return c.fabricURL + fmt.Sprintf(format, args...)
}
