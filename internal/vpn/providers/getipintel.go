package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/netip"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/jxsl13/TeeworldsDiscordBot/internal/vpn"
)

const (
	GetIPIntelName     = "getipintel"
	getIPIntelURL      = "http://check.getipintel.net/check.php"
	DefaultThreshold   = 0.95
	getIPIntelPerMin   = 15
	getIPIntelCooldown = time.Minute
)

type GetIPIntelOptions struct {
	Email     string
	Threshold float64
	BaseURL   string
	Client    *http.Client
	Timeout   time.Duration
}

// GetIPIntel asks check.getipintel.net for a probability in [0,1]. Negative
// answers are error codes of the service.
type GetIPIntel struct {
	apiClient
	email     string
	threshold float64
	baseURL   string
}

var _ vpn.Provider = (*GetIPIntel)(nil)

func NewGetIPIntel(opts GetIPIntelOptions) (*GetIPIntel, error) {
	email := strings.TrimSpace(opts.Email)
	if email == "" {
		return nil, fmt.Errorf("%s: contact e-mail missing: %w", GetIPIntelName, ErrNotConfigured)
	}
	if opts.Threshold <= 0 || opts.Threshold > 1 {
		opts.Threshold = DefaultThreshold
	}
	if opts.BaseURL == "" {
		opts.BaseURL = getIPIntelURL
	}

	limiter := rate.NewLimiter(rate.Every(time.Minute/getIPIntelPerMin), getIPIntelPerMin)
	return &GetIPIntel{
		apiClient: apiClient{
			name:            GetIPIntelName,
			http:            httpClientOr(opts.Client, opts.Timeout),
			cooldown:        vpn.NewCooldown(GetIPIntelName, limiter),
			defaultCooldown: getIPIntelCooldown,
		},
		email:     email,
		threshold: opts.Threshold,
		baseURL:   opts.BaseURL,
	}, nil
}

func (g *GetIPIntel) Name() string { return GetIPIntelName }

func (g *GetIPIntel) Classify(ctx context.Context, ip netip.Addr) (bool, error) {
	query := url.Values{}
	query.Set("ip", ip.String())
	query.Set("contact", g.email)

	body, err := g.get(ctx, g.baseURL+"?"+query.Encode(), nil)
	if err != nil {
		return false, err
	}

	text := strings.TrimSpace(string(body))
	score, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return false, fmt.Errorf("%s: unexpected answer %q", GetIPIntelName, text)
	}
	if score < 0 || score > 1 {
		return false, fmt.Errorf("%s: error code %s", GetIPIntelName, text)
	}
	return score >= g.threshold, nil
}
