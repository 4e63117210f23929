package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/jxsl13/TeeworldsDiscordBot/internal/vpn"
)

const (
	IPHubName     = "iphub"
	iphubURL      = "http://v2.api.iphub.info/ip/"
	iphubPerDay   = 1000
	iphubBurst    = 20
	iphubCooldown = 10 * time.Minute
)

type IPHubOptions struct {
	Token   string
	BaseURL string
	Client  *http.Client
	Timeout time.Duration
}

// IPHub reads the block field: 1 is a proxy, 0 residential, 2 mixed.
type IPHub struct {
	apiClient
	token   string
	baseURL string
}

var _ vpn.Provider = (*IPHub)(nil)

type iphubResponse struct {
	Block *int `json:"block"`
}

func NewIPHub(opts IPHubOptions) (*IPHub, error) {
	token := strings.TrimSpace(opts.Token)
	if token == "" {
		return nil, fmt.Errorf("%s: token missing: %w", IPHubName, ErrNotConfigured)
	}
	if opts.BaseURL == "" {
		opts.BaseURL = iphubURL
	}

	limiter := rate.NewLimiter(rate.Every(24*time.Hour/iphubPerDay), iphubBurst)
	return &IPHub{
		apiClient: apiClient{
			name:            IPHubName,
			http:            httpClientOr(opts.Client, opts.Timeout),
			cooldown:        vpn.NewCooldown(IPHubName, limiter),
			defaultCooldown: iphubCooldown,
		},
		token:   token,
		baseURL: strings.TrimSuffix(opts.BaseURL, "/") + "/",
	}, nil
}

func (h *IPHub) Name() string { return IPHubName }

func (h *IPHub) Classify(ctx context.Context, ip netip.Addr) (bool, error) {
	header := http.Header{}
	header.Set("X-Key", h.token)

	body, err := h.get(ctx, h.baseURL+ip.String(), header)
	if err != nil {
		return false, err
	}

	var payload iphubResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return false, fmt.Errorf("%s: decode response: %w", IPHubName, err)
	}
	if payload.Block == nil {
		return false, fmt.Errorf("%s: response without block field", IPHubName)
	}

	switch *payload.Block {
	case 1:
		return true, nil
	case 0, 2:
		return false, nil
	default:
		return false, fmt.Errorf("%s: unknown block value %d", IPHubName, *payload.Block)
	}
}
