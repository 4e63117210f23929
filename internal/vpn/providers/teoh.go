package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/jxsl13/TeeworldsDiscordBot/internal/vpn"
)

const (
	TeohName     = "teoh"
	teohURL      = "https://ip.teoh.io/api/vpn/"
	teohCooldown = 5 * time.Minute
)

type TeohOptions struct {
	BaseURL string
	Client  *http.Client
	Timeout time.Duration
}

// Teoh flags hosting ranges and known VPN or proxy exits. The service
// answers with a text/plain content type, so the body is decoded directly.
type Teoh struct {
	apiClient
	baseURL string
}

var _ vpn.Provider = (*Teoh)(nil)

// flexInt accepts 1 as well as "1".
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(bytes.TrimSpace(data), `"`)
	if len(data) == 0 {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(string(data))
	if err != nil {
		return fmt.Errorf("not an integer: %q", data)
	}
	*f = flexInt(n)
	return nil
}

type teohResponse struct {
	IsHosting  *flexInt `json:"is_hosting"`
	VPNOrProxy string   `json:"vpn_or_proxy"`
}

func NewTeoh(opts TeohOptions) *Teoh {
	if opts.BaseURL == "" {
		opts.BaseURL = teohURL
	}
	return &Teoh{
		apiClient: apiClient{
			name:            TeohName,
			http:            httpClientOr(opts.Client, opts.Timeout),
			cooldown:        vpn.NewCooldown(TeohName, nil),
			defaultCooldown: teohCooldown,
		},
		baseURL: strings.TrimSuffix(opts.BaseURL, "/") + "/",
	}
}

func (t *Teoh) Name() string { return TeohName }

func (t *Teoh) Classify(ctx context.Context, ip netip.Addr) (bool, error) {
	body, err := t.get(ctx, t.baseURL+ip.String(), nil)
	if err != nil {
		return false, err
	}

	var payload teohResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return false, fmt.Errorf("%s: decode response: %w", TeohName, err)
	}
	if payload.IsHosting == nil && payload.VPNOrProxy == "" {
		return false, fmt.Errorf("%s: response without verdict fields", TeohName)
	}

	isHosting := payload.IsHosting != nil && *payload.IsHosting == 1
	return isHosting || strings.EqualFold(payload.VPNOrProxy, "yes"), nil
}
