package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"strings"

	"github.com/google/uuid"
	"github.com/yourusername/nsgwatch/internal/logger"
	"github.com/yourusername/nsgwatch/internal/models"
)

// HTTPDoer is the subset of *http.Client used by the published-list resolver
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// PortList holds the TCP ports of a service-area record. The feed encodes
// them either as a comma separated string or as a list.
type PortList []string

// UnmarshalJSON accepts "25,587", ["25","587"] and [25,587]
func (p *PortList) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*p = splitPorts(s)
		return nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("tcpPorts must be a string or a list: %w", err)
	}

	ports := make(PortList, 0, len(raw))
	for _, item := range raw {
		var str string
		if err := json.Unmarshal(item, &str); err == nil {
			ports = append(ports, splitPorts(str)...)
			continue
		}
		var n json.Number
		if err := json.Unmarshal(item, &n); err != nil {
			return fmt.Errorf("invalid port entry %s", string(item))
		}
		ports = append(ports, n.String())
	}
	*p = ports
	return nil
}

// Contains reports whether port is one of the listed tokens
func (p PortList) Contains(port string) bool {
	for _, candidate := range p {
		if candidate == port {
			return true
		}
	}
	return false
}

func splitPorts(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ServiceArea is one record of the published endpoint list
type ServiceArea struct {
	ID          int      `json:"id"`
	ServiceArea string   `json:"serviceArea"`
	URLs        []string `json:"urls"`
	IPs         []string `json:"ips"`
	TCPPorts    PortList `json:"tcpPorts"`
	Category    string   `json:"category"`
}

// PublishedListResolver reads a provider's JSON endpoint list and keeps the
// IPv4 ranges of records that serve the target host suffix on the target port
type PublishedListResolver struct {
	client     HTTPDoer
	baseURL    string
	hostSuffix string
	port       string
	token      func() string
	logger     *logger.Logger
}

// PublishedListOption configures a PublishedListResolver
type PublishedListOption func(*PublishedListResolver)

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(client HTTPDoer) PublishedListOption {
	return func(r *PublishedListResolver) {
		r.client = client
	}
}

// WithRequestToken replaces the generator of the per-request uniqueness token
func WithRequestToken(token func() string) PublishedListOption {
	return func(r *PublishedListResolver) {
		r.token = token
	}
}

// WithPublishedListLogger sets the logger
func WithPublishedListLogger(log *logger.Logger) PublishedListOption {
	return func(r *PublishedListResolver) {
		r.logger = log
	}
}

// NewPublishedListResolver creates a resolver for the list at baseURL. A fresh
// token is appended to baseURL on every request.
func NewPublishedListResolver(baseURL, hostSuffix, port string, opts ...PublishedListOption) *PublishedListResolver {
	r := &PublishedListResolver{
		client:     http.DefaultClient,
		baseURL:    baseURL,
		hostSuffix: strings.ToLower(hostSuffix),
		port:       port,
		token:      uuid.NewString,
		logger:     logger.DefaultLogger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve fetches the list and returns the matching IPv4 ranges. A non-2xx
// response or a transport failure yields an empty set; a malformed body is an
// error.
func (r *PublishedListResolver) Resolve(ctx context.Context) (models.CIDRSet, error) {
	result := models.NewCIDRSet()
	url := r.baseURL + r.token()

	r.logger.Info("Retrieving published IPv4 ranges from %s", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", url, err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Error("Request to %s failed, no published ranges retrieved: %v", r.baseURL, err)
		return result, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		r.logger.Error("%d returned by %s, no published ranges retrieved", resp.StatusCode, r.baseURL)
		_, _ = io.Copy(io.Discard, resp.Body)
		return result, nil
	}

	var areas []ServiceArea
	if err := json.NewDecoder(resp.Body).Decode(&areas); err != nil {
		return nil, fmt.Errorf("decoding published list: %w", err)
	}

	for _, area := range areas {
		if !r.matches(area) {
			continue
		}
		for _, cidr := range area.IPs {
			if isIPv4Prefix(cidr) {
				result.Add(cidr)
			}
		}
	}

	r.logger.Info("Successfully retrieved %d published IPv4 ranges", result.Len())
	r.logger.Debug("Published IPv4 ranges found: %v", result.Sorted())
	return result, nil
}

func (r *PublishedListResolver) matches(area ServiceArea) bool {
	if !area.TCPPorts.Contains(r.port) {
		return false
	}
	for _, host := range area.URLs {
		if strings.HasSuffix(strings.ToLower(host), r.hostSuffix) {
			return true
		}
	}
	return false
}

func isIPv4Prefix(cidr string) bool {
	if prefix, err := netip.ParsePrefix(cidr); err == nil {
		return prefix.Addr().Is4()
	}
	if addr, err := netip.ParseAddr(cidr); err == nil {
		return addr.Is4()
	}
	return false
}
