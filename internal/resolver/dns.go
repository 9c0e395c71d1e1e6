package resolver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strings"
	"time"

	"github.com/miekg/dns"
	"github.com/yourusername/nsgwatch/internal/logger"
	"github.com/yourusername/nsgwatch/internal/models"
)

const defaultResolvConf = "/etc/resolv.conf"

// ipv4Pattern matches IPv4 addresses with an optional prefix length
var ipv4Pattern = regexp.MustCompile(`(?:\d{1,3}\.){3}\d{1,3}(?:/\d\d?)?`)

// FailureKind classifies why a TXT lookup produced no records
type FailureKind int

const (
	// FailureNotFound means the domain does not exist (NXDOMAIN)
	FailureNotFound FailureKind = iota + 1
	// FailureNoAnswer means the domain exists but holds no TXT records
	FailureNoAnswer
	// FailureTimeout means every nameserver timed out
	FailureTimeout
	// FailureNoNameservers means no nameserver could answer the query
	FailureNoNameservers
)

// String returns the string representation of the failure kind
func (k FailureKind) String() string {
	switch k {
	case FailureNotFound:
		return "not-found"
	case FailureNoAnswer:
		return "no-answer"
	case FailureTimeout:
		return "timeout"
	case FailureNoNameservers:
		return "no-nameservers"
	default:
		return "unknown"
	}
}

// LookupError is returned by TXTLookup implementations when a domain yields
// no records
type LookupError struct {
	Domain string
	Kind   FailureKind
	Err    error
}

func (e *LookupError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("txt lookup %s: %s: %v", e.Domain, e.Kind, e.Err)
	}
	return fmt.Sprintf("txt lookup %s: %s", e.Domain, e.Kind)
}

func (e *LookupError) Unwrap() error {
	return e.Err
}

// TXTLookup returns the TXT strings published for a domain. The chunks of a
// single record are joined.
type TXTLookup interface {
	LookupTXT(ctx context.Context, domain string) ([]string, error)
}

// DNSClient performs TXT lookups with github.com/miekg/dns, trying each
// configured nameserver in turn
type DNSClient struct {
	udp     *dns.Client
	tcp     *dns.Client
	servers []string
}

// NewDNSClient creates a client for the given "host:port" nameservers. With no
// servers, the system resolver configuration is used.
func NewDNSClient(servers []string, timeout time.Duration) (*DNSClient, error) {
	if len(servers) == 0 {
		conf, err := dns.ClientConfigFromFile(defaultResolvConf)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", defaultResolvConf, err)
		}
		for _, s := range conf.Servers {
			servers = append(servers, net.JoinHostPort(s, conf.Port))
		}
	}
	if len(servers) == 0 {
		return nil, errors.New("no nameservers configured")
	}

	return &DNSClient{
		udp:     &dns.Client{Net: "udp", Timeout: timeout},
		tcp:     &dns.Client{Net: "tcp", Timeout: timeout},
		servers: servers,
	}, nil
}

// LookupTXT implements TXTLookup
func (c *DNSClient) LookupTXT(ctx context.Context, domain string) ([]string, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(domain), dns.TypeTXT)
	m.RecursionDesired = true
	m.SetEdns0(4096, false)

	allTimeouts := true
	var lastErr error

	for _, server := range c.servers {
		resp, _, err := c.udp.ExchangeContext(ctx, m, server)
		if err == nil && resp != nil && resp.Truncated {
			resp, _, err = c.tcp.ExchangeContext(ctx, m, server)
		}
		if err != nil {
			var netErr net.Error
			if !(errors.As(err, &netErr) && netErr.Timeout()) && !errors.Is(err, context.DeadlineExceeded) {
				allTimeouts = false
			}
			lastErr = fmt.Errorf("%s: %w", server, err)
			continue
		}

		switch resp.Rcode {
		case dns.RcodeSuccess:
			var records []string
			for _, ans := range resp.Answer {
				if txt, ok := ans.(*dns.TXT); ok {
					records = append(records, strings.Join(txt.Txt, ""))
				}
			}
			if len(records) == 0 {
				return nil, &LookupError{Domain: domain, Kind: FailureNoAnswer}
			}
			return records, nil
		case dns.RcodeNameError:
			return nil, &LookupError{Domain: domain, Kind: FailureNotFound}
		default:
			allTimeouts = false
			lastErr = fmt.Errorf("%s answered %s", server, dns.RcodeToString[resp.Rcode])
		}
	}

	if allTimeouts {
		return nil, &LookupError{Domain: domain, Kind: FailureTimeout, Err: lastErr}
	}
	return nil, &LookupError{Domain: domain, Kind: FailureNoNameservers, Err: lastErr}
}

// DNSResolver collects IPv4 ranges from the TXT records of a list of domains
type DNSResolver struct {
	lookup  TXTLookup
	domains []string
	logger  *logger.Logger
}

// NewDNSResolver creates a resolver over the given domains
func NewDNSResolver(lookup TXTLookup, domains []string, log *logger.Logger) *DNSResolver {
	if log == nil {
		log = logger.DefaultLogger
	}
	return &DNSResolver{
		lookup:  lookup,
		domains: domains,
		logger:  log,
	}
}

// Resolve looks up each domain in order and unions the ranges found. A failed
// domain is logged and contributes nothing; Resolve itself never fails.
func (r *DNSResolver) Resolve(ctx context.Context) (models.CIDRSet, error) {
	result := models.NewCIDRSet()

	for _, domain := range r.domains {
		r.logger.Info("Performing DNS lookup for %s", domain)

		records, err := r.lookup.LookupTXT(ctx, domain)
		if err != nil {
			r.logFailure(domain, err)
			continue
		}

		for _, record := range records {
			result.AddAll(ExtractIPv4(record)...)
		}
		r.logger.Info("Successfully performed DNS lookup for %s", domain)
	}

	r.logger.Debug("DNS IPv4 ranges found: %v", result.Sorted())
	return result, nil
}

func (r *DNSResolver) logFailure(domain string, err error) {
	kind := FailureNoNameservers
	var lookupErr *LookupError
	if errors.As(err, &lookupErr) {
		kind = lookupErr.Kind
	}

	log := r.logger.WithFields(map[string]interface{}{
		"domain":  domain,
		"failure": kind.String(),
	})
	if kind == FailureNoNameservers {
		log.Warn("No nameserver to resolve %s: %v", domain, err)
		return
	}
	log.Error("Unable to resolve %s: %v", domain, err)
}

// ExtractIPv4 returns every IPv4-shaped token, with optional prefix length,
// found in s
func ExtractIPv4(s string) []string {
	return ipv4Pattern.FindAllString(s, -1)
}
