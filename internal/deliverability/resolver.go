package deliverability

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Resolver looks up TXT records.
type Resolver interface {
	LookupTXT(ctx context.Context, name string) ([]string, error)
}

// NetResolver queries DNS. A name that does not exist yields no records and no error,
// so a missing record is reported as missing rather than unverifiable.
type NetResolver struct {
	Resolver *net.Resolver
}

func (r NetResolver) LookupTXT(ctx context.Context, name string) ([]string, error) {
	res := r.Resolver
	if res == nil {
		res = net.DefaultResolver
	}
	records, err := res.LookupTXT(ctx, name)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("lookup TXT %s: %w", name, err)
	}
	return records, nil
}

// FixtureResolver answers from canned records. Names listed in Errors fail, and
// names listed in Panics panic, which lets tests exercise the check guard.
type FixtureResolver struct {
	Records map[string][]string
	Errors  map[string]error
	Panics  map[string]bool
}

func (f FixtureResolver) LookupTXT(_ context.Context, name string) ([]string, error) {
	name = strings.ToLower(strings.TrimSuffix(name, "."))
	if f.Panics[name] {
		panic(fmt.Sprintf("fixture resolver: %s", name))
	}
	if err, ok := f.Errors[name]; ok {
		return nil, err
	}
	return f.Records[name], nil
}

// HealthyFixture returns records for a domain with SPF, DKIM and an enforcing DMARC policy.
func HealthyFixture(domain, selector, spfInclude string) FixtureResolver {
	domain = strings.ToLower(domain)
	return FixtureResolver{Records: map[string][]string{
		domain: {
			"google-site-verification=abc123",
			fmt.Sprintf("v=spf1 include:%s ~all", spfInclude),
		},
		selector + "._domainkey." + domain: {"p=MIGfMA0GCSqGSIb3DQEBAQUAA4GNADCBiQKBgQC7"},
		"_dmarc." + domain:                  {"v=DMARC1; p=quarantine; rua=mailto:dmarc@" + domain},
	}}
}
