package dns

import (
	"context"
	"net"
	"strings"
	"time"
)

// Resolver is satisfied by *net.Resolver.
type Resolver interface {
	LookupCNAME(ctx context.Context, host string) (string, error)
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// CheckResult describes where a domain currently points.
type CheckResult struct {
	Domain    string
	CNAME     string
	Addresses []string
	Target    string
	Verified  bool
	Err       error
}

type Checker struct {
	resolver Resolver
	timeout  time.Duration
}

// NewChecker uses net.DefaultResolver when resolver is nil.
func NewChecker(resolver Resolver) *Checker {
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	return &Checker{resolver: resolver, timeout: 5 * time.Second}
}

// Check reports whether domain points at target, either by CNAME or by
// resolving to the same addresses (flattened or proxied records).
func (c *Checker) Check(ctx context.Context, domain, target string) *CheckResult {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	result := &CheckResult{Domain: domain, Target: target}

	cname, err := c.resolver.LookupCNAME(ctx, domain)
	if err == nil {
		cname = trimDot(cname)
		if !strings.EqualFold(cname, trimDot(domain)) {
			result.CNAME = cname
		}
	}

	addrs, err := c.resolver.LookupHost(ctx, domain)
	if err != nil {
		result.Err = err
		if result.CNAME == "" {
			return result
		}
	}
	result.Addresses = addrs

	if target == "" {
		return result
	}
	if strings.EqualFold(result.CNAME, trimDot(target)) {
		result.Verified = true
		return result
	}

	targetAddrs, err := c.resolver.LookupHost(ctx, target)
	if err != nil {
		return result
	}
	result.Verified = intersects(addrs, targetAddrs)
	return result
}

func intersects(a, b []string) bool {
	set := make(map[string]struct{}, len(a))
	for _, v := range a {
		set[v] = struct{}{}
	}
	for _, v := range b {
		if _, ok := set[v]; ok {
			return true
		}
	}
	return false
}

func trimDot(s string) string {
	return strings.TrimSuffix(strings.ToLower(s), ".")
}
