package middleware

import (
	"fmt"
	"net"
	"strings"

	"github.com/labstack/echo/v4"
)

// ClientIP builds the extractor behind c.RealIP(). With no trusted proxies
// the socket peer is the client and forwarding headers are ignored. Entries
// are single IPs or CIDR ranges; X-Forwarded-For is honoured only when the
// peer falls inside one of them.
func ClientIP(trustedProxies []string) (echo.IPExtractor, error) {
	opts := []echo.TrustOption{
		echo.TrustLoopback(false),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(false),
	}
	for _, raw := range trustedProxies {
		entry := strings.TrimSpace(raw)
		if entry == "" {
			continue
		}
		ipNet, err := parseTrustedProxy(entry)
		if err != nil {
			return nil, err
		}
		opts = append(opts, echo.TrustIPRange(ipNet))
	}
	if len(opts) == 3 {
		return echo.ExtractIPDirect(), nil
	}
	return echo.ExtractIPFromXFFHeader(opts...), nil
}

func parseTrustedProxy(entry string) (*net.IPNet, error) {
	if strings.Contains(entry, "/") {
		_, cidr, err := net.ParseCIDR(entry)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", entry, err)
		}
		return cidr, nil
	}
	ip := net.ParseIP(entry)
	if ip == nil {
		return nil, fmt.Errorf("trusted proxy %q: not an IP address", entry)
	}
	bits := 32
	if ip.To4() == nil {
		bits = 128
	}
	return &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)}, nil
}
