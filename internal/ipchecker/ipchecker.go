// Package ipchecker validates that a request originates from the trusted
// subnet. It guards the internal stats endpoint.
package ipchecker

import (
	"fmt"
	"net"
	"net/http"
	"strings"
)

// IPChecker extracts a client's IP address from an HTTP request and
// verifies whether it belongs to the configured trusted subnet.
type IPChecker struct {
	trustedSubnet *net.IPNet
}

// New creates an IPChecker for the given subnet in CIDR notation
// (e.g. "192.168.1.0/24"). An empty string produces a disabled checker
// that allows nothing.
func New(trustedSubnet string) (*IPChecker, error) {
	if trustedSubnet == "" {
		return &IPChecker{
			trustedSubnet: nil,
		}, nil
	}
	_, allowedNet, err := net.ParseCIDR(trustedSubnet)
	if err != nil {
		return nil, fmt.Errorf("in internal/ipchecker/ipchecker.go/New(): error while `net.ParseCIDR()` calling: %w", err)
	}
	return &IPChecker{
		trustedSubnet: allowedNet,
	}, nil
}

// IsRequestAllowed reports whether the request's client IP falls inside the
// trusted subnet. Requests are denied when no subnet is configured or the
// client IP cannot be determined.
func (checker *IPChecker) IsRequestAllowed(request *http.Request) bool {
	if checker.trustedSubnet == nil {
		return false
	}

	clientIP, err := checker.getClientIP(request)
	if err != nil || clientIP == nil {
		return false
	}

	return checker.trustedSubnet.Contains(clientIP)
}

// getClientIP checks, in order: the "X-Real-IP" header, the first entry of
// "X-Forwarded-For", and finally the request's RemoteAddr field.
func (checker *IPChecker) getClientIP(request *http.Request) (net.IP, error) {
	ipStr := request.Header.Get("X-Real-IP")
	ip := net.ParseIP(ipStr)
	if ip != nil {
		return ip, nil
	}
	if xff := request.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		return net.ParseIP(strings.TrimSpace(ips[0])), nil
	}
	host, _, err := net.SplitHostPort(request.RemoteAddr)
	if err != nil {
		return nil, fmt.Errorf("in internal/ipchecker/ipchecker.go/getClientIP(): error while `net.SplitHostPort()` calling: %w", err)
	}
	return net.ParseIP(host), nil
}
