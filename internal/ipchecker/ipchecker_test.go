package ipchecker

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRequestAllowed(t *testing.T) {
	checker, err := New("192.168.1.0/24")
	require.NoError(t, err)

	testCases := []struct {
		name     string
		realIP   string
		expected bool
	}{
		{"inside subnet", "192.168.1.17", true},
		{"outside subnet", "10.0.0.1", false},
		{"garbage header", "not-an-ip", false},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			request := httptest.NewRequest("GET", "/api/internal/stats", nil)
			request.Header.Set("X-Real-IP", testCase.realIP)

			assert.Equal(t, testCase.expected, checker.IsRequestAllowed(request))
		})
	}
}

func TestIsRequestAllowedFallsBackToRemoteAddr(t *testing.T) {
	checker, err := New("192.168.1.0/24")
	require.NoError(t, err)

	request := httptest.NewRequest("GET", "/api/internal/stats", nil)
	request.RemoteAddr = "192.168.1.5:54321"

	assert.True(t, checker.IsRequestAllowed(request))
}

func TestDisabledCheckerDeniesEverything(t *testing.T) {
	checker, err := New("")
	require.NoError(t, err)

	request := httptest.NewRequest("GET", "/api/internal/stats", nil)
	request.Header.Set("X-Real-IP", "192.168.1.17")

	assert.False(t, checker.IsRequestAllowed(request))
}

func TestNewRejectsBrokenCIDR(t *testing.T) {
	_, err := New("definitely not a CIDR")
	assert.Error(t, err)
}
