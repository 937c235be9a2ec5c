package middleware

import (
	"log/slog"
	"net"

	"github.com/labstack/echo/v4"
)

// DefaultTrustedProxies covers loopback, Docker bridges and private LANs.
var DefaultTrustedProxies = []string{
	"127.0.0.0/8",
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"fd00::/8",
}

// TrustedProxies makes c.RealIP() honor X-Forwarded-For only when the
// direct peer is inside one of cidrs. Rate limiting keys off RealIP, so an
// untrusted client must not be able to pick its own address.
func TrustedProxies(e *echo.Echo, cidrs []string) {
	opts := []echo.TrustOption{
		echo.TrustLoopback(false),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(false),
	}
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			slog.Warn("ignoring invalid trusted proxy CIDR", slog.String("cidr", cidr))
			continue
		}
		opts = append(opts, echo.TrustIPRange(network))
	}
	e.IPExtractor = echo.ExtractIPFromXFFHeader(opts...)
}
