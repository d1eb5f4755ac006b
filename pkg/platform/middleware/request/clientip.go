package request

import (
	"net"
	"net/http"
	"net/netip"
)

const (
	ipv4NetworkBits = 24
	ipv6NetworkBits = 48
)

// AnonymizeIP reduces an address to its network in CIDR form, so access logs
// never hold a host identifier. IPv4-mapped IPv6 addresses count as IPv4.
func AnonymizeIP(ip string) string {
	if ip == "" {
		return "unknown"
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return "invalid"
	}
	addr = addr.Unmap().WithZone("")
	bits := ipv6NetworkBits
	if addr.Is4() {
		bits = ipv4NetworkBits
	}
	prefix, err := addr.Prefix(bits)
	if err != nil {
		return "invalid"
	}
	return prefix.String()
}

// clientNetwork anonymizes the peer address. Forwarding headers are ignored.
func clientNetwork(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return AnonymizeIP(host)
}
