// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package poc

import (
	"net"
	"strings"
)

var privateNets = func() []*net.IPNet {
	cidrs := []string{"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"}
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			panic(err)
		}
		nets = append(nets, n)
	}
	return nets
}()

// parseHost strips an optional port and IPv6 brackets from addr and parses
// the remaining host as an IP address.
func parseHost(addr string) net.IP {
	host, _, err := net.SplitHostPort(addr)
	if err == nil && host != "" {
		addr = host
	} else {
		addr = strings.Trim(addr, "[]")
	}
	return net.ParseIP(addr)
}

// IsExternalIP reports whether addr, an IP address optionally with a port, is
// outside the RFC1918 private ranges. Any parseable address that is not in
// 10.0.0.0/8, 172.16.0.0/12 or 192.168.0.0/16 counts as externally routable.
// Strings that do not parse as an IP address are never external.
func IsExternalIP(addr string) bool {
	ip := parseHost(addr)
	if ip == nil {
		return false
	}
	for _, n := range privateNets {
		if n.Contains(ip) {
			return false
		}
	}
	return true
}
