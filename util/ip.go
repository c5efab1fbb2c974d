package util

import (
	"encoding/binary"
	"fmt"
	"net"
	"net/netip"
	"strings"
)

// ParseSubnets parses the provided subnets into net.IPNet format. Bare
// addresses are treated as single host networks.
func ParseSubnets(subnets []string) ([]*net.IPNet, error) {
	var parsedSubnets []*net.IPNet

	for _, entry := range subnets {
		// Try to parse out CIDR range
		_, block, err := net.ParseCIDR(entry)

		// If there was an error, check if entry was an IP
		if err != nil {
			ipAddr := net.ParseIP(entry)
			if ipAddr == nil {
				return parsedSubnets, fmt.Errorf("error parsing entry %q: %w", entry, err)
			}

			// Check if it's an IPv4 or IPv6 address and append the appropriate subnet mask
			var subnetMask string
			if ipAddr.To4() != nil {
				subnetMask = "/32"
			} else {
				subnetMask = "/128"
			}

			// Append the subnet mask and parse as a CIDR range
			_, block, err = net.ParseCIDR(entry + subnetMask)
			if err != nil {
				return parsedSubnets, fmt.Errorf("error parsing CIDR entry %q: %w", entry, err)
			}
		}

		// Add CIDR range to the list
		parsedSubnets = append(parsedSubnets, block)
	}
	return parsedSubnets, nil
}

//ContainsIP checks if a collection of subnets contains an IP
func ContainsIP(subnets []*net.IPNet, ip net.IP) bool {
	// cache IPv4 conversion so it not performed every in every Contains call
	if ipv4 := ip.To4(); ipv4 != nil {
		ip = ipv4
	}

	for _, block := range subnets {
		if block.Contains(ip) {
			return true
		}
	}
	return false
}

// ParseIPv4 validates a dotted quad IPv4 address and returns its 32 bit
// integer form. IPv6 addresses, zoned addresses and leading zero octets are
// rejected.
func ParseIPv4(address string) (uint32, bool) {
	addr, err := netip.ParseAddr(address)
	if err != nil || !addr.Is4() {
		return 0, false
	}
	b := addr.As4()
	return binary.BigEndian.Uint32(b[:]), true
}

// IsIPv4 returns true if the string is a valid dotted quad IPv4 address
func IsIPv4(address string) bool {
	_, ok := ParseIPv4(address)
	return ok
}

// Uint32ToIPv4 renders the integer form of an IPv4 address in dotted quad form
func Uint32ToIPv4(ip uint32) string {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], ip)
	return netip.AddrFrom4(b).String()
}

// ReverseName builds the in-addr.arpa name used for PTR queries of an IPv4
// address. The returned name is fully qualified.
func ReverseName(address string) string {
	octets := strings.Split(address, ".")
	for i, j := 0, len(octets)-1; i < j; i, j = i+1, j-1 {
		octets[i], octets[j] = octets[j], octets[i]
	}
	return strings.Join(octets, ".") + ".in-addr.arpa."
}
