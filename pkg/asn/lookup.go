package asn

import (
	"bufio"
	"io"
	"net"
	"os"
	"sort"
	"strconv"

	"github.com/Ames-Laboratory-Cyber-Group/Cydime/util"
	"github.com/oschwald/geoip2-golang"
)

// Chain consults each Lookuper in turn until one resolves the address
type Chain []Lookuper

// Lookup implements Lookuper
func (c Chain) Lookup(ip uint32) (Range, bool) {
	for _, l := range c {
		if l == nil {
			continue
		}
		if r, ok := l.Lookup(ip); ok {
			return r, true
		}
	}
	return Range{}, false
}

// GeoIPLookuper resolves addresses against a MaxMind GeoLite2-ASN database.
// The returned Range only covers the queried address.
type GeoIPLookuper struct {
	reader *geoip2.Reader
}

// OpenGeoIP opens a GeoLite2-ASN mmdb file
func OpenGeoIP(path string) (*GeoIPLookuper, error) {
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, err
	}
	return &GeoIPLookuper{reader: reader}, nil
}

// Lookup implements Lookuper
func (g *GeoIPLookuper) Lookup(ip uint32) (Range, bool) {
	addr := net.ParseIP(util.Uint32ToIPv4(ip))
	record, err := g.reader.ASN(addr)
	if err != nil || record.AutonomousSystemNumber == 0 {
		return Range{}, false
	}
	return Range{
		Low:    ip,
		High:   ip,
		Number: uint32(record.AutonomousSystemNumber),
		Name:   record.AutonomousSystemOrganization,
	}, true
}

// Close releases the mmdb file
func (g *GeoIPLookuper) Close() error {
	return g.reader.Close()
}

// LoadIndex parses and builds an Index from a range file on disk
func LoadIndex(path string, policy OverlapPolicy) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := ParseRows(f)
	if err != nil {
		return nil, err
	}
	return Build(rows, policy)
}

// Map writes one ip,asNumber,asName line per distinct address, or ip,NA,NA
// when the address is not covered. Lines are ordered by address.
func Map(l Lookuper, ips []uint32, w io.Writer) error {
	results := batchLookup(l, ips)

	keys := make([]uint32, 0, len(results))
	for ip := range results {
		keys = append(keys, ip)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	out := bufio.NewWriter(w)
	for _, ip := range keys {
		out.WriteString(util.Uint32ToIPv4(ip))
		if r := results[ip]; r != nil {
			out.WriteString(",")
			out.WriteString(strconv.FormatUint(uint64(r.Number), 10))
			out.WriteString(",")
			out.WriteString(r.Name)
		} else {
			out.WriteString(",NA,NA")
		}
		if _, err := out.WriteString("\n"); err != nil {
			return err
		}
	}
	return out.Flush()
}
