package geo

import (
	"fmt"
	"net"

	"github.com/oschwald/maxminddb-golang"
)

// MaxMindResolver resolves client IPs to ISO country codes using a
// MaxMind GeoLite2 database.
type MaxMindResolver struct {
	reader *maxminddb.Reader
}

// NewMaxMindResolver opens the GeoIP database at dbPath.
func NewMaxMindResolver(dbPath string) (*MaxMindResolver, error) {
	reader, err := maxminddb.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open GeoIP database: %w", err)
	}
	return &MaxMindResolver{reader: reader}, nil
}

// Country returns the ISO country code for an IP address.
func (r *MaxMindResolver) Country(ip string) (string, error) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return "", fmt.Errorf("invalid IP address: %s", ip)
	}

	var record struct {
		Country struct {
			ISOCode string `maxminddb:"iso_code"`
		} `maxminddb:"country"`
	}
	if err := r.reader.Lookup(parsed, &record); err != nil {
		return "", err
	}
	return record.Country.ISOCode, nil
}

// Close closes the GeoIP database.
func (r *MaxMindResolver) Close() error {
	if r.reader != nil {
		return r.reader.Close()
	}
	return nil
}
