package geoip

import (
	"errors"
	"net"
	"testing"

	"github.com/oschwald/geoip2-golang"
)

type fakeReader struct {
	codes map[string]string
	calls int
}

func (f *fakeReader) Country(ip net.IP) (*geoip2.Country, error) {
	f.calls++
	code, ok := f.codes[ip.String()]
	if !ok {
		return nil, errors.New("not in database")
	}
	rec := &geoip2.Country{}
	rec.Country.IsoCode = code
	return rec, nil
}

func (f *fakeReader) Close() error { return nil }

func TestCountryCodeCaches(t *testing.T) {
	fake := &fakeReader{codes: map[string]string{"203.0.113.4": "ID"}}
	r := newResolver(fake)

	for i := 0; i < 3; i++ {
		code, err := r.CountryCode("203.0.113.4")
		if err != nil || code != "ID" {
			t.Fatalf("CountryCode = %q, %v", code, err)
		}
	}
	if fake.calls != 1 {
		t.Fatalf("reader called %d times", fake.calls)
	}
}

func TestCountryCodeErrors(t *testing.T) {
	r := newResolver(&fakeReader{})
	if _, err := r.CountryCode("not-an-ip"); err == nil {
		t.Fatalf("expected invalid ip error")
	}
	if _, err := r.CountryCode("198.51.100.1"); err == nil {
		t.Fatalf("expected lookup error")
	}

	var nilResolver *Resolver
	if _, err := nilResolver.CountryCode("198.51.100.1"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if nilResolver.Lookup() != nil {
		t.Fatalf("nil resolver should not provide a lookup")
	}
}

func TestOpenEmptyPath(t *testing.T) {
	r, err := Open("  ")
	if err != nil || r != nil {
		t.Fatalf("Open(empty) = %v, %v", r, err)
	}
}
