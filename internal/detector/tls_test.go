package detector

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"math/big"
	"slices"
	"testing"
	"time"

	"github.com/nao1215/sitescan/internal/model"
)

var testNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func selfSignedCert(t *testing.T, notBefore, notAfter time.Time) *x509.Certificate {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(42),
		Subject:      pkix.Name{CommonName: "example.test"},
		DNSNames:     []string{"example.test"},
		NotBefore:    notBefore,
		NotAfter:     notAfter,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatal(err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatal(err)
	}
	return cert
}

func TestTLSDetector(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		notBefore time.Time
		notAfter  time.Time
		version   uint16
		verified  bool
		want      []string
	}{
		{
			name:      "healthy verified certificate",
			notBefore: testNow.AddDate(0, -1, 0),
			notAfter:  testNow.AddDate(1, 0, 0),
			version:   tls.VersionTLS13,
			verified:  true,
			want:      []string{},
		},
		{
			name:      "expired certificate",
			notBefore: testNow.AddDate(-1, 0, 0),
			notAfter:  testNow.AddDate(0, 0, -3),
			version:   tls.VersionTLS12,
			verified:  true,
			want:      []string{"tls_expired"},
		},
		{
			name:      "expiring certificate",
			notBefore: testNow.AddDate(0, -6, 0),
			notAfter:  testNow.AddDate(0, 0, 10),
			version:   tls.VersionTLS13,
			verified:  true,
			want:      []string{"tls_expiring"},
		},
		{
			name:      "old protocol",
			notBefore: testNow.AddDate(0, -1, 0),
			notAfter:  testNow.AddDate(1, 0, 0),
			version:   tls.VersionTLS10,
			verified:  true,
			want:      []string{"tls_weak_version"},
		},
		{
			name:      "self-signed without verification",
			notBefore: testNow.AddDate(0, -1, 0),
			notAfter:  testNow.AddDate(1, 0, 0),
			version:   tls.VersionTLS13,
			want:      []string{"tls_invalid"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cert := selfSignedCert(t, tt.notBefore, tt.notAfter)
			result := newResult("https://example.test/login", 200, "text/html", "<html></html>")
			result.TLS = &tls.ConnectionState{
				Version:          tt.version,
				PeerCertificates: []*x509.Certificate{cert},
			}
			if tt.verified {
				result.TLS.VerifiedChains = [][]*x509.Certificate{{cert}}
			}

			d := NewTLSDetector()
			d.now = func() time.Time { return testNow }
			findings, err := d.Inspect(context.Background(), result)
			if err != nil {
				t.Fatal(err)
			}
			got := findingTypes(findings)
			if !slices.Equal(got, tt.want) {
				t.Errorf("types = %v, want %v", got, tt.want)
			}
			for _, f := range findings {
				if f.URL != "https://example.test" {
					t.Errorf("URL = %q, want the origin", f.URL)
				}
				if f.Category != model.CategoryTransport {
					t.Errorf("Category = %q", f.Category)
				}
			}
		})
	}
}

func TestTLSDetectorHandshakeFailure(t *testing.T) {
	t.Parallel()

	d := NewTLSDetector()
	if !d.InspectsFailures() {
		t.Fatal("tls detector must inspect failures")
	}

	result := &model.FetchResult{
		URL:      "https://expired.example.test/",
		FinalURL: "https://expired.example.test/",
		Err: &model.FetchError{
			Kind: model.FetchErrorTLS,
			URL:  "https://expired.example.test/",
			Err:  &tls.CertificateVerificationError{Err: errors.New("x509: certificate signed by unknown authority")},
		},
	}
	findings, err := d.Inspect(context.Background(), result)
	if err != nil {
		t.Fatal(err)
	}
	if len(findings) != 1 || findings[0].Type != "tls_invalid" {
		t.Fatalf("findings = %+v", findings)
	}
	if findings[0].Evidence != "x509: certificate signed by unknown authority" {
		t.Errorf("Evidence = %q", findings[0].Evidence)
	}
}

func TestTLSDetectorIgnoresPlainHTTP(t *testing.T) {
	t.Parallel()

	findings, err := NewTLSDetector().Inspect(context.Background(), newResult("http://example.test/", 200, "text/html", ""))
	if err != nil {
		t.Fatal(err)
	}
	if len(findings) != 0 {
		t.Errorf("unexpected findings: %+v", findings)
	}
}
