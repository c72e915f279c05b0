package detector

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/url"
	"time"

	"golang.org/x/crypto/ocsp"

	"github.com/nao1215/sitescan/internal/model"
)

// expiryWarning is how far ahead an upcoming certificate expiry is reported.
const expiryWarning = 30 * 24 * time.Hour

// TLSDetector checks the certificate and protocol of HTTPS responses.
//
// Findings are reported against the origin, not the page, so a site with a
// bad certificate yields one finding per problem after deduplication.
type TLSDetector struct {
	now func() time.Time
}

// NewTLSDetector creates a TLSDetector.
func NewTLSDetector() *TLSDetector {
	return &TLSDetector{now: time.Now}
}

// Name returns the detector name.
func (d *TLSDetector) Name() string {
	return "tls"
}

// Category returns the detector category.
func (d *TLSDetector) Category() string {
	return model.CategoryTransport
}

// InspectsFailures reports that TLS handshake failures are inspected too.
func (d *TLSDetector) InspectsFailures() bool {
	return true
}

// Inspect checks validity, expiry, protocol version and stapled OCSP status.
func (d *TLSDetector) Inspect(_ context.Context, result *model.FetchResult) ([]model.Finding, error) {
	origin := result.Origin()

	if result.Err != nil && result.Err.Kind == model.FetchErrorTLS {
		return []model.Finding{
			d.finding("tls_invalid", origin, "TLS handshake failed", tlsReason(result.Err)),
		}, nil
	}

	state := result.TLS
	if state == nil || len(state.PeerCertificates) == 0 {
		return nil, nil
	}
	leaf := state.PeerCertificates[0]
	now := d.now()

	findings := make([]model.Finding, 0)
	switch {
	case now.After(leaf.NotAfter):
		findings = append(findings, d.finding("tls_expired", origin, "TLS certificate expired",
			fmt.Sprintf("%s expired on %s", subject(leaf), leaf.NotAfter.UTC().Format(time.DateOnly))))
	case now.Before(leaf.NotBefore):
		findings = append(findings, d.finding("tls_invalid", origin, "TLS certificate not yet valid",
			fmt.Sprintf("%s valid from %s", subject(leaf), leaf.NotBefore.UTC().Format(time.DateOnly))))
	case leaf.NotAfter.Sub(now) < expiryWarning:
		days := int(leaf.NotAfter.Sub(now).Hours() / 24)
		findings = append(findings, d.finding("tls_expiring", origin, "TLS certificate expires soon",
			fmt.Sprintf("%s expires on %s (%d days)", subject(leaf), leaf.NotAfter.UTC().Format(time.DateOnly), days)))
	}

	if state.Version < tls.VersionTLS12 {
		findings = append(findings, d.finding("tls_weak_version", origin, "Outdated TLS version negotiated",
			"negotiated "+tls.VersionName(state.Version)))
	}

	if err := d.verify(state, hostname(result.FinalURL), now); err != nil {
		findings = append(findings, d.finding("tls_invalid", origin, "TLS certificate not trusted", err.Error()))
	}

	if len(state.OCSPResponse) > 0 {
		var issuer *x509.Certificate
		if len(state.PeerCertificates) > 1 {
			issuer = state.PeerCertificates[1]
		}
		resp, err := ocsp.ParseResponseForCert(state.OCSPResponse, leaf, issuer)
		if err == nil && resp.Status == ocsp.Revoked {
			findings = append(findings, d.finding("tls_revoked", origin, "TLS certificate revoked",
				fmt.Sprintf("%s revoked on %s (stapled OCSP)", subject(leaf), resp.RevokedAt.UTC().Format(time.DateOnly))))
		}
	}

	return findings, nil
}

// verify checks the chain and host name the way a browser would. The
// fetcher usually runs without verification, so problems surface here.
func (d *TLSDetector) verify(state *tls.ConnectionState, host string, now time.Time) error {
	if len(state.VerifiedChains) > 0 {
		return nil
	}
	leaf := state.PeerCertificates[0]
	intermediates := x509.NewCertPool()
	for _, c := range state.PeerCertificates[1:] {
		intermediates.AddCert(c)
	}
	_, err := leaf.Verify(x509.VerifyOptions{
		DNSName:       host,
		Intermediates: intermediates,
		CurrentTime:   now,
	})
	var invalid x509.CertificateInvalidError
	if errors.As(err, &invalid) && invalid.Reason == x509.Expired {
		// Expiry is reported on its own.
		return nil
	}
	return err
}

func (d *TLSDetector) finding(findingType, origin, title, evidence string) model.Finding {
	info := model.GetFindingInfo(findingType)
	return model.NewFinding(findingType, model.CategoryTransport, origin, title, info.Impact, evidence)
}

func tlsReason(err *model.FetchError) string {
	if err.Err == nil {
		return string(err.Kind)
	}
	var verifyErr *tls.CertificateVerificationError
	if errors.As(err.Err, &verifyErr) {
		return snippet(verifyErr.Err.Error(), 160)
	}
	return snippet(err.Err.Error(), 160)
}

func subject(cert *x509.Certificate) string {
	if cert.Subject.CommonName != "" {
		return "certificate for " + cert.Subject.CommonName
	}
	if len(cert.DNSNames) > 0 {
		return "certificate for " + cert.DNSNames[0]
	}
	return "certificate"
}

func hostname(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

var (
	_ Detector         = (*TLSDetector)(nil)
	_ FailureInspector = (*TLSDetector)(nil)
)
