package fetcher

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io"
	"net"
	"syscall"

	"github.com/nao1215/sitescan/internal/model"
)

// classify maps a transport error to a FetchError kind.
func classify(rawURL string, err error) *model.FetchError {
	return &model.FetchError{Kind: kindOf(err), URL: rawURL, Err: err}
}

func kindOf(err error) model.FetchErrorKind {
	var (
		dnsErr      *net.DNSError
		netErr      net.Error
		certErr     *tls.CertificateVerificationError
		unknownCA   x509.UnknownAuthorityError
		hostnameErr x509.HostnameError
		invalidErr  x509.CertificateInvalidError
		recordErr   tls.RecordHeaderError
		alertErr    tls.AlertError
	)

	switch {
	case errors.As(err, &dnsErr):
		if dnsErr.IsTimeout {
			return model.FetchErrorTimeout
		}
		return model.FetchErrorDNS
	case errors.Is(err, context.DeadlineExceeded):
		return model.FetchErrorTimeout
	case errors.Is(err, syscall.ECONNREFUSED):
		return model.FetchErrorConnectionRefused
	case errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.EPIPE),
		errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
		return model.FetchErrorConnectionReset
	case errors.As(err, &certErr), errors.As(err, &unknownCA), errors.As(err, &hostnameErr),
		errors.As(err, &invalidErr), errors.As(err, &recordErr), errors.As(err, &alertErr):
		return model.FetchErrorTLS
	case errors.As(err, &netErr) && netErr.Timeout():
		return model.FetchErrorTimeout
	default:
		return model.FetchErrorOther
	}
}
