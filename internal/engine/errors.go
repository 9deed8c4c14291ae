package engine

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"

	docerrors "github.com/Aman-CERP/docindex/internal/errors"
)

// Classify maps a transport error from op to a structured error:
// deadline → ERR_301, connection failure → ERR_302, anything else keeps
// the supplied fallback code.
func Classify(op string, err error, fallback string) error {
	if err == nil {
		return nil
	}
	if _, ok := docerrors.As(err); ok {
		return err
	}

	msg := fmt.Sprintf("%s failed", op)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return docerrors.New(docerrors.ErrCodeNetworkTimeout, msg+": request timed out", err)
	case errors.Is(err, context.Canceled):
		return docerrors.New(fallback, msg+": cancelled", err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return docerrors.New(docerrors.ErrCodeNetworkTimeout, msg+": request timed out", err)
	}
	var opErr *net.OpError
	var urlErr *url.Error
	if errors.As(err, &opErr) || errors.As(err, &urlErr) {
		return docerrors.New(docerrors.ErrCodeNetworkUnavailable, msg+": search engine unreachable", err).
			WithSuggestion("check SEARCH_ENDPOINT and that the cluster is up")
	}

	return docerrors.New(fallback, msg, err)
}

// Rejected builds the error for a non-2xx engine response.
func Rejected(op string, status int, body string) error {
	return docerrors.New(docerrors.ErrCodeEngineRejected,
		fmt.Sprintf("%s rejected with status %d", op, status), nil).
		WithDetail("status", fmt.Sprintf("%d", status)).
		WithDetail("response", body)
}

// IsNotFound reports whether err is an engine rejection with status 404.
func IsNotFound(err error) bool {
	e, ok := docerrors.As(err)
	return ok && e.Code == docerrors.ErrCodeEngineRejected && e.Details["status"] == "404"
}
