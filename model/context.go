package model

import (
	"context"
	"errors"
	"fmt"
)

// RequestContext carries the operator identity and tracing information for
// the lifetime of a request. It is immutable after construction and safe
// for concurrent reads. Authentication itself happens upstream; the edge
// proxy forwards the operator identity in trusted headers.
type RequestContext struct {
	OperatorID    string
	BranchID      string
	CorrelationID string
	TraceID       string
	Locale        string
}

// Validate checks that all mandatory fields are present.
func (rc *RequestContext) Validate() error {
	var errs []error
	if rc.OperatorID == "" {
		errs = append(errs, fmt.Errorf("OperatorID is required"))
	}
	if rc.BranchID == "" {
		errs = append(errs, fmt.Errorf("BranchID is required"))
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

type contextKey struct{}

// WithRequestContext attaches a RequestContext to the given context.
func WithRequestContext(ctx context.Context, rctx *RequestContext) context.Context {
	return context.WithValue(ctx, contextKey{}, rctx)
}

// RequestContextFrom extracts the RequestContext from the context, or
// returns nil if not present.
func RequestContextFrom(ctx context.Context) *RequestContext {
	rctx, _ := ctx.Value(contextKey{}).(*RequestContext)
	return rctx
}
