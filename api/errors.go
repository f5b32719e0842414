package api

import (
	"errors"

	"github.com/eth2030/xlbus/anchor"
	"github.com/eth2030/xlbus/auth"
	"github.com/eth2030/xlbus/bus"
)

// JSON-RPC error codes returned for core errors. They sit in the range
// reserved for implementation-defined server errors.
const (
	ErrCodeUnauthorized     = -32010
	ErrCodeZeroRoot         = -32011
	ErrCodeStaleHeight      = -32012
	ErrCodeInvalidState     = -32013
	ErrCodeInvalidSignature = -32014
	ErrCodeInvalidSecret    = -32015
	ErrCodeInvalidProof     = -32016
	ErrCodeZeroAddress      = -32017
	ErrCodeZeroValue        = -32018
	ErrCodeInternal         = -32603
)

var errorCodes = []struct {
	err  error
	code int
}{
	{auth.ErrUnauthorized, ErrCodeUnauthorized},
	{anchor.ErrZeroRoot, ErrCodeZeroRoot},
	{anchor.ErrStaleHeight, ErrCodeStaleHeight},
	{bus.ErrInvalidState, ErrCodeInvalidState},
	{bus.ErrInvalidSignature, ErrCodeInvalidSignature},
	{bus.ErrInvalidSecret, ErrCodeInvalidSecret},
	{bus.ErrInvalidProof, ErrCodeInvalidProof},
	{bus.ErrZeroAddress, ErrCodeZeroAddress},
	{bus.ErrZeroValue, ErrCodeZeroValue},
}

// rpcError carries a JSON-RPC error code alongside a core error.
type rpcError struct {
	err  error
	code int
}

func (e *rpcError) Error() string  { return e.err.Error() }
func (e *rpcError) ErrorCode() int { return e.code }
func (e *rpcError) Unwrap() error  { return e.err }

// wrapError attaches the error code of err's kind.
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			return &rpcError{err: err, code: c.code}
		}
	}
	return &rpcError{err: err, code: ErrCodeInternal}
}
