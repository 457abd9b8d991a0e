package api

import (
	"context"
	"net/http"

	"github.com/go-faster/errors"

	"github.com/arnac-io/multisig-coordinator/pkg/blockchain"
	"github.com/arnac-io/multisig-coordinator/pkg/core"
	"github.com/arnac-io/multisig-coordinator/pkg/engine"
)

// ErrorStatusCode is an error that already knows its HTTP response.
type ErrorStatusCode struct {
	StatusCode int
	Response   Error
}

func (e *ErrorStatusCode) Error() string {
	return e.Response.Error
}

func toError(code int, err error) *ErrorStatusCode {
	return &ErrorStatusCode{StatusCode: code, Response: Error{Error: err.Error()}}
}

// convertError maps coordinator errors onto HTTP statuses. result is the
// execution result that came along with the error, if any.
func convertError(err error, result *core.TxResult) *ErrorStatusCode {
	var statusErr *ErrorStatusCode
	if errors.As(err, &statusErr) {
		return statusErr
	}
	var notPersisted *core.CreatedButNotPersistedError
	if errors.As(err, &notPersisted) {
		res := toError(http.StatusInternalServerError, err)
		res.Response.Address = notPersisted.Account.Address
		return res
	}
	switch {
	case errors.Is(err, core.ErrExecutionFailure):
		res := toError(http.StatusUnprocessableEntity, err)
		res.Response.TxResult = convertOptTxResult(result)
		return res
	case errors.Is(err, core.ErrValidation):
		return toError(http.StatusBadRequest, err)
	case errors.Is(err, core.ErrEntityNotFound):
		return toError(http.StatusNotFound, err)
	case errors.Is(err, core.ErrInvalidApprover):
		return toError(http.StatusForbidden, err)
	case errors.Is(err, core.ErrTxNotPending), errors.Is(err, core.ErrConflict):
		return toError(http.StatusConflict, err)
	case errors.Is(err, blockchain.ErrRuntimeTimeout), errors.Is(err, context.DeadlineExceeded):
		return toError(http.StatusGatewayTimeout, err)
	case errors.Is(err, blockchain.ErrRuntimeUnavailable),
		errors.Is(err, blockchain.ErrRuntimeDisconnected),
		errors.Is(err, engine.ErrEngineNotStarted):
		return toError(http.StatusServiceUnavailable, err)
	}
	return toError(http.StatusInternalServerError, err)
}

// ErrorsHandler writes err as a JSON error response.
func ErrorsHandler(ctx context.Context, w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, convertError(err, nil))
}

func writeError(w http.ResponseWriter, err *ErrorStatusCode) {
	writeResponse(w, err.StatusCode, err.Response)
}
