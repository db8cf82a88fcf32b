package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies saga failures. Handlers map kinds to HTTP status codes; operators
// triage on kind, so ledger/chain disagreement must never collapse into a validation kind.
type ErrorKind string

const (
	KindValidation            ErrorKind = "ValidationError"
	KindNotFound              ErrorKind = "NotFound"
	KindConflict              ErrorKind = "Conflict"
	KindInsufficientInventory ErrorKind = "InsufficientInventory"
	KindInsufficientCredits   ErrorKind = "InsufficientCredits"
	KindPaymentGateway        ErrorKind = "PaymentGatewayError"
	KindPaymentNotVerified    ErrorKind = "PaymentNotVerified"
	KindIntegrity             ErrorKind = "IntegrityError"
	KindOversold              ErrorKind = "OversoldError"
	KindLedger                ErrorKind = "LedgerError"
	KindChainSettlementFailed ErrorKind = "ChainSettlementFailed"
	KindChainPending          ErrorKind = "ChainPending"
	KindPartialSuccess        ErrorKind = "PartialSuccess"
	KindReceiptNotFound       ErrorKind = "ReceiptNotFound"
	KindTransactionFailed     ErrorKind = "TransactionFailed"
	KindCompensationFailed    ErrorKind = "CompensationFailed"
	KindSettlementInProgress  ErrorKind = "SettlementInProgress"
	// KindUntrackedSubmission: a transaction was sent but neither the payment nor the journal
	// kept its hash, so it can only be resolved by hand.
	KindUntrackedSubmission ErrorKind = "UntrackedSubmission"
	KindInternal              ErrorKind = "InternalError"
)

// Error is the structured failure returned at a saga boundary.
type Error struct {
	Kind    ErrorKind
	Message string
	// TxHash is set whenever a chain transaction was obtained, so clients can verify independently.
	TxHash  string
	Details interface{}
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds an Error without a cause.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WrapError builds an Error carrying cause.
func WrapError(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// WithTx returns e with its transaction hash set.
func (e *Error) WithTx(txHash string) *Error {
	e.TxHash = txHash
	return e
}

// WithDetails returns e with its details set.
func (e *Error) WithDetails(details interface{}) *Error {
	e.Details = details
	return e
}

// KindOf reports the kind of err, or KindInternal when err is not a *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err is a *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}
