package service

// Stable reason strings carried in error outcome events. Clients match on
// them, so they never change.
const (
	ReasonUnparsableContent = "Unparsable content"
	ReasonBadDelegation     = "Bad delegation"
	ReasonNonPositiveAmount = "Token amount must be a positive number"
	ReasonUnsupportedToken  = "Token not supported"
	ReasonUnsupportedType   = "Transaction not supported"
	ReasonCannotMint        = "Author cannot mint this token"
	ReasonCannotBurn        = "Author cannot burn this token"
	ReasonInsufficientFunds = "Not enough funds"
	ReasonNetworkError      = "Network Error"
)

// Terminal outcome labels for metrics.
const (
	outcomeOK       = "ok"
	outcomeRejected = "rejected"
	outcomeDropped  = "dropped"
	outcomeFailed   = "failed"
)
