package errs

// Error codes: 1xxx argument/auth, 2xxx downstream.
const (
	ArgsError        = 1001
	TokenError       = 1002
	PermissionError  = 1003
	RecordNotFound   = 2404
	StoreError       = 2500
	GatewayUnreached = 2502
	ProviderError    = 2503
)

var (
	ErrArgs       = NewCodeError(ArgsError, "invalid argument")
	ErrToken      = NewCodeError(TokenError, "token invalid or expired")
	ErrPermission = NewCodeError(PermissionError, "permission denied")
	ErrNotFound   = NewCodeError(RecordNotFound, "record not found")
	ErrStore      = NewCodeError(StoreError, "store failure")
	ErrGateway    = NewCodeError(GatewayUnreached, "gateway unreached")
	ErrProvider   = NewCodeError(ProviderError, "provider failure")
)
