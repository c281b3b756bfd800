package identity

// TokenErrorType categorizes token failures.
type TokenErrorType int

const (
	// ErrTypeMalformed indicates the token could not be parsed.
	ErrTypeMalformed TokenErrorType = iota
	// ErrTypeSignature indicates a bad signature or unexpected algorithm.
	ErrTypeSignature
	// ErrTypeExpired indicates the token is expired or not yet valid.
	ErrTypeExpired
	// ErrTypeClaims indicates a missing or invalid subject.
	ErrTypeClaims
)

func (t TokenErrorType) String() string {
	switch t {
	case ErrTypeMalformed:
		return "malformed"
	case ErrTypeSignature:
		return "signature"
	case ErrTypeExpired:
		return "expired"
	case ErrTypeClaims:
		return "claims"
	default:
		return "unknown"
	}
}

// TokenError is returned by TokenAccessor when a bearer token is rejected.
type TokenError struct {
	Type    TokenErrorType
	Message string
	Err     error
}

func (e *TokenError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *TokenError) Unwrap() error {
	return e.Err
}
