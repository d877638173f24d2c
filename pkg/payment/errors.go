package payment

import "errors"

var (
	ErrGatewayAuth     = errors.New("mpesa: access token request failed")
	ErrGatewayPush     = errors.New("mpesa: stk push failed")
	ErrGatewayQuery    = errors.New("mpesa: stk query failed")
	ErrInvalidCallback = errors.New("mpesa: invalid callback payload")
)
