package auth

import "context"

type contextKey string

const operatorKey contextKey = "authOperator"

// WithOperator stores an authenticated operator in the context.
func WithOperator(ctx context.Context, operator Operator) context.Context {
	return context.WithValue(ctx, operatorKey, operator)
}

// OperatorFromContext returns the authenticated operator, if present.
func OperatorFromContext(ctx context.Context) (Operator, bool) {
	if ctx == nil {
		return Operator{}, false
	}
	operator, ok := ctx.Value(operatorKey).(Operator)
	return operator, ok
}
