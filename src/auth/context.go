package auth

import (
	"context"

	"eabridge/src/security"
)

type contextKey string

const OperatorKey contextKey = "operator"

func GetOperatorFromContext(ctx context.Context) (*security.OperatorClaims, bool) {
	claims, ok := ctx.Value(OperatorKey).(*security.OperatorClaims)
	return claims, ok
}

// WithOperator stores verified operator claims on ctx.
func WithOperator(ctx context.Context, claims *security.OperatorClaims) context.Context {
	return context.WithValue(ctx, OperatorKey, claims)
}
