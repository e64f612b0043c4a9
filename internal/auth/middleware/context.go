package auth

import "context"

type ctxKey string

const (
	ctxKeySub  ctxKey = "sub"
	ctxKeyUser ctxKey = "username"
)

func WithSubject(ctx context.Context, sub string) context.Context {
	return context.WithValue(ctx, ctxKeySub, sub)
}

// SubjectFromContext returns the user id of the authenticated caller.
func SubjectFromContext(ctx context.Context) string {
	s, _ := ctx.Value(ctxKeySub).(string)
	return s
}

func WithUsername(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, ctxKeyUser, name)
}

func UsernameFromContext(ctx context.Context) string {
	s, _ := ctx.Value(ctxKeyUser).(string)
	return s
}
