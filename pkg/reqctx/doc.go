// Package reqctx carries request-scoped values through context.Context.
//
// The HTTP layer attaches a RequestMeta to every request and, once the bearer
// credential has been resolved, a Principal:
//
//	ctx = reqctx.WithRequestMeta(ctx, meta)
//	ctx = reqctx.WithPrincipal(ctx, principal)
//
// Services read the principal back with PrincipalFromContext; a nil result
// means the call is anonymous.
package reqctx
