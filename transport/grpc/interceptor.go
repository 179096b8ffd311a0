package grpc

import (
	"context"
	"path"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/silexa/hephaestus/internal/audit"
	"github.com/silexa/hephaestus/internal/auth"
)

type principalKey struct{}

func withPrincipal(ctx context.Context, p auth.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func principalFrom(ctx context.Context) (auth.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(auth.Principal)
	return p, ok
}

// methodRoles maps each RPC's method name (the last segment of
// info.FullMethod) to the role required to call it, mirroring
// transport/rest's per-route requireRole/requireAnyRole split. An empty
// role means "authenticate only"; GetTask and StreamTask check the
// task's kind once it is known, per spec.md §6's "role of kind".
var methodRoles = map[string]string{
	"GuardRails":     "guard-rails",
	"Cleanup":        "cleanup",
	"ReleaseInstall": "release",
	"GetTask":        "",
	"StreamTask":     "",
}

func authenticate(ctx context.Context, ks *auth.Keystore, role string) (auth.Principal, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return auth.Principal{}, &auth.Malformed{}
	}
	values := md.Get("authorization")
	if len(values) == 0 {
		return auth.Principal{}, &auth.Malformed{}
	}
	const prefix = "Bearer "
	header := values[0]
	if !strings.HasPrefix(header, prefix) {
		return auth.Principal{}, &auth.Malformed{}
	}
	return auth.Verify(ks, strings.TrimPrefix(header, prefix), role)
}

func statusFromAuthError(err error) error {
	switch err.(type) {
	case *auth.RoleDenied:
		return status.Error(codes.PermissionDenied, err.Error())
	default:
		return status.Error(codes.Unauthenticated, err.Error())
	}
}

func methodNameOf(fullMethod string) string {
	return path.Base(fullMethod)
}

// UnaryInterceptor authenticates every unary call against methodRoles
// before it reaches its handler, auditing the allow or deny outcome of
// that check. The role-of-kind check GetTask applies afterwards is not
// audited.
func (s *Server) UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		name := methodNameOf(info.FullMethod)
		role := methodRoles[name]
		principal, err := authenticate(ctx, s.ks, role)
		if err != nil {
			s.auditDeny(name, err)
			return nil, statusFromAuthError(err)
		}
		s.auditAllow(name, principal)
		return handler(withPrincipal(ctx, principal), req)
	}
}

// StreamInterceptor authenticates StreamTask the same way, wrapping the
// server stream so the handler observes the authenticated context.
func (s *Server) StreamInterceptor() grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		name := methodNameOf(info.FullMethod)
		role := methodRoles[name]
		principal, err := authenticate(ss.Context(), s.ks, role)
		if err != nil {
			s.auditDeny(name, err)
			return statusFromAuthError(err)
		}
		s.auditAllow(name, principal)
		return handler(srv, &authenticatedStream{ServerStream: ss, ctx: withPrincipal(ss.Context(), principal)})
	}
}

// authenticatedStream overrides Context so handlers can recover the
// Principal attached by StreamInterceptor via principalFrom.
type authenticatedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (a *authenticatedStream) Context() context.Context { return a.ctx }

func (s *Server) auditAllow(operation string, p auth.Principal) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Append(audit.Record{
		Principal: p.Subject,
		Protocol:  audit.ProtocolGRPC,
		Operation: operation,
		Outcome:   audit.OutcomeAllow,
	})
}

func (s *Server) auditDeny(operation string, err error) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Append(audit.Record{
		Principal: "unknown",
		Protocol:  audit.ProtocolGRPC,
		Operation: operation,
		Outcome:   audit.OutcomeDeny,
		Detail:    err.Error(),
	})
}
