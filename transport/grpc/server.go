package grpc

import (
	"context"
	"log"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/silexa/hephaestus/internal/audit"
	"github.com/silexa/hephaestus/internal/auth"
	"github.com/silexa/hephaestus/internal/cleanup"
	"github.com/silexa/hephaestus/internal/guardrails"
	"github.com/silexa/hephaestus/internal/plugin"
	"github.com/silexa/hephaestus/internal/release"
	"github.com/silexa/hephaestus/internal/service"
	"github.com/silexa/hephaestus/internal/task"
)

// Server implements the Hephaestus gRPC service over internal/service's
// facade, the same one transport/rest wraps — so REST and gRPC callers
// always observe the same decision (spec.md §4.9's transport parity
// requirement).
type Server struct {
	facade   *service.Facade
	ks       *auth.Keystore
	audit    *audit.Log
	log      *log.Logger
	version  string
	registry *plugin.Registry
}

// New builds a Server. logger defaults the same way transport/rest's
// does when none is given.
func New(facade *service.Facade, ks *auth.Keystore, auditLog *audit.Log, logger *log.Logger, version string) *Server {
	if logger == nil {
		logger = log.New(log.Writer(), "hephaestus-grpc ", log.LstdFlags|log.LUTC)
	}
	return &Server{facade: facade, ks: ks, audit: auditLog, log: logger, version: version}
}

// WithRegistry attaches the plugin registry used when a GuardRails call
// sets use_plugins=true, mirroring transport/rest's WithRegistry.
func (s *Server) WithRegistry(reg *plugin.Registry) *Server {
	s.registry = reg
	return s
}

// Register attaches the hand-written ServiceDesc to gs. Call after
// constructing gs with grpc.NewServer(grpc.UnaryInterceptor(s.UnaryInterceptor()),
// grpc.StreamInterceptor(s.StreamInterceptor())).
func (s *Server) Register(gs *grpc.Server) {
	gs.RegisterService(&serviceDesc, s)
}

// serviceName is the fully-qualified gRPC service name used to build each
// method's FullMethod path.
const serviceName = "hephaestus.v1.Hephaestus"

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GuardRails", Handler: guardRailsHandler},
		{MethodName: "Cleanup", Handler: cleanupHandler},
		{MethodName: "ReleaseInstall", Handler: releaseInstallHandler},
		{MethodName: "GetTask", Handler: getTaskHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "StreamTask", Handler: streamTaskHandler, ServerStreams: true},
	},
	Metadata: "hephaestus.proto",
}

func guardRailsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	var req GuardRailsRequest
	if err := dec(&req); err != nil {
		return nil, err
	}
	s := srv.(*Server)
	if interceptor == nil {
		return s.handleGuardRails(ctx, &req)
	}
	info := &grpc.UnaryServerInfo{Server: s, FullMethod: "/" + serviceName + "/GuardRails"}
	handler := func(ctx context.Context, req any) (any, error) {
		return s.handleGuardRails(ctx, req.(*GuardRailsRequest))
	}
	return interceptor(ctx, &req, info, handler)
}

func (s *Server) handleGuardRails(_ context.Context, req *GuardRailsRequest) (*SubmitResponse, error) {
	opts := guardrails.Options{
		SkipFormat:  req.SkipFormat,
		DriftCheck:  req.DriftCheck,
		UsePlugins:  req.UsePlugins,
		Paths:       req.Paths,
		Registry:    s.registry,
		SkipCleanup: true, // gRPC callers invoke Cleanup explicitly, matching transport/rest
	}
	id, err := s.facade.ExecuteGuardRails(opts, timeoutFrom(req.TimeoutS))
	if err != nil {
		return nil, statusFromSubmitError(err)
	}
	return &SubmitResponse{TaskID: id}, nil
}

func cleanupHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	var req CleanupRequest
	if err := dec(&req); err != nil {
		return nil, err
	}
	s := srv.(*Server)
	if interceptor == nil {
		return s.handleCleanup(ctx, &req)
	}
	info := &grpc.UnaryServerInfo{Server: s, FullMethod: "/" + serviceName + "/Cleanup"}
	handler := func(ctx context.Context, req any) (any, error) {
		return s.handleCleanup(ctx, req.(*CleanupRequest))
	}
	return interceptor(ctx, &req, info, handler)
}

func (s *Server) handleCleanup(_ context.Context, req *CleanupRequest) (*SubmitResponse, error) {
	opts := cleanup.Options{
		Root:                req.Root,
		IncludeGit:          req.IncludeGit,
		IncludePoetryEnv:    req.IncludePoetryEnv,
		CleanPythonCache:    req.CleanPythonCache,
		CleanBuildArtifacts: req.CleanBuildArtifacts,
		CleanNodeModules:    req.CleanNodeModules,
		ExtraPaths:          req.ExtraPaths,
		DryRun:              req.DryRun,
		AuditManifestPath:   req.AuditManifestPath,
		Confirmed:           req.Confirmed,
	}
	id, err := s.facade.ExecuteCleanup(opts, nil, timeoutFrom(req.TimeoutS))
	if err != nil {
		return nil, statusFromSubmitError(err)
	}
	return &SubmitResponse{TaskID: id}, nil
}

func releaseInstallHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	var req ReleaseInstallRequest
	if err := dec(&req); err != nil {
		return nil, err
	}
	s := srv.(*Server)
	if interceptor == nil {
		return s.handleReleaseInstall(ctx, &req)
	}
	info := &grpc.UnaryServerInfo{Server: s, FullMethod: "/" + serviceName + "/ReleaseInstall"}
	handler := func(ctx context.Context, req any) (any, error) {
		return s.handleReleaseInstall(ctx, req.(*ReleaseInstallRequest))
	}
	return interceptor(ctx, &req, info, handler)
}

func (s *Server) handleReleaseInstall(_ context.Context, req *ReleaseInstallRequest) (*SubmitResponse, error) {
	rr := release.Request{
		Repository:         req.Repository,
		Tag:                req.Tag,
		AssetPattern:       req.AssetPattern,
		ManifestPattern:    req.ManifestPattern,
		SigstorePattern:    req.SigstorePattern,
		RequireSigstore:    req.RequireSigstore,
		SigstoreIdentities: req.SigstoreIdentities,
		AllowUnsigned:      req.AllowUnsigned,
		TimeoutS:           req.TimeoutS,
		MaxRetries:         req.MaxRetries,
		Destination:        req.Destination,
		Token:              req.Token,
	}
	if err := rr.Validate(); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	id, err := s.facade.ExecuteReleaseInstall(rr, timeoutFrom(req.TimeoutS))
	if err != nil {
		return nil, statusFromSubmitError(err)
	}
	return &SubmitResponse{TaskID: id}, nil
}

func getTaskHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	var req TaskRequest
	if err := dec(&req); err != nil {
		return nil, err
	}
	s := srv.(*Server)
	if interceptor == nil {
		return s.handleGetTask(ctx, &req)
	}
	info := &grpc.UnaryServerInfo{Server: s, FullMethod: "/" + serviceName + "/GetTask"}
	handler := func(ctx context.Context, req any) (any, error) {
		return s.handleGetTask(ctx, req.(*TaskRequest))
	}
	return interceptor(ctx, &req, info, handler)
}

func (s *Server) handleGetTask(ctx context.Context, req *TaskRequest) (*TaskSnapshot, error) {
	snap, ok := s.facade.Status(req.ID)
	if !ok {
		return nil, status.Error(codes.NotFound, "unknown task")
	}
	if err := s.authorizeTaskKind(ctx, snap.Kind); err != nil {
		return nil, err
	}
	body := toTaskSnapshot(snap)
	return &body, nil
}

func streamTaskHandler(srv any, stream grpc.ServerStream) error {
	s := srv.(*Server)
	var req TaskRequest
	if err := stream.RecvMsg(&req); err != nil {
		return err
	}

	snap, ok := s.facade.Status(req.ID)
	if !ok {
		return status.Error(codes.NotFound, "unknown task")
	}
	if err := s.authorizeTaskKind(stream.Context(), snap.Kind); err != nil {
		return err
	}

	ch, ok := s.facade.Stream(stream.Context(), req.ID)
	if !ok {
		return status.Error(codes.NotFound, "unknown task")
	}
	for snapshot := range ch {
		body := toTaskSnapshot(snapshot)
		if err := stream.SendMsg(&body); err != nil {
			return err
		}
	}
	return nil
}

// roleForKind maps a task kind to the role required to read it, mirroring
// transport/rest's roleForKind.
func roleForKind(kind string) string {
	switch kind {
	case "guard-rails":
		return "guard-rails"
	case "cleanup":
		return "cleanup"
	case "release-install":
		return "release"
	default:
		return kind
	}
}

func (s *Server) authorizeTaskKind(ctx context.Context, kind string) error {
	principal, ok := principalFrom(ctx)
	if !ok {
		return status.Error(codes.Unauthenticated, "auth: missing principal")
	}
	required := roleForKind(kind)
	for _, role := range principal.Roles {
		if role == required {
			return nil
		}
	}
	return status.Error(codes.PermissionDenied, (&auth.RoleDenied{Required: required}).Error())
}

func statusFromSubmitError(err error) error {
	if _, ok := err.(*task.TooManyTasks); ok {
		return status.Error(codes.ResourceExhausted, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}

func timeoutFrom(seconds float64) time.Duration {
	if seconds <= 0 {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}

func toTaskSnapshot(s task.Snapshot) TaskSnapshot {
	body := TaskSnapshot{
		ID:       s.ID,
		Kind:     s.Kind,
		Status:   string(s.Status),
		Fraction: s.Fraction,
		Detail:   s.Detail,
	}
	if s.Err != nil {
		body.Error = s.Err.Error()
	}
	if !s.StartedAt.IsZero() {
		body.StartedAt = s.StartedAt.UTC().Format(time.RFC3339)
	}
	if !s.CompletedAt.IsZero() {
		body.CompletedAt = s.CompletedAt.UTC().Format(time.RFC3339)
	}
	return body
}
