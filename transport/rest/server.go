// Package rest implements the REST transport (half of component C9):
// a chi router over internal/service's execute_X facade. Grounded
// directly on apps/ReleaseParty/backend/internal/api/server.go's
// Server{cfg, ..., log} / Router() / writeJSON shape.
package rest

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/silexa/hephaestus/internal/audit"
	"github.com/silexa/hephaestus/internal/auth"
	"github.com/silexa/hephaestus/internal/cleanup"
	"github.com/silexa/hephaestus/internal/guardrails"
	"github.com/silexa/hephaestus/internal/plugin"
	"github.com/silexa/hephaestus/internal/release"
	"github.com/silexa/hephaestus/internal/service"
	"github.com/silexa/hephaestus/internal/task"
)

// Server holds everything a request handler needs: the service facade,
// the keystore for bearer-token verification, the audit log, and a line
// logger for operator-facing diagnostics.
type Server struct {
	facade   *service.Facade
	ks       *auth.Keystore
	audit    *audit.Log
	log      *log.Logger
	version  string
	registry *plugin.Registry
}

// New builds a Server. logger defaults to a logger on the standard
// logger's output (stderr unless redirected) with the same flags the
// teacher's own api.Server uses when none is given. registry
// may be nil; it is only consulted when a guard-rails request sets
// use_plugins.
func New(facade *service.Facade, ks *auth.Keystore, auditLog *audit.Log, logger *log.Logger, version string) *Server {
	if logger == nil {
		logger = log.New(log.Writer(), "hephaestus ", log.LstdFlags|log.LUTC)
	}
	return &Server{facade: facade, ks: ks, audit: auditLog, log: logger, version: version}
}

// WithRegistry attaches the plugin registry used when a guard-rails
// request sets use_plugins=true.
func (s *Server) WithRegistry(reg *plugin.Registry) *Server {
	s.registry = reg
	return s
}

// Router builds the chi mux for spec.md §6's REST surface.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.With(s.requireRole("guard-rails")).Post("/quality/guard-rails", s.handleGuardRails)
		r.With(s.requireRole("cleanup")).Post("/cleanup", s.handleCleanup)
		r.With(s.requireRole("release")).Post("/release/install", s.handleReleaseInstall)
		r.With(s.requireRole("analytics")).Get("/analytics/rankings", s.handleAnalyticsStub)
		r.With(s.requireAnyRole()).Get("/tasks/{id}", s.handleTaskStatus)
		r.With(s.requireAnyRole()).Get("/tasks/{id}/stream", s.handleTaskStream)
	})

	return r
}

type principalKey struct{}

// requireRole verifies the bearer token against role, attaching the
// resolved auth.Principal to the request context on success.
func (s *Server) requireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := s.authenticate(r, role)
			if err != nil {
				s.writeAuthError(w, r, role, err)
				return
			}
			s.auditAllow(r, role, principal)
			ctx := withPrincipal(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// requireAnyRole verifies the bearer token's signature/expiry without a
// specific role assertion; /tasks/{id} checks the kind-specific role once
// the task's kind is known, per spec.md §6's "role of kind".
func (s *Server) requireAnyRole() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := s.authenticate(r, "")
			if err != nil {
				s.writeAuthError(w, r, "", err)
				return
			}
			ctx := withPrincipal(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func withPrincipal(ctx context.Context, p auth.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func principalFrom(ctx context.Context) (auth.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(auth.Principal)
	return p, ok
}

func (s *Server) authenticate(r *http.Request, role string) (auth.Principal, error) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return auth.Principal{}, &auth.Malformed{}
	}
	token := strings.TrimPrefix(header, prefix)
	return auth.Verify(s.ks, token, role)
}

func (s *Server) writeAuthError(w http.ResponseWriter, r *http.Request, role string, err error) {
	status := http.StatusUnauthorized
	code := "unauthorized"
	outcome := audit.OutcomeDeny
	switch err.(type) {
	case *auth.RoleDenied:
		status = http.StatusForbidden
		code = "role_denied"
	case *auth.UnknownKey:
		code = "unknown_key"
	case *auth.Expired:
		code = "expired"
	case *auth.InvalidSignature:
		code = "invalid_signature"
	default:
		code = "malformed"
	}
	s.auditDeny(r, role, err, outcome)
	writeJSON(w, status, errorBody{Detail: err.Error(), Code: code})
}

func (s *Server) auditAllow(r *http.Request, operation string, p auth.Principal) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Append(audit.Record{
		Principal: p.Subject,
		Protocol:  audit.ProtocolREST,
		Operation: operation,
		Outcome:   audit.OutcomeAllow,
	})
}

func (s *Server) auditDeny(r *http.Request, operation string, err error, outcome audit.Outcome) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Append(audit.Record{
		Principal: "unknown",
		Protocol:  audit.ProtocolREST,
		Operation: operation,
		Outcome:   outcome,
		Detail:    err.Error(),
	})
}

type errorBody struct {
	Detail string `json:"detail"`
	Code   string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"service": "hephaestus", "version": s.version})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// guardRailsRequest is the POST /api/v1/quality/guard-rails body.
type guardRailsRequest struct {
	SkipFormat bool     `json:"skip_format"`
	DriftCheck bool     `json:"drift_check"`
	UsePlugins bool     `json:"use_plugins"`
	Paths      []string `json:"paths"`
	TimeoutS   float64  `json:"timeout_s"`
}

func (s *Server) handleGuardRails(w http.ResponseWriter, r *http.Request) {
	var req guardRailsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Detail: err.Error(), Code: "invalid_body"})
		return
	}
	opts := guardrails.Options{
		SkipFormat:  req.SkipFormat,
		DriftCheck:  req.DriftCheck,
		UsePlugins:  req.UsePlugins,
		Paths:       req.Paths,
		Registry:    s.registry,
		SkipCleanup: true, // REST callers invoke /api/v1/cleanup explicitly; guard-rails here runs gates only
	}
	id, err := s.facade.ExecuteGuardRails(opts, timeoutFrom(req.TimeoutS))
	s.respondSubmitted(w, id, err)
}

// cleanupRequest is the POST /api/v1/cleanup body, mirroring
// cleanup.Options's JSON-facing fields.
type cleanupRequest struct {
	Root                string   `json:"root"`
	IncludeGit          bool     `json:"include_git"`
	IncludePoetryEnv    bool     `json:"include_poetry_env"`
	CleanPythonCache    bool     `json:"clean_python_cache"`
	CleanBuildArtifacts bool     `json:"clean_build_artifacts"`
	CleanNodeModules    bool     `json:"clean_node_modules"`
	ExtraPaths          []string `json:"extra_paths"`
	DryRun              bool     `json:"dry_run"`
	AuditManifestPath   string   `json:"audit_manifest_path"`
	Confirmed           bool     `json:"confirmed"`
	TimeoutS            float64  `json:"timeout_s"`
}

func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	var req cleanupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Detail: err.Error(), Code: "invalid_body"})
		return
	}
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
	s.respondSubmitted(w, id, err)
}

// releaseInstallRequest is the POST /api/v1/release/install body,
// mirroring release.Request's JSON-facing fields.
type releaseInstallRequest struct {
	Repository         string   `json:"repository"`
	Tag                string   `json:"tag"`
	AssetPattern       string   `json:"asset_pattern"`
	ManifestPattern    string   `json:"manifest_pattern"`
	SigstorePattern    string   `json:"sigstore_pattern"`
	RequireSigstore    bool     `json:"require_sigstore"`
	SigstoreIdentities []string `json:"sigstore_identities"`
	AllowUnsigned      bool     `json:"allow_unsigned"`
	TimeoutS           float64  `json:"timeout_s"`
	MaxRetries         int      `json:"max_retries"`
	Destination        string   `json:"destination"`
	Token              string   `json:"token"`
}

func (s *Server) handleReleaseInstall(w http.ResponseWriter, r *http.Request) {
	var req releaseInstallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Detail: err.Error(), Code: "invalid_body"})
		return
	}
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
		writeJSON(w, http.StatusBadRequest, errorBody{Detail: err.Error(), Code: "invalid_request"})
		return
	}
	id, err := s.facade.ExecuteReleaseInstall(rr, timeoutFrom(req.TimeoutS))
	s.respondSubmitted(w, id, err)
}

func (s *Server) handleAnalyticsStub(w http.ResponseWriter, _ *http.Request) {
	// Out of core scope (spec.md §6): no analytics component exists to
	// back this endpoint; listed in the surface for completeness only.
	writeJSON(w, http.StatusNotImplemented, errorBody{Detail: "analytics is out of core scope", Code: "not_implemented"})
}

func (s *Server) respondSubmitted(w http.ResponseWriter, id string, err error) {
	if err != nil {
		status := http.StatusInternalServerError
		code := "internal"
		if _, ok := err.(*task.TooManyTasks); ok {
			status = http.StatusConflict
			code = "too_many_tasks"
		}
		writeJSON(w, status, errorBody{Detail: err.Error(), Code: code})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"task_id": id})
}

func (s *Server) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	snap, ok := s.facade.Status(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody{Detail: "unknown task", Code: "not_found"})
		return
	}
	if err := s.authorizeTaskKind(r, snap.Kind); err != nil {
		s.writeAuthError(w, r, snap.Kind, err)
		return
	}
	writeJSON(w, http.StatusOK, toSnapshotBody(snap))
}

func (s *Server) handleTaskStream(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	snap, ok := s.facade.Status(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody{Detail: "unknown task", Code: "not_found"})
		return
	}
	if err := s.authorizeTaskKind(r, snap.Kind); err != nil {
		s.writeAuthError(w, r, snap.Kind, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errorBody{Detail: "streaming unsupported", Code: "internal"})
		return
	}
	ch, ok := s.facade.Stream(r.Context(), id)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody{Detail: "unknown task", Code: "not_found"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	for snap := range ch {
		data, err := json.Marshal(toSnapshotBody(snap))
		if err != nil {
			continue
		}
		_, _ = w.Write([]byte("data: "))
		_, _ = w.Write(data)
		_, _ = w.Write([]byte("\n\n"))
		flusher.Flush()
	}
}

// roleForKind maps a task kind to the role required to read it, per
// spec.md §6's "role of kind" column.
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

func (s *Server) authorizeTaskKind(r *http.Request, kind string) error {
	principal, ok := principalFrom(r.Context())
	if !ok {
		return &auth.Malformed{}
	}
	required := roleForKind(kind)
	for _, role := range principal.Roles {
		if role == required {
			return nil
		}
	}
	return &auth.RoleDenied{Required: required}
}

func timeoutFrom(seconds float64) time.Duration {
	if seconds <= 0 {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}

type snapshotBody struct {
	ID          string  `json:"id"`
	Kind        string  `json:"kind"`
	Status      string  `json:"status"`
	Fraction    float64 `json:"fraction"`
	Detail      string  `json:"detail"`
	Error       string  `json:"error,omitempty"`
	StartedAt   string  `json:"started_at,omitempty"`
	CompletedAt string  `json:"completed_at,omitempty"`
}

func toSnapshotBody(s task.Snapshot) snapshotBody {
	body := snapshotBody{
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
