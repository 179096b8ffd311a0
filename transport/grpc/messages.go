package grpc

// GuardRailsRequest is the gRPC counterpart of REST's POST
// /api/v1/quality/guard-rails body.
type GuardRailsRequest struct {
	SkipFormat bool     `json:"skip_format"`
	DriftCheck bool     `json:"drift_check"`
	UsePlugins bool     `json:"use_plugins"`
	Paths      []string `json:"paths"`
	TimeoutS   float64  `json:"timeout_s"`
}

// CleanupRequest is the gRPC counterpart of REST's POST /api/v1/cleanup
// body.
type CleanupRequest struct {
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

// ReleaseInstallRequest is the gRPC counterpart of REST's POST
// /api/v1/release/install body.
type ReleaseInstallRequest struct {
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

// SubmitResponse is returned by every submit RPC (GuardRails, Cleanup,
// ReleaseInstall): the task id callers poll or stream.
type SubmitResponse struct {
	TaskID string `json:"task_id"`
}

// TaskRequest identifies a previously submitted task for GetTask and
// StreamTask.
type TaskRequest struct {
	ID string `json:"id"`
}

// TaskSnapshot is the gRPC counterpart of REST's snapshotBody, carried by
// both GetTask's response and each StreamTask frame.
type TaskSnapshot struct {
	ID          string  `json:"id"`
	Kind        string  `json:"kind"`
	Status      string  `json:"status"`
	Fraction    float64 `json:"fraction"`
	Detail      string  `json:"detail"`
	Error       string  `json:"error,omitempty"`
	StartedAt   string  `json:"started_at,omitempty"`
	CompletedAt string  `json:"completed_at,omitempty"`
}
