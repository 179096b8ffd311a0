package audit

import "time"

// Protocol identifies which transport produced an AuditRecord.
type Protocol string

const (
	ProtocolCLI      Protocol = "cli"
	ProtocolREST     Protocol = "rest"
	ProtocolGRPC     Protocol = "grpc"
	ProtocolInternal Protocol = "internal"
)

// Outcome is the terminal disposition of the audited operation.
type Outcome string

const (
	OutcomeAllow   Outcome = "allow"
	OutcomeDeny    Outcome = "deny"
	OutcomeError   Outcome = "error"
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Record is one append-only audit entry, written one-per-line as JSON.
type Record struct {
	Timestamp  time.Time      `json:"timestamp"`
	RunID      string         `json:"run_id"`
	Principal  string         `json:"principal"`
	KeyID      string         `json:"key_id,omitempty"`
	Protocol   Protocol       `json:"protocol"`
	Operation  string         `json:"operation"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Outcome    Outcome        `json:"outcome"`
	Detail     string         `json:"detail,omitempty"`
}

// defaultDenyList names parameter keys redacted before a Record is ever
// serialized. Configurable via WithDenyList.
var defaultDenyList = map[string]struct{}{
	"token":         {},
	"secret":        {},
	"authorization": {},
	"password":      {},
	"access_token":  {},
}

func redact(params map[string]any, denyList map[string]struct{}) map[string]any {
	if params == nil {
		return nil
	}
	out := make(map[string]any, len(params))
	for k, v := range params {
		if _, denied := denyList[normalizeKey(k)]; denied {
			out[k] = "***redacted***"
			continue
		}
		out[k] = v
	}
	return out
}

func normalizeKey(k string) string {
	out := make([]byte, 0, len(k))
	for i := 0; i < len(k); i++ {
		c := k[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out = append(out, c)
	}
	return string(out)
}
