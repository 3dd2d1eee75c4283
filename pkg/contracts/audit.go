package contracts

import "time"

// AuditRecordType categorizes a flat audit record.
type AuditRecordType string

const (
	AuditApprovalCheck  AuditRecordType = "APPROVAL_CHECK"
	AuditPolicyDecision AuditRecordType = "POLICY_DECISION"
	AuditGateResult     AuditRecordType = "GATE_RESULT"
	AuditKeyEvent       AuditRecordType = "KEY_EVENT"
)

// AuditRecord is the flat shape every decision is emittable as, consumed by
// an external append-only audit store.
type AuditRecord struct {
	ID          string          `json:"id"`
	Type        AuditRecordType `json:"type"`
	ReasonCode  string          `json:"reason_code,omitempty"`
	ApprovalRef string          `json:"approval_ref,omitempty"`
	TenantID    string          `json:"tenant_id,omitempty"`
	ActorID     string          `json:"actor_id"`
	Action      string          `json:"action"`
	Timestamp   time.Time       `json:"timestamp"`
	Detail      string          `json:"detail,omitempty"`
}
