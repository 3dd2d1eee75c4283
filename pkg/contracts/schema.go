package contracts

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// CurrentSchemaVersion is stamped on every approval this core signs.
const CurrentSchemaVersion = "1.0.0"

// approvalSchema validates the shape of an inbound approval payload before
// it is signed. Malformed input is a programming error on the producer side
// and is rejected here, never half-signed.
const approvalSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["approval_id", "tenant_id", "approver", "approver_role", "decision", "scopes_approved", "target_type", "target", "intent_hash", "source", "created_at"],
  "properties": {
    "schema_version": {"type": "string"},
    "approval_id": {"type": "string", "minLength": 1},
    "tenant_id": {"type": "string", "minLength": 1},
    "approver": {
      "type": "object",
      "required": ["type", "id"],
      "properties": {
        "type": {"enum": ["human", "service"]},
        "id": {"type": "string", "minLength": 1}
      }
    },
    "approver_role": {"enum": ["VIEWER", "DEVELOPER", "ADMIN", "OWNER"]},
    "decision": {"enum": ["approved", "denied", "revoked"]},
    "scopes_approved": {
      "type": "array",
      "items": {"enum": ["commit", "push", "open_pr", "merge", "deploy"]}
    },
    "target_type": {"enum": ["candidate", "run", "pr"]},
    "target": {"type": "object"},
    "intent_hash": {"type": "string", "pattern": "^[0-9a-f]{64}$"},
    "patch_hash": {"type": "string", "pattern": "^[0-9a-f]{64}$"},
    "source": {"type": "string", "minLength": 1},
    "created_at": {"type": "string"}
  }
}`

var compiledApprovalSchema = mustCompileSchema("approval", approvalSchema)

func mustCompileSchema(name, source string) *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	url := fmt.Sprintf("https://patchlock.schemas.local/%s.schema.json", name)
	if err := c.AddResource(url, strings.NewReader(source)); err != nil {
		panic(fmt.Sprintf("contracts: schema load failed: %v", err))
	}
	compiled, err := c.Compile(url)
	if err != nil {
		panic(fmt.Sprintf("contracts: schema compile failed: %v", err))
	}
	return compiled
}

// ValidateApproval checks structural validity of an approval and the
// invariant that denied/revoked decisions carry no scopes. It returns an
// error for malformed input; verification failures are handled elsewhere as
// structured results.
func ValidateApproval(a *SignedApproval) error {
	if a == nil {
		return fmt.Errorf("contracts: nil approval")
	}

	raw, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("contracts: marshal approval: %w", err)
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return fmt.Errorf("contracts: decode approval: %w", err)
	}
	if err := compiledApprovalSchema.Validate(generic); err != nil {
		return fmt.Errorf("contracts: approval validation failed: %w", err)
	}

	if a.Decision != DecisionApproved && len(a.ScopesApproved) > 0 {
		return fmt.Errorf("contracts: %s approval must not carry scopes", a.Decision)
	}

	if a.SchemaVersion != "" {
		if err := CheckSchemaVersion(a.SchemaVersion); err != nil {
			return err
		}
	}
	return nil
}

// CheckSchemaVersion accepts any version within the current major series.
// Forward compatibility is additive-only, so a minor bump never breaks
// verification; a major bump does and is rejected.
func CheckSchemaVersion(version string) error {
	v, err := semver.NewVersion(version)
	if err != nil {
		return fmt.Errorf("contracts: invalid schema_version %q: %w", version, err)
	}
	current := semver.MustParse(CurrentSchemaVersion)
	if v.Major() != current.Major() {
		return fmt.Errorf("contracts: schema_version %s incompatible with %s", version, CurrentSchemaVersion)
	}
	return nil
}
