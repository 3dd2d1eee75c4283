package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Patchlock-Labs/patchlock/core/pkg/contracts"
)

func TestLogger_WritesPrefixedJSONLines(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithWriter(&buf)

	require.NoError(t, l.Record(context.Background(), contracts.AuditRecord{
		Type:       contracts.AuditGateResult,
		ReasonCode: "PATCH_HASH_MISMATCH",
		TenantID:   "tenant-1",
		ActorID:    "alice",
		Action:     "commit",
		Detail:     "approval appr-1 is bound to different patch content",
	}))

	line := buf.String()
	require.True(t, strings.HasPrefix(line, "AUDIT: "))
	require.True(t, strings.HasSuffix(line, "\n"))

	var record contracts.AuditRecord
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSpace(line), "AUDIT: ")), &record))
	assert.Equal(t, contracts.AuditGateResult, record.Type)
	assert.Equal(t, "PATCH_HASH_MISMATCH", record.ReasonCode)
	assert.Equal(t, "alice", record.ActorID)
}

func TestLogger_FillsIDAndTimestamp(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithWriter(&buf)

	require.NoError(t, l.Record(context.Background(), contracts.AuditRecord{
		Type:    contracts.AuditKeyEvent,
		ActorID: "alice",
		Action:  "keygen",
	}))

	var record contracts.AuditRecord
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSpace(buf.String()), "AUDIT: ")), &record))
	assert.NotEmpty(t, record.ID)
	assert.False(t, record.Timestamp.IsZero())
}

func TestLogger_PreservesCallerID(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithWriter(&buf)

	require.NoError(t, l.Record(context.Background(), contracts.AuditRecord{
		ID:      "fixed-id",
		Type:    contracts.AuditPolicyDecision,
		ActorID: "alice",
		Action:  "deploy",
	}))

	assert.Contains(t, buf.String(), `"id":"fixed-id"`)
}

func TestLogger_OneLinePerRecord(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithWriter(&buf)

	for i := 0; i < 3; i++ {
		require.NoError(t, l.Record(context.Background(), contracts.AuditRecord{
			Type:    contracts.AuditApprovalCheck,
			ActorID: "alice",
			Action:  "commit",
		}))
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 3)
	for _, line := range lines {
		assert.True(t, strings.HasPrefix(line, "AUDIT: "))
	}
}

func TestNop(t *testing.T) {
	assert.NoError(t, Nop().Record(context.Background(), contracts.AuditRecord{}))
}
