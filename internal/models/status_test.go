package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseItemStatus_Current(t *testing.T) {
	for _, s := range []ItemStatus{
		ItemStatusPendingOCR, ItemStatusPendingReview, ItemStatusReady,
		ItemStatusPublished, ItemStatusRevoked, ItemStatusSkipped,
		ItemStatusBlockedInactive, ItemStatusError,
	} {
		got, err := ParseItemStatus(string(s))
		require.NoError(t, err, "status %s", s)
		assert.Equal(t, s, got)
	}
}

func TestParseItemStatus_LegacyAliases(t *testing.T) {
	tests := []struct {
		raw  string
		want ItemStatus
	}{
		{"PENDING", ItemStatusPendingReview},
		{"ASSIGNED", ItemStatusReady},
		{"SKIPPED", ItemStatusSkipped},
		{"pending", ItemStatusPendingReview},
		{"assigned", ItemStatusReady},
	}
	for _, tt := range tests {
		got, err := ParseItemStatus(tt.raw)
		require.NoError(t, err, "raw %q", tt.raw)
		assert.Equal(t, tt.want, got, "raw %q", tt.raw)
	}
}

func TestParseItemStatus_CaseAndWhitespace(t *testing.T) {
	got, err := ParseItemStatus("  ready ")
	require.NoError(t, err)
	assert.Equal(t, ItemStatusReady, got)
}

func TestParseItemStatus_Unknown(t *testing.T) {
	_, err := ParseItemStatus("DRAFT")
	assert.Error(t, err)

	_, err = ParseItemStatus("")
	assert.Error(t, err)
}

func TestItemStatus_Terminal(t *testing.T) {
	assert.True(t, ItemStatusRevoked.Terminal())
	assert.True(t, ItemStatusSkipped.Terminal())

	for _, s := range []ItemStatus{
		ItemStatusPendingOCR, ItemStatusPendingReview, ItemStatusReady,
		ItemStatusPublished, ItemStatusBlockedInactive, ItemStatusError,
	} {
		assert.False(t, s.Terminal(), "status %s", s)
	}
}

func TestItemStatus_Skippable(t *testing.T) {
	assert.True(t, ItemStatusPendingReview.Skippable())
	assert.True(t, ItemStatusError.Skippable())

	for _, s := range []ItemStatus{
		ItemStatusPendingOCR, ItemStatusReady, ItemStatusPublished,
		ItemStatusRevoked, ItemStatusSkipped, ItemStatusBlockedInactive,
	} {
		assert.False(t, s.Skippable(), "status %s", s)
	}
}

func TestItemStatus_Assignable(t *testing.T) {
	assert.True(t, ItemStatusPendingReview.Assignable())
	assert.True(t, ItemStatusBlockedInactive.Assignable())

	assert.False(t, ItemStatusReady.Assignable())
	assert.False(t, ItemStatusPublished.Assignable())
	assert.False(t, ItemStatusRevoked.Assignable())
}

func TestItemStatus_Assigned(t *testing.T) {
	assert.True(t, ItemStatusReady.Assigned())
	assert.True(t, ItemStatusPublished.Assigned())
	assert.True(t, ItemStatusBlockedInactive.Assigned())

	// Revoked keeps the employee id on the row for audit but the
	// assignment is no longer live.
	assert.False(t, ItemStatusRevoked.Assigned())
	assert.False(t, ItemStatusPendingReview.Assigned())
	assert.False(t, ItemStatusSkipped.Assigned())
}
