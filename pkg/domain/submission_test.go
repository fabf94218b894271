package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubmission_DeriveKeepsIdentity(t *testing.T) {
	root := NewSubmission("a\nb")
	child := root.Child("c")
	derived := child.Derive("d")

	assert.NotEmpty(t, root.ID)
	assert.NotEqual(t, root.ID, child.ID)
	assert.Equal(t, root.ID, child.ParentID)
	assert.Equal(t, child.ID, derived.ID)
	assert.Equal(t, child.ParentID, derived.ParentID)
	assert.Equal(t, "d", derived.Code)
	assert.Equal(t, "c", child.Code, "original submission must be unchanged")
}

func TestSubmitCode_WithSubmission(t *testing.T) {
	cmd := NewSubmitCode("1 + 1")
	next := cmd.WithSubmission(cmd.Submission().Derive("2 + 2"))

	assert.Equal(t, "1 + 1", cmd.Submission().Code)
	assert.Equal(t, "2 + 2", next.Submission().Code)
	assert.IsType(t, SubmitCode{}, next)
}

func TestSessionRecord_CloneIsolated(t *testing.T) {
	rec := NewSessionRecord("s1", "lua")
	rec.Append("x = 1")
	clone := rec.Clone()
	clone.Append("y = 2")

	assert.Len(t, rec.Units, 1)
	assert.Len(t, clone.Units, 2)
}
