package giaierr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorIsMatchesByKind(t *testing.T) {
	// Given two errors of the same kind but different messages/causes
	a := ParseFailure("a.go", errors.New("boom"))
	b := New(KindParseFailure, "")

	// When compared with errors.Is
	// Then they match on Kind alone
	assert.True(t, errors.Is(a, b))
	assert.False(t, errors.Is(a, New(KindWorkerFailure, "")))
}

func TestErrorUnwrapExposesCause(t *testing.T) {
	cause := errors.New("underlying")
	err := WorkerFailure("file.go", cause)

	require.ErrorIs(t, err, cause)
}

func TestKindMetadataPinned(t *testing.T) {
	cases := []struct {
		err      *Error
		category Category
		severity Severity
		retry    bool
	}{
		{NotAGitRepo(nil), CategoryGit, SeverityFatal, false},
		{DsrConflict("abc"), CategoryDSR, SeverityFatal, false},
		{WorkerFailure("f", nil), CategoryWorker, SeverityDegraded, true},
		{ValidationError("bad"), CategoryValidation, SeverityFatal, false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.category, tc.err.Category)
		assert.Equal(t, tc.severity, tc.err.Severity)
		assert.Equal(t, tc.retry, tc.err.Retryable)
	}
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(WorkerFailure("f", nil)))
	assert.False(t, IsRetryable(DsrConflict("abc")))
	assert.False(t, IsRetryable(errors.New("plain")))
}

func TestWithDetail(t *testing.T) {
	err := LanguageNotAvailable("rust")
	assert.Equal(t, "rust", err.Details["language"])
}
