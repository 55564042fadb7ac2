// Package giaierr defines the error taxonomy used across the indexer,
// storage, and retrieval layers: a fixed set of named kinds, each with a
// category, severity, and retry disposition, per the system's error
// handling design.
package giaierr

// Category groups errors by the subsystem that raised them.
type Category string

const (
	CategoryGit       Category = "git"
	CategoryIndex     Category = "index"
	CategoryLanguage  Category = "language"
	CategoryParse     Category = "parse"
	CategoryStorage   Category = "storage"
	CategoryDSR       Category = "dsr"
	CategoryWorker    Category = "worker"
	CategoryValidation Category = "validation"
)

// Severity indicates how the caller should treat the error.
type Severity string

const (
	// SeverityFatal aborts the calling operation entirely.
	SeverityFatal Severity = "fatal"
	// SeveritySurfaced is reported to the caller but does not abort a
	// larger run (e.g. a single skipped file).
	SeveritySurfaced Severity = "surfaced"
	// SeverityDegraded means the system chose to continue with reduced
	// functionality (e.g. AST graph disabled).
	SeverityDegraded Severity = "degraded"
)

// Kind enumerates the nine named error kinds from the error handling
// design. Unlike a numeric code space, Kind values are directly
// comparable with errors.Is via sentinel wrapping (see New).
type Kind string

const (
	// KindNotAGitRepo: `rev-parse --show-toplevel` failed; fatal to the
	// calling operation.
	KindNotAGitRepo Kind = "not_a_git_repo"

	// KindIndexMissingOrIncompatible: meta.json absent or
	// index_schema_version mismatched; operations requiring the index
	// refuse to run.
	KindIndexMissingOrIncompatible Kind = "index_missing_or_incompatible"

	// KindLanguageNotAvailable: requested language partition absent;
	// operation returns empty.
	KindLanguageNotAvailable Kind = "language_not_available"

	// KindParseFailure: degrades per parseFailureFallback; never
	// propagates past the worker boundary.
	KindParseFailure Kind = "parse_failure"

	// KindStorageBackendUnavailable: both native and in-memory graph
	// backends failed to load; indexing proceeds without the AST graph.
	KindStorageBackendUnavailable Kind = "storage_backend_unavailable"

	// KindDsrConflict: existing DSR differs byte-for-byte from the
	// newly computed canonical form; fatal, never overwrite.
	KindDsrConflict Kind = "dsr_conflict"

	// KindMissingDsr: an evolution query encountered a commit without a
	// DSR; returned as {ok:false, missing_dsrs:[...]}, never synthesized.
	KindMissingDsr Kind = "missing_dsr"

	// KindWorkerFailure: a worker reported an error for a single file;
	// the file is skipped, indexing continues.
	KindWorkerFailure Kind = "worker_failure"

	// KindValidationError: input failed schema constraints; surfaced
	// before any side effect.
	KindValidationError Kind = "validation_error"
)

var kindMeta = map[Kind]struct {
	category  Category
	severity  Severity
	retryable bool
}{
	KindNotAGitRepo:                {CategoryGit, SeverityFatal, false},
	KindIndexMissingOrIncompatible: {CategoryIndex, SeveritySurfaced, false},
	KindLanguageNotAvailable:       {CategoryLanguage, SeveritySurfaced, false},
	KindParseFailure:               {CategoryParse, SeverityDegraded, false},
	KindStorageBackendUnavailable:  {CategoryStorage, SeverityDegraded, false},
	KindDsrConflict:                {CategoryDSR, SeverityFatal, false},
	KindMissingDsr:                 {CategoryDSR, SeveritySurfaced, false},
	KindWorkerFailure:              {CategoryWorker, SeverityDegraded, true},
	KindValidationError:            {CategoryValidation, SeverityFatal, false},
}

func (k Kind) category() Category { return kindMeta[k].category }
func (k Kind) severity() Severity { return kindMeta[k].severity }
func (k Kind) retryable() bool    { return kindMeta[k].retryable }
