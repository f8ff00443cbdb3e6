package schema

import "time"

// ResultStatus is the tag of a StationResult variant.
type ResultStatus string

const (
	ResultSuccess       ResultStatus = "success"
	ResultFailure       ResultStatus = "failure"
	ResultNeedsInput    ResultStatus = "needs_input"
	ResultInternalRetry ResultStatus = "internal_retry"
)

// EscalationOption identifies a choice offered to the operator when a
// self-healing station escalates.
type EscalationOption string

const (
	OptionRetry      EscalationOption = "retry"
	OptionSkip       EscalationOption = "skip"
	OptionRescaffold EscalationOption = "rescaffold"
	OptionHelp       EscalationOption = "help"
)

// EscalationOptions is the fixed option set carried by every needs_input result.
func EscalationOptions() []EscalationOption {
	return []EscalationOption{OptionRetry, OptionSkip, OptionRescaffold, OptionHelp}
}

// StationResult is the tagged outcome of one station execution.
// Exactly one variant applies, selected by Status; the other fields are
// populated per-variant:
//
//	success        — Message (optional), ProducedKeys, Artifacts, ResolvedErrors, ActionsTaken
//	failure        — Message (required, human-readable reason)
//	needs_input    — Prompt, Options
//	internal_retry — Message (progress note); never persisted as a terminal record
type StationResult struct {
	Status         ResultStatus       `json:"status"`
	Message        string             `json:"message,omitempty"`
	ProducedKeys   []string           `json:"produced_keys,omitempty"`
	Artifacts      []Artifact         `json:"artifacts,omitempty"`
	Prompt         string             `json:"prompt,omitempty"`
	Options        []EscalationOption `json:"options,omitempty"`
	ResolvedErrors []string           `json:"resolved_errors,omitempty"`
	ActionsTaken   []string           `json:"actions_taken,omitempty"`
	StartedAt      time.Time          `json:"started_at"`
	CompletedAt    time.Time          `json:"completed_at"`
}

// Artifact describes a file or directory a station produced.
type Artifact struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
	Path string `json:"path"`
}

// Success builds a success result.
func Success(message string) StationResult {
	now := time.Now().UTC()
	return StationResult{Status: ResultSuccess, Message: message, StartedAt: now, CompletedAt: now}
}

// Failure builds a failure result with a human-readable reason.
func Failure(reason string) StationResult {
	now := time.Now().UTC()
	return StationResult{Status: ResultFailure, Message: reason, StartedAt: now, CompletedAt: now}
}

// NeedsInput builds an escalation result carrying a prompt and the fixed
// operator option set.
func NeedsInput(prompt string) StationResult {
	now := time.Now().UTC()
	return StationResult{
		Status:      ResultNeedsInput,
		Prompt:      prompt,
		Options:     EscalationOptions(),
		StartedAt:   now,
		CompletedAt: now,
	}
}

// InternalRetry signals that the station is retrying autonomously and has not
// concluded. The executor re-invokes the station instead of recording it.
func InternalRetry(note string) StationResult {
	now := time.Now().UTC()
	return StationResult{Status: ResultInternalRetry, Message: note, StartedAt: now, CompletedAt: now}
}

// WithProducedKeys records which output keys were actually written.
func (r StationResult) WithProducedKeys(keys ...string) StationResult {
	r.ProducedKeys = append(r.ProducedKeys, keys...)
	return r
}

// WithArtifact records a produced artifact.
func (r StationResult) WithArtifact(a Artifact) StationResult {
	r.Artifacts = append(r.Artifacts, a)
	return r
}

// IsTerminal reports whether the result concludes the station.
func (r StationResult) IsTerminal() bool {
	return r.Status != ResultInternalRetry
}

// OK reports whether the result lets the workflow advance.
func (r StationResult) OK() bool {
	return r.Status == ResultSuccess
}
