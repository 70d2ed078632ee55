// Package domain defines the core aggregates of the execution subsystem:
// workflow revisions, their step trees, and the executions run against them.
// Types here are plain data; behaviour (validation, interpretation,
// persistence) lives in sibling packages that operate on them.
package domain

import "time"

// ParameterType is the declared type of a workflow input parameter.
type ParameterType string

const (
	ParamString  ParameterType = "STRING"
	ParamInteger ParameterType = "INTEGER"
	ParamFloat   ParameterType = "FLOAT"
	ParamBoolean ParameterType = "BOOLEAN"
)

// ParameterDefinition describes one entry of a revision's parameter schema.
type ParameterDefinition struct {
	Name        string        `yaml:"name" json:"name"`
	Type        ParameterType `yaml:"type" json:"type"`
	Required    bool          `yaml:"required,omitempty" json:"required,omitempty"`
	Default     any           `yaml:"default,omitempty" json:"default,omitempty"`
	Description string        `yaml:"description,omitempty" json:"description,omitempty"`
}

// WorkflowRevisionID identifies one immutable revision of one workflow.
type WorkflowRevisionID struct {
	Namespace  string `json:"namespace"`
	WorkflowID string `json:"id"`
	Version    int    `json:"version"`
}

// WorkflowRevision is the aggregate root for a versioned workflow definition.
type WorkflowRevision struct {
	ID          WorkflowRevisionID
	Name        string
	Description string
	Parameters  []ParameterDefinition
	RootStep    Step
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// WorkflowRevisionWithSource additionally carries the declarative source
// document verbatim, for readback. The core never inspects SourceDoc.
type WorkflowRevisionWithSource struct {
	WorkflowRevision
	SourceDoc string
}

// ExecutionStatus is the terminal-or-not status of a WorkflowExecution.
type ExecutionStatus string

const (
	StatusPending   ExecutionStatus = "PENDING"
	StatusRunning   ExecutionStatus = "RUNNING"
	StatusCompleted ExecutionStatus = "COMPLETED"
	StatusFailed    ExecutionStatus = "FAILED"
	StatusCancelled ExecutionStatus = "CANCELLED"
)

// IsTerminal reports whether the status can no longer change.
func (s ExecutionStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// WorkflowExecution is the header record for one synchronous run of a
// revision's root step.
type WorkflowExecution struct {
	ExecutionID      string
	RevisionID       WorkflowRevisionID
	InputParameters  map[string]any
	Status           ExecutionStatus
	ErrorMessage     string
	StartedAt        time.Time
	CompletedAt      *time.Time
	LastUpdatedAt    time.Time
}

// StepResultStatus is the outcome of one leaf (or failed orchestration node).
type StepResultStatus string

const (
	StepCompleted StepResultStatus = "COMPLETED"
	StepFailed    StepResultStatus = "FAILED"
	StepSkipped   StepResultStatus = "SKIPPED"
)

// ErrorDetails captures diagnostic information for a FAILED step.
type ErrorDetails struct {
	ErrorType  string         `json:"errorType"`
	StackTrace string         `json:"stackTrace"`
	StepInputs map[string]any `json:"stepInputs"`
}

// ExecutionStepResult is one append-only record of a step's outcome within
// an execution.
type ExecutionStepResult struct {
	ResultID     string
	ExecutionID  string
	StepIndex    int
	StepID       string
	StepType     string
	Status       StepResultStatus
	InputData    map[string]any
	OutputData   any
	ErrorMessage string
	ErrorDetails *ErrorDetails
	StartedAt    time.Time
	CompletedAt  time.Time
}

// ExecutionSummary is the listing projection C7's findByWorkflow returns.
type ExecutionSummary struct {
	ExecutionID     string
	Status          ExecutionStatus
	RevisionVersion int
	StartedAt       time.Time
	CompletedAt     *time.Time
	StepCount       int
	CompletedSteps  int
	FailedSteps     int
}
