package httpapi

import (
	"time"

	"github.com/maestro-org/maestro/internal/domain"
)

// revisionEnvelope is the YAML wire shape of a single revision response. It
// starts from the submitted source document (reparsed into a generic map so
// the original "steps" shape round-trips verbatim, per the "readback"
// contract on domain.WorkflowRevisionWithSource) and has identity/lifecycle
// fields merged in.
type revisionEnvelope map[string]any

func newRevisionEnvelope(withSrc domain.WorkflowRevisionWithSource, sourceFields map[string]any) revisionEnvelope {
	env := make(revisionEnvelope, len(sourceFields)+6)
	for k, v := range sourceFields {
		env[k] = v
	}
	env["namespace"] = withSrc.ID.Namespace
	env["id"] = withSrc.ID.WorkflowID
	env["version"] = withSrc.ID.Version
	env["active"] = withSrc.Active
	env["createdAt"] = withSrc.CreatedAt.Format(time.RFC3339Nano)
	env["updatedAt"] = withSrc.UpdatedAt.Format(time.RFC3339Nano)
	return env
}

// revisionSummary is the YAML wire shape of one entry in a revision listing.
type revisionSummary struct {
	Namespace  string `yaml:"namespace"`
	WorkflowID string `yaml:"id"`
	Version    int    `yaml:"version"`
	Name       string `yaml:"name"`
	Active     bool   `yaml:"active"`
	CreatedAt  string `yaml:"createdAt"`
	UpdatedAt  string `yaml:"updatedAt"`
}

func toRevisionSummary(rev domain.WorkflowRevision) revisionSummary {
	return revisionSummary{
		Namespace:  rev.ID.Namespace,
		WorkflowID: rev.ID.WorkflowID,
		Version:    rev.ID.Version,
		Name:       rev.Name,
		Active:     rev.Active,
		CreatedAt:  rev.CreatedAt.Format(time.RFC3339Nano),
		UpdatedAt:  rev.UpdatedAt.Format(time.RFC3339Nano),
	}
}

type revisionListResponse struct {
	Revisions []revisionSummary `yaml:"revisions"`
}

// executionSubmitRequest is the JSON body of POST /api/executions.
type executionSubmitRequest struct {
	Namespace  string         `json:"namespace"`
	WorkflowID string         `json:"id"`
	Version    int            `json:"version"`
	Parameters map[string]any `json:"parameters"`
}

type links map[string]string

type executionSubmitResponse struct {
	ExecutionID     string              `json:"executionId"`
	Status          domain.ExecutionStatus `json:"status"`
	RevisionID      domain.WorkflowRevisionID `json:"revisionId"`
	InputParameters map[string]any      `json:"inputParameters"`
	StartedAt       string              `json:"startedAt"`
	Links           links               `json:"_links"`
}

type stepResultResponse struct {
	StepIndex    int                  `json:"stepIndex"`
	StepID       string               `json:"stepId"`
	StepType     string               `json:"stepType"`
	Status       domain.StepResultStatus `json:"status"`
	InputData    map[string]any       `json:"inputData"`
	OutputData   any                  `json:"outputData,omitempty"`
	ErrorMessage string               `json:"errorMessage,omitempty"`
	ErrorDetails *domain.ErrorDetails `json:"errorDetails,omitempty"`
	StartedAt    string               `json:"startedAt"`
	CompletedAt  string               `json:"completedAt"`
}

type executionDetailResponse struct {
	ExecutionID     string                `json:"executionId"`
	Namespace       string                `json:"namespace"`
	WorkflowID      string                `json:"id"`
	Version         int                   `json:"version"`
	Status          domain.ExecutionStatus   `json:"status"`
	InputParameters map[string]any       `json:"inputParameters"`
	ErrorMessage    string                `json:"errorMessage,omitempty"`
	StartedAt       string                `json:"startedAt"`
	CompletedAt     *string               `json:"completedAt,omitempty"`
	LastUpdatedAt   string                `json:"lastUpdatedAt"`
	Steps           []stepResultResponse  `json:"steps"`
	Links           links                 `json:"_links"`
}

func toExecutionDetail(header domain.WorkflowExecution, results []domain.ExecutionStepResult) executionDetailResponse {
	steps := make([]stepResultResponse, 0, len(results))
	for _, r := range results {
		steps = append(steps, stepResultResponse{
			StepIndex:    r.StepIndex,
			StepID:       r.StepID,
			StepType:     r.StepType,
			Status:       r.Status,
			InputData:    r.InputData,
			OutputData:   r.OutputData,
			ErrorMessage: r.ErrorMessage,
			ErrorDetails: r.ErrorDetails,
			StartedAt:    r.StartedAt.Format(time.RFC3339Nano),
			CompletedAt:  r.CompletedAt.Format(time.RFC3339Nano),
		})
	}
	var completedAt *string
	if header.CompletedAt != nil {
		v := header.CompletedAt.Format(time.RFC3339Nano)
		completedAt = &v
	}
	return executionDetailResponse{
		ExecutionID:     header.ExecutionID,
		Namespace:       header.RevisionID.Namespace,
		WorkflowID:      header.RevisionID.WorkflowID,
		Version:         header.RevisionID.Version,
		Status:          header.Status,
		InputParameters: header.InputParameters,
		ErrorMessage:    header.ErrorMessage,
		StartedAt:       header.StartedAt.Format(time.RFC3339Nano),
		CompletedAt:     completedAt,
		LastUpdatedAt:   header.LastUpdatedAt.Format(time.RFC3339Nano),
		Steps:           steps,
		Links: links{
			"self": "/api/executions/" + header.ExecutionID,
		},
	}
}

type executionSummaryResponse struct {
	ExecutionID     string                `json:"executionId"`
	Status          domain.ExecutionStatus   `json:"status"`
	RevisionVersion int                   `json:"revisionVersion"`
	StartedAt       string                `json:"startedAt"`
	CompletedAt     *string               `json:"completedAt,omitempty"`
	StepCount       int                   `json:"stepCount"`
	CompletedSteps  int                   `json:"completedSteps"`
	FailedSteps     int                   `json:"failedSteps"`
}

type paginationResponse struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"hasMore"`
}

type executionListResponse struct {
	Executions []executionSummaryResponse `json:"executions"`
	Pagination paginationResponse         `json:"pagination"`
	Links      links                      `json:"_links"`
}

func toExecutionSummary(sum domain.ExecutionSummary) executionSummaryResponse {
	var completedAt *string
	if sum.CompletedAt != nil {
		v := sum.CompletedAt.Format(time.RFC3339Nano)
		completedAt = &v
	}
	return executionSummaryResponse{
		ExecutionID:     sum.ExecutionID,
		Status:          sum.Status,
		RevisionVersion: sum.RevisionVersion,
		StartedAt:       sum.StartedAt.Format(time.RFC3339Nano),
		CompletedAt:     completedAt,
		StepCount:       sum.StepCount,
		CompletedSteps:  sum.CompletedSteps,
		FailedSteps:     sum.FailedSteps,
	}
}
