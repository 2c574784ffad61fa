// internal/models/process.go
package models

// WorkflowRequestKind names the message sent to the external process engine.
type WorkflowRequestKind string

const (
	RequestInitialSubmission WorkflowRequestKind = "initial-submission"
	RequestResubmission      WorkflowRequestKind = "resubmission"
	RequestStepCompletion    WorkflowRequestKind = "step-completion"
	RequestManagerApproval   WorkflowRequestKind = "manager-approval"
)

// Variable names shared with the BPMN process.
const (
	VarApplicationStatus = "applicationStatus"
	VarPublisher         = "publisher"
	VarActioner          = "actioner"
	VarDateSubmitted     = "dateSubmitted"
	VarStepName          = "stepName"
	VarOverride          = "override"
	VarWorkflowComplete  = "workflowComplete"
	VarManagerApproved   = "managerApproved"
	VarApplicationID     = "applicationId"
)

// WorkflowEngineRequest is emitted by the service for the process engine.
type WorkflowEngineRequest struct {
	BusinessKey string                 `json:"businessKey"`
	Kind        WorkflowRequestKind    `json:"kind"`
	Variables   map[string]interface{} `json:"variables"`
}
