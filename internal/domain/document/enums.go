package document

// PageSize represents the output page size of a rendered document
type PageSize string

const (
	PageSizeA4     PageSize = "A4"     // 210mm x 297mm
	PageSizeLetter PageSize = "LETTER" // 215.9mm x 279.4mm
)

// IsValid checks if the PageSize is a valid value
func (p PageSize) IsValid() bool {
	switch p {
	case PageSizeA4, PageSizeLetter:
		return true
	}
	return false
}

// String returns the string representation of PageSize
func (p PageSize) String() string {
	return string(p)
}

// Dimensions returns the page dimensions in millimeters (width, height)
func (p PageSize) Dimensions() (width, height float64) {
	switch p {
	case PageSizeA4:
		return 210, 297
	case PageSizeLetter:
		return 215.9, 279.4
	default:
		return 210, 297 // Default to A4
	}
}

// AllPageSizes returns all valid PageSize values
func AllPageSizes() []PageSize {
	return []PageSize{PageSizeA4, PageSizeLetter}
}

// Phase identifies one bounded stage of the rendering pipeline. Each phase
// runs under its own deadline from the TimeoutBudget.
type Phase string

const (
	PhaseFetch    Phase = "fetch"    // load the quote and its sub-records
	PhaseStartup  Phase = "startup"  // launch the render engine process
	PhaseSettle   Phase = "settle"   // inject markup, wait for embedded assets
	PhasePaginate Phase = "paginate" // drive the engine's print-to-PDF
	PhaseUpload   Phase = "upload"   // hand the artifact to the sink
)

// IsValid checks if the Phase is a valid value
func (p Phase) IsValid() bool {
	switch p {
	case PhaseFetch, PhaseStartup, PhaseSettle, PhasePaginate, PhaseUpload:
		return true
	}
	return false
}

// String returns the string representation of Phase
func (p Phase) String() string {
	return string(p)
}

// AllPhases returns all pipeline phases in execution order. Engine startup
// sits between fetch and settle: the session is only launched once
// normalization has succeeded.
func AllPhases() []Phase {
	return []Phase{PhaseFetch, PhaseStartup, PhaseSettle, PhasePaginate, PhaseUpload}
}

// JobStatus represents the status of a render job
type JobStatus string

const (
	JobStatusQueued    JobStatus = "QUEUED"
	JobStatusRendering JobStatus = "RENDERING"
	JobStatusCompleted JobStatus = "COMPLETED"
	JobStatusFailed    JobStatus = "FAILED"
)

// IsValid checks if the JobStatus is a valid value
func (s JobStatus) IsValid() bool {
	switch s {
	case JobStatusQueued, JobStatusRendering, JobStatusCompleted, JobStatusFailed:
		return true
	}
	return false
}

// String returns the string representation of JobStatus
func (s JobStatus) String() string {
	return string(s)
}

// IsTerminal returns true if this is a terminal status (no further transitions)
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// CanTransitionTo checks if the status can transition to the target status
func (s JobStatus) CanTransitionTo(target JobStatus) bool {
	switch s {
	case JobStatusQueued:
		return target == JobStatusRendering || target == JobStatusFailed
	case JobStatusRendering:
		return target == JobStatusCompleted || target == JobStatusFailed
	case JobStatusCompleted, JobStatusFailed:
		return false // Terminal states
	}
	return false
}

// AllJobStatuses returns all valid JobStatus values
func AllJobStatuses() []JobStatus {
	return []JobStatus{JobStatusQueued, JobStatusRendering, JobStatusCompleted, JobStatusFailed}
}
