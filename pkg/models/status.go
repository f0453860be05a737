package models

// MirrorKind tags a mirror item with the handling branch chosen from its MIME type
type MirrorKind string

const (
	KindHTML          MirrorKind = "html"
	KindCSS           MirrorKind = "css"
	KindXML           MirrorKind = "xml"
	KindJS            MirrorKind = "js"
	KindImage         MirrorKind = "image"
	KindPDF           MirrorKind = "pdf"
	KindGenericBinary MirrorKind = "generic_binary"
	KindReject        MirrorKind = "reject" // Dispatch-table only; never carried by a MirrorItem
)

// String implements fmt.Stringer for logging
func (k MirrorKind) String() string {
	if k == "" {
		return "unset"
	}
	return string(k)
}

// IsStorable returns true if items of this kind are written to the mirror
func (k MirrorKind) IsStorable() bool {
	switch k {
	case KindHTML, KindCSS, KindXML, KindJS, KindImage, KindPDF, KindGenericBinary:
		return true
	}
	return false
}

// OutcomeKind is the terminal result category of a completed request
type OutcomeKind string

const (
	OutcomeSaved         OutcomeKind = "saved"
	OutcomeHTTPError     OutcomeKind = "http_error"
	OutcomeForbiddenMime OutcomeKind = "forbidden_mime"
	OutcomeInternalError OutcomeKind = "internal_error"
)

// String implements fmt.Stringer for logging
func (k OutcomeKind) String() string {
	if k == "" {
		return "unset"
	}
	return string(k)
}

// StatificationStatus is the lifecycle state of a statification
type StatificationStatus string

const (
	StatusCreated    StatificationStatus = "CREATED"
	StatusStatified  StatificationStatus = "STATIFIED"
	StatusSaved      StatificationStatus = "SAVED"
	StatusProduction StatificationStatus = "PRODUCTION"
	StatusVisualized StatificationStatus = "VISUALIZED"
)

// String implements fmt.Stringer for logging
func (s StatificationStatus) String() string {
	if s == "" {
		return "unset"
	}
	return string(s)
}

// IsValid returns true if the status is a known lifecycle value
func (s StatificationStatus) IsValid() bool {
	switch s {
	case StatusCreated, StatusStatified, StatusSaved, StatusProduction, StatusVisualized:
		return true
	}
	return false
}

// HistoricAction is an auditable operation done to a statification
type HistoricAction string

const (
	ActionCreate     HistoricAction = "CREATE_STATIFICATION"
	ActionCommit     HistoricAction = "COMMIT_STATIFICATION"
	ActionVisualize  HistoricAction = "VISUALIZE_STATIFICATION"
	ActionPushToProd HistoricAction = "PUSHTOPROD_STATIFICATION"
	ActionUpdate     HistoricAction = "UPDATE_STATIFICATION"
)

// EngineState is the state of a single crawl run
type EngineState string

const (
	EngineIdle      EngineState = "idle"
	EngineRunning   EngineState = "running"
	EngineCompleted EngineState = "completed"
	EngineFailed    EngineState = "failed"
)

// IsTerminal returns true once a run can no longer change state
func (s EngineState) IsTerminal() bool {
	return s == EngineCompleted || s == EngineFailed
}

// FailureReason is the fixed vocabulary surfaced to callers when a run fails
type FailureReason string

const (
	ReasonNone              FailureReason = ""
	ReasonMissingParameters FailureReason = "missing_parameters"
	ReasonLockHeld          FailureReason = "lock_held"
	ReasonCancelled         FailureReason = "cancelled"
	ReasonInternalError     FailureReason = "internal_error"
)
