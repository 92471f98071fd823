package domain

import "strconv"

// StatusCode is the tracker's integer workflow status.
type StatusCode int

const (
	StatusNew          StatusCode = 10
	StatusFeedback     StatusCode = 20
	StatusAcknowledged StatusCode = 30
	StatusConfirmed    StatusCode = 40
	StatusAssigned     StatusCode = 50
	StatusMovedOut     StatusCode = 60
	StatusDeferred     StatusCode = 70
	StatusResolved     StatusCode = 80
	StatusClosed       StatusCode = 90
	StatusReopen       StatusCode = 100
)

// ResolutionCode is the tracker's integer resolution.
type ResolutionCode int

const (
	ResolutionOpen              ResolutionCode = 10
	ResolutionFixed             ResolutionCode = 20
	ResolutionReopened          ResolutionCode = 30
	ResolutionUnableToReproduce ResolutionCode = 40
	ResolutionDuplicate         ResolutionCode = 50
	ResolutionNoChangeRequired  ResolutionCode = 60
	ResolutionNotFixable        ResolutionCode = 70
	ResolutionSuspended         ResolutionCode = 80
	ResolutionWontFix           ResolutionCode = 90
)

var statusLabels = map[StatusCode]string{
	StatusNew:          "New",
	StatusFeedback:     "Feedback",
	StatusAcknowledged: "Acknowledged",
	StatusConfirmed:    "Confirmed",
	StatusAssigned:     "Assigned",
	StatusMovedOut:     "Movedout",
	StatusDeferred:     "Deferred",
	StatusResolved:     "Resolved",
	StatusClosed:       "Closed",
	StatusReopen:       "Reopen",
}

var resolutionLabels = map[ResolutionCode]string{
	ResolutionOpen:              "Open",
	ResolutionFixed:             "Fixed",
	ResolutionReopened:          "Reopened",
	ResolutionUnableToReproduce: "Unable to Reproduce",
	ResolutionDuplicate:         "Duplicate",
	ResolutionNoChangeRequired:  "No Change Required",
	ResolutionNotFixable:        "Not Fixable",
	ResolutionSuspended:         "Suspended",
	ResolutionWontFix:           "Won't Fix",
}

// ClosedStatuses are the codes that take a task out of the active set.
var ClosedStatuses = []StatusCode{StatusResolved, StatusClosed}

// CurrentStatuses are the codes a silent overrun is looked for in.
var CurrentStatuses = []StatusCode{StatusConfirmed, StatusAssigned}

// Label returns the human label, or "Unknown (<code>)" for unmapped codes.
func (c StatusCode) Label() string {
	if label, ok := statusLabels[c]; ok {
		return label
	}
	return "Unknown (" + strconv.Itoa(int(c)) + ")"
}

// IsActive reports whether the status is anything other than Resolved or Closed.
func (c StatusCode) IsActive() bool {
	return c != StatusResolved && c != StatusClosed
}

// Label returns the human label, or "Unknown (<code>)" for unmapped codes.
func (c ResolutionCode) Label() string {
	if label, ok := resolutionLabels[c]; ok {
		return label
	}
	return "Unknown (" + strconv.Itoa(int(c)) + ")"
}

// StatusLabel is the nil-safe form of StatusCode.Label.
func StatusLabel(code *StatusCode) string {
	if code == nil {
		return "Unknown"
	}
	return code.Label()
}

// ResolutionLabel is the nil-safe form of ResolutionCode.Label. A missing
// resolution reads as "Open".
func ResolutionLabel(code *ResolutionCode) string {
	if code == nil {
		return "Open"
	}
	return code.Label()
}

// IsActiveStatus treats a missing status as not active.
func IsActiveStatus(code *StatusCode) bool {
	if code == nil {
		return false
	}
	return code.IsActive()
}

// IsCurrentTask reports a task sitting in Confirmed or Assigned. Resolution is
// not consulted: reopened work usually stays Assigned with a Reopened
// resolution and is still being worked.
func IsCurrentTask(status *StatusCode) bool {
	return status != nil && (*status == StatusConfirmed || *status == StatusAssigned)
}

// ActiveStatusCodes lists every known status code that counts as active.
func ActiveStatusCodes() []StatusCode {
	codes := make([]StatusCode, 0, len(statusLabels))
	for _, c := range []StatusCode{
		StatusNew, StatusFeedback, StatusAcknowledged, StatusConfirmed, StatusAssigned,
		StatusMovedOut, StatusDeferred, StatusResolved, StatusClosed, StatusReopen,
	} {
		if c.IsActive() {
			codes = append(codes, c)
		}
	}
	return codes
}
