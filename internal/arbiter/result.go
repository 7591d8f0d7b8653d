package arbiter

// Reason is the closed set of rejection reasons.
type Reason string

const (
	// ReasonDuplicateTitle means another filled slot already has the same title
	ReasonDuplicateTitle Reason = "DuplicateTitle"

	// ReasonDiversityCapExceeded means the overrepresented attribute would exceed its share
	ReasonDiversityCapExceeded Reason = "DiversityCapExceeded"

	// ReasonInvalidAttribute means the attribute is not one of the enumeration values
	ReasonInvalidAttribute Reason = "InvalidAttribute"

	// ReasonMissingRequiredField means the title or owner label was empty after sanitization
	ReasonMissingRequiredField Reason = "MissingRequiredField"

	// ReasonNotOwner means the caller tried to release a slot owned by someone else
	ReasonNotOwner Reason = "NotOwner"

	// ReasonSlotOccupied means the target slot is already filled in the local snapshot
	ReasonSlotOccupied Reason = "SlotOccupied"

	// ReasonTransportFailure is never returned from Claim or Release; it labels
	// write failures reported asynchronously through the synchronizer.
	ReasonTransportFailure Reason = "TransportFailure"
)

// Result is the synchronous outcome of a claim or release.
type Result struct {
	Success bool   `json:"success"`
	Reason  Reason `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
}

func accepted() Result {
	return Result{Success: true}
}

func reject(reason Reason, message string) Result {
	return Result{Reason: reason, Message: message}
}

// label is the metrics label for the result.
func (r Result) label() string {
	if r.Success {
		return "accepted"
	}
	return string(r.Reason)
}
