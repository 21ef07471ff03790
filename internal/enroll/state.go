package enroll

// State is the position of the coordinator within one enrollment attempt.
type State int32

const (
	StateIdle State = iota
	StateHasCandidateSignature
	StateAlreadyRegistered
	StateRegistered
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateHasCandidateSignature:
		return "has_candidate_signature"
	case StateAlreadyRegistered:
		return "already_registered"
	case StateRegistered:
		return "registered"
	default:
		return "unknown"
	}
}

// Outcome is what an attempt reports to its caller.
type Outcome string

const (
	OutcomeRegistered        Outcome = "registered"
	OutcomeAlreadyRegistered Outcome = "already_registered"
	OutcomeNoSignatureFound  Outcome = "no_signature_found"
	OutcomeFailed            Outcome = "failed"
)

// Result describes a finished attempt.
type Result struct {
	Outcome Outcome `json:"outcome"`
	// Name is the cleaned name the attempt was made for.
	Name string `json:"name"`
	// ID of the inserted record, set only for OutcomeRegistered.
	ID int64 `json:"id,omitempty"`
	// Distance to the nearest known signature. Zero when nothing was known yet.
	Distance float64 `json:"distance"`
	// MatchedName and MatchedID identify the existing record for OutcomeAlreadyRegistered.
	MatchedName string `json:"matched_name,omitempty"`
	MatchedID   int64  `json:"matched_id,omitempty"`
}
