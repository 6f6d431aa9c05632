package audit

import "time"

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so sinks can fan out.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	MemberID  string    `json:"member_id,omitempty"`
	Action    string    `json:"action"`
	Subject   string    `json:"subject,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	ClientIP  string    `json:"client_ip,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
}

// Actions recorded by this platform.
const (
	EventMemberCreated      = "member_created"
	EventReferralAttributed = "referral_attributed"
	EventGroupCreated       = "group_created"
	EventGroupMemberAdded   = "group_member_added"
	EventBroadcastCompleted = "broadcast_completed"
	EventSubmissionRecorded = "submission_recorded"
)
