package shared

// Asynq task types
const (
	TypeRenumberGroup   = "genealogy:renumber_group"
	TypeRenumberSubtree = "genealogy:renumber_subtree"
	TypeVerifyCodes     = "genealogy:verify_codes"
)

// Asynq queues
const (
	QueueGenealogy   = "genealogy"
	QueueMaintenance = "maintenance"
)

// RenumberGroupPayload: tính lại code toàn bộ group
type RenumberGroupPayload struct {
	GroupID int64  `json:"groupId"`
	Reason  string `json:"reason,omitempty"`
}

// RenumberSubtreePayload: tính lại code của member và primary descendants
type RenumberSubtreePayload struct {
	GroupID  int64  `json:"groupId"`
	MemberID int64  `json:"memberId"`
	Reason   string `json:"reason,omitempty"`
}

// VerifyCodesPayload: GroupIDs rỗng = kiểm tra mọi group
type VerifyCodesPayload struct {
	GroupIDs []int64 `json:"groupIds,omitempty"`
	// Repair chạy AssignAll cho group bị lệch
	Repair bool `json:"repair"`
}
