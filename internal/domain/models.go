package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Consultation statuses.
const (
	ConsultationWaiting    = "waiting"
	ConsultationActive     = "active"
	ConsultationCompleted  = "completed"
	ConsultationTerminated = "terminated"
)

// Counselor statuses.
const (
	CounselorOnline         = "online"
	CounselorOffline        = "offline"
	CounselorBusy           = "busy"
	CounselorAway           = "away"
	CounselorWaitingForCall = "waiting_for_call"
)

// ConsultationRequest statuses.
const (
	RequestPending  = "pending"
	RequestAccepted = "accepted"
	RequestRejected = "rejected"
	RequestExpired  = "expired"
)

// Message types.
const (
	MessageText   = "text"
	MessageSystem = "system"
)

// Sender types.
const (
	SenderUser      = "user"
	SenderCounselor = "counselor"
	SenderSystem    = "system"
)

// Consultation is one counseling session, addressed publicly by its 9-character
// code. It is created in "waiting" state and gains a counselor only when a
// ConsultationRequest is accepted.
//
// Fields:
//   - Code: unique [A-Z0-9]{9} session code.
//   - CharacterTypeID: FinalType assigned at session start.
//   - CounselorID: nil until a request is accepted.
//   - IsCardIssued: set once a ConsultationCard exists.
//   - CompletedAt: set on the active/waiting -> completed transition.
type Consultation struct {
	ID              uint       `json:"id"                gorm:"primaryKey"`
	Code            string     `json:"code"              gorm:"type:char(9);not null;uniqueIndex"`
	UserNickname    string     `json:"user_nickname"     gorm:"type:varchar(100);not null"`
	CharacterTypeID uint       `json:"character_type_id" gorm:"not null;index"`
	Status          string     `json:"status"            gorm:"type:varchar(16);not null;default:'waiting';index:idx_consultation_counselor_status,priority:2;check:status IN ('waiting','active','completed','terminated')"`
	CounselorID     *uint      `json:"counselor_id"      gorm:"index:idx_consultation_counselor_status,priority:1"`
	IsCardIssued    bool       `json:"is_card_issued"    gorm:"not null;default:false"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	CompletedAt     *time.Time `json:"completed_at"`

	CharacterType FinalType  `json:"-" gorm:"foreignKey:CharacterTypeID;references:ID"`
	Counselor     *Counselor `json:"-" gorm:"foreignKey:CounselorID;references:ID"`
}

// TableName returns the database table name for Consultation.
func (Consultation) TableName() string { return "consultations" }

// IsTerminal reports whether no further assignment or messaging is allowed.
func (c Consultation) IsTerminal() bool {
	return c.Status == ConsultationCompleted || c.Status == ConsultationTerminated
}

// Counselor is a human operator that accepts consultations.
type Counselor struct {
	ID                    uint                        `json:"id"                      gorm:"primaryKey"`
	Username              string                      `json:"username"                gorm:"type:varchar(50);not null;uniqueIndex"`
	Name                  string                      `json:"name"                    gorm:"type:varchar(100);not null"`
	Specialties           datatypes.JSONSlice[string] `json:"specialties"`
	Status                string                      `json:"status"                  gorm:"type:varchar(20);not null;default:'offline';index"`
	IsActive              bool                        `json:"is_active"               gorm:"not null"`
	IsApproved            bool                        `json:"is_approved"             gorm:"not null;default:false"`
	MaxConcurrentSessions int                         `json:"max_concurrent_sessions" gorm:"not null;default:3"`
	LastActiveAt          *time.Time                  `json:"last_active_at"`
	CreatedAt             time.Time                   `json:"created_at"`
	UpdatedAt             time.Time                   `json:"updated_at"`
}

// TableName returns the database table name for Counselor.
func (Counselor) TableName() string { return "counselors" }

// ValidCounselorStatus reports whether s is a known counselor status.
func ValidCounselorStatus(s string) bool {
	switch s {
	case CounselorOnline, CounselorOffline, CounselorBusy, CounselorAway, CounselorWaitingForCall:
		return true
	}
	return false
}

// ConsultationRequest is one proposed (consultation, counselor) pairing.
// Only "pending" may transition; accepted, rejected and expired are terminal.
type ConsultationRequest struct {
	ID              uint       `json:"id"               gorm:"primaryKey"`
	ConsultationID  uint       `json:"consultation_id"  gorm:"not null;index:idx_request_consultation_status,priority:1"`
	CounselorID     uint       `json:"counselor_id"     gorm:"not null;index:idx_request_counselor_status,priority:1"`
	Status          string     `json:"status"           gorm:"type:varchar(16);not null;default:'pending';index:idx_request_consultation_status,priority:2;index:idx_request_counselor_status,priority:2;check:status IN ('pending','accepted','rejected','expired')"`
	RequestedAt     time.Time  `json:"requested_at"     gorm:"not null;index"`
	RespondedAt     *time.Time `json:"responded_at"`
	ResponseMessage *string    `json:"response_message" gorm:"type:text"`

	Consultation Consultation `json:"-" gorm:"foreignKey:ConsultationID;references:ID;constraint:OnDelete:CASCADE"`
	Counselor    Counselor    `json:"-" gorm:"foreignKey:CounselorID;references:ID;constraint:OnDelete:CASCADE"`
}

// TableName returns the database table name for ConsultationRequest.
func (ConsultationRequest) TableName() string { return "consultation_requests" }

// IsTerminal reports whether the request has left the pending state.
func (r ConsultationRequest) IsTerminal() bool { return r.Status != RequestPending }

// ConsultationMessage is one chat line inside a consultation.
type ConsultationMessage struct {
	ID             uint      `json:"id"              gorm:"primaryKey"`
	ConsultationID uint      `json:"consultation_id" gorm:"not null;index:idx_consultation_msgs,priority:1"`
	SenderType     string    `json:"sender_type"     gorm:"type:varchar(16);not null;check:sender_type IN ('user','counselor','system')"`
	SenderID       *uint     `json:"sender_id"`
	Content        string    `json:"content"         gorm:"type:text;not null"`
	MessageType    string    `json:"message_type"    gorm:"type:varchar(16);not null;default:'text'"`
	CreatedAt      time.Time `json:"created_at"      gorm:"index:idx_consultation_msgs,priority:2"`

	Consultation Consultation `json:"-" gorm:"foreignKey:ConsultationID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for ConsultationMessage.
func (ConsultationMessage) TableName() string { return "consultation_messages" }

// CardData is the snapshot rendered on a consultation card.
type CardData struct {
	Nickname      string   `json:"nickname"`
	CharacterName string   `json:"character_name"`
	Animal        string   `json:"animal"`
	Hashtags      []string `json:"hashtags"`
	CounselorName string   `json:"counselor_name"`
	StartedAt     string   `json:"started_at"`
	CompletedAt   string   `json:"completed_at"`
}

// ConsultationCard is the keepsake issued once per completed consultation.
type ConsultationCard struct {
	ID             uint                          `json:"id"              gorm:"primaryKey"`
	ConsultationID uint                          `json:"consultation_id" gorm:"not null;uniqueIndex"`
	CardData       datatypes.JSONType[CardData] `json:"card_data"`
	CounselorNotes string                        `json:"counselor_notes" gorm:"type:text"`
	CreatedAt      time.Time                     `json:"created_at"`
	UpdatedAt      time.Time                     `json:"updated_at"`

	Consultation Consultation `json:"-" gorm:"foreignKey:ConsultationID;references:ID;constraint:OnDelete:CASCADE"`
}

// TableName returns the database table name for ConsultationCard.
func (ConsultationCard) TableName() string { return "consultation_cards" }
