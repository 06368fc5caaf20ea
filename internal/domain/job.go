package domain

import (
	"fmt"
	"strings"
	"time"
)

// Status represents the lifecycle state of a notification job.
type Status string

const (
	StatusPending Status = "PENDING"
	// StatusSending is the committed claiming sub-state: the row belongs to
	// exactly one worker while the provider call is in flight, without
	// holding a row lock open across network I/O.
	StatusSending Status = "SENDING"
	StatusSent    Status = "SENT"
	StatusFailed  Status = "FAILED"
)

func (s Status) String() string { return string(s) }

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusSending, StatusSent, StatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no further dispatch may happen for the job.
func (s Status) IsTerminal() bool {
	return s == StatusSent || s == StatusFailed
}

func ParseStatusFromString(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid status %q", ErrValidation, s)
	}
	return st, nil
}

// Channel represents the messaging platform that delivers a job.
type Channel string

const (
	ChannelTelegram Channel = "TELEGRAM"
	ChannelWhatsApp Channel = "WHATSAPP"
)

func (c Channel) String() string { return string(c) }

func (c Channel) IsValid() bool {
	switch c {
	case ChannelTelegram, ChannelWhatsApp:
		return true
	}
	return false
}

func ParseChannelFromString(s string) (Channel, error) {
	ch := Channel(strings.ToUpper(strings.TrimSpace(s)))
	if !ch.IsValid() {
		return "", fmt.Errorf("%w: invalid channel %q", ErrValidation, s)
	}
	return ch, nil
}

// Conversation actions carried in button tokens. The set is closed;
// unknown actions arriving on a webhook are logged and ignored.
const (
	ActionShowDetails = "show_details"
	ActionNoThanks    = "no_thanks"
	ActionCloseConvo  = "close_convo"
)

// ActionToken builds the "<action>:<correlation_id>" token embedded in
// interactive buttons. The correlation id is the only key a platform ever
// echoes back, so every callback-bearing button must carry it.
func ActionToken(action, correlationID string) string {
	return action + ":" + correlationID
}

// ParseActionToken splits a button token at the first colon. The correlation
// id is the remainder, so tokens survive correlation ids that themselves
// contain colons.
func ParseActionToken(token string) (action, correlationID string, err error) {
	action, correlationID, found := strings.Cut(token, ":")
	if !found || strings.TrimSpace(action) == "" || strings.TrimSpace(correlationID) == "" {
		return "", "", fmt.Errorf("%w: malformed action token %q", ErrValidation, token)
	}
	return action, correlationID, nil
}

const DefaultMaxAttempts = 5

// NotificationJob is a unit of outbound work in the durable queue.
type NotificationJob struct {
	ID                string  `gorm:"type:uuid;primaryKey"`
	CorrelationID     string  `gorm:"type:uuid;not null;uniqueIndex"`
	Channel           Channel `gorm:"type:varchar(10);not null"`
	Recipient         string  `gorm:"type:varchar(255);not null"`
	Status            Status  `gorm:"type:varchar(10);not null"`
	SearchID          string  `gorm:"type:uuid;not null"`
	LotID             string  `gorm:"type:uuid;not null"`
	ProviderMessageID *string `gorm:"type:varchar(255)"`
	Responded         bool    `gorm:"not null;default:false"`
	ResponseValue     *string `gorm:"type:varchar(64)"`
	RespondedAt       *time.Time
	AttemptCount      int     `gorm:"not null;default:0"`
	MaxAttempts       int     `gorm:"not null;default:5"`
	FailureReason     *string `gorm:"type:text"`
	ClaimedAt         *time.Time
	SentAt            *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (j *NotificationJob) Validate() error {
	if strings.TrimSpace(j.Recipient) == "" {
		return fmt.Errorf("%w: recipient is required", ErrValidation)
	}
	if !j.Channel.IsValid() {
		return fmt.Errorf("%w: invalid channel %q", ErrValidation, j.Channel)
	}
	if strings.TrimSpace(j.SearchID) == "" {
		return fmt.Errorf("%w: search id is required", ErrValidation)
	}
	if strings.TrimSpace(j.LotID) == "" {
		return fmt.Errorf("%w: lot id is required", ErrValidation)
	}
	return nil
}

// AttemptsExhausted reports whether the job already burned its attempt
// budget; a transient failure past this point is treated as permanent.
func (j *NotificationJob) AttemptsExhausted() bool {
	maxAttempts := j.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return j.AttemptCount >= maxAttempts
}
