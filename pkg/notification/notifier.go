package notification

import "context"

// NoticeType identifies a kind of notification, e.g. a password reset.
type NoticeType string

const (
	PasswordResetNotice NoticeType = "password_reset_init"
)

type NotificationData struct {
	To   string            // Recipient identifier (e.g., email address)
	Data map[string]string // Values substituted into the notice template
}

// NoticeTemplate holds the renderable parts of a notice. Text and Html
// are Go template sources; either may be empty.
type NoticeTemplate struct {
	Subject string
	Text    string
	Html    string
}

type Notifier interface {
	Send(ctx context.Context, noticeType NoticeType, notification NotificationData, template NoticeTemplate) error
}
