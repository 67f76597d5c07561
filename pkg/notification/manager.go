package notification

import (
	"context"

	apperrors "github.com/tendant/simple-account/pkg/errors"
)

// Manager routes notices to a registered notifier with the template
// registered for the notice type. BaseURL is the public address of the
// service, used by callers to build links embedded in notices.
type Manager struct {
	BaseURL string

	notifier  Notifier
	templates map[NoticeType]NoticeTemplate
}

func NewManager(baseURL string, notifier Notifier) *Manager {
	m := &Manager{
		BaseURL:   baseURL,
		notifier:  notifier,
		templates: make(map[NoticeType]NoticeTemplate),
	}
	m.RegisterTemplate(PasswordResetNotice, NoticeTemplate{
		Subject: "Password Reset Request",
		Text:    passwordResetText,
		Html:    passwordResetHtml,
	})
	return m
}

// RegisterTemplate adds or replaces the template for a notice type.
func (m *Manager) RegisterTemplate(noticeType NoticeType, template NoticeTemplate) {
	m.templates[noticeType] = template
}

// Send delivers a notice of the given type. It fails when no template
// is registered for the type.
func (m *Manager) Send(ctx context.Context, noticeType NoticeType, notification NotificationData) error {
	template, exists := m.templates[noticeType]
	if !exists {
		return apperrors.Newf(apperrors.ErrCodeInvalidInput, "no template registered for notice type: %s", noticeType)
	}
	return m.notifier.Send(ctx, noticeType, notification, template)
}

const passwordResetText = `Hi {{.Username}},

We received a request to reset your password. Open the link below to
choose a new one. The link expires in one hour.

{{.Link}}

If you did not request a reset, you can ignore this message.
`

const passwordResetHtml = `<p>Hi {{.Username}},</p>
<p>We received a request to reset your password. Click the link below to
choose a new one. The link expires in one hour.</p>
<p><a href="{{.Link}}">Reset your password</a></p>
<p>If you did not request a reset, you can ignore this message.</p>
`
