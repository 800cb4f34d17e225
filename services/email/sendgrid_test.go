package emailsvc

import (
	"net/mail"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/cts/core"
)

func TestSendgridService_prepare(t *testing.T) {
	conf := &core.Config{
		AppName:          "CTS",
		Env:              "QA",
		DefaultFromEmail: mail.Address{Name: "CTS", Address: "noreply@cts.test"},
	}
	svc := NewSendgridService(conf, nopLogger{}).(*sendgridService)

	msg := core.EmailMessage{
		To:           []mail.Address{{Name: "Ada", Address: "ada@cts.test"}},
		Subject:      "Application submitted",
		TemplateName: "application_submitted",
		TextContent:  "text",
		HTMLContent:  "<p>html</p>",
	}
	m := svc.prepare(msg)

	require.Len(t, m.Personalizations, 1)
	p := m.Personalizations[0]
	assert.Equal(t, "[CTS] Application submitted", p.Subject)
	require.Len(t, p.To, 1)
	assert.Equal(t, "ada@cts.test", p.To[0].Address)
	assert.Equal(t, "noreply@cts.test", m.From.Address)
	assert.Equal(t, []string{"application_submitted"}, m.Categories)
	assert.Equal(t, map[string]string{"env": "QA"}, m.CustomArgs)
	require.Len(t, m.Content, 2)
	assert.Equal(t, "text/plain", m.Content[0].Type)
	assert.Equal(t, "text/html", m.Content[1].Type)

	t.Run("plain message", func(t *testing.T) {
		m := svc.prepare(core.EmailMessage{To: msg.To, Subject: "Hi", TextContent: "hi"})
		assert.Empty(t, m.Categories)
		assert.Len(t, m.Content, 1)
	})
}
