package emailsvc

import (
	"net/mail"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/cts/core"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

func TestConsoleServiceMock_SendMessages(t *testing.T) {
	conf := &core.Config{AppName: "CTS", TestMode: true, FrontendBaseURL: "http://cts.test"}
	core.ParseEmailTemplates(conf, nopLogger{})
	ClearSentMessages()
	svc := NewConsoleServiceMock(conf, nopLogger{})

	withAttachment := &core.EmailMessage{To: []mail.Address{{Address: "sme@test.cd"}}, Subject: "Syllabus", BodyStr: "see attached"}
	require.NoError(t, withAttachment.Attach(strings.NewReader("%PDF-1.4"), "syllabus.pdf", "application/pdf"))

	svc.SendMessages(
		core.NewEmailMessage(
			mail.Address{Name: "Ada", Address: "ada@test.cd"},
			"Credit transfer application approved",
			"application_status",
			map[string]string{"Name": "Ada", "Reference": "CT-ABC", "Status": "approved", "Notes": ""},
		),
		&core.EmailMessage{Subject: "no recipient", BodyStr: "dropped"},
		core.NewEmailMessage(mail.Address{Address: "ada@test.cd"}, "broken", "application_status", map[string]string{}),
		withAttachment,
	)

	outbox := Outbox()
	require.Len(t, outbox, 2)
	assert.Equal(t, "Credit transfer application approved", outbox[0].Subject)
	assert.Contains(t, outbox[0].TextContent, "CT-ABC")
	assert.True(t, outbox[1].HasAttachments())

	ClearSentMessages()
	assert.Empty(t, Outbox())
}
