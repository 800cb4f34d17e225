package core

import (
	"io/fs"
	"net/mail"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appfs "github.com/trezcool/cts/fs"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

func TestEmailMessage_Render(t *testing.T) {
	ParseEmailTemplates(&Config{FrontendBaseURL: "http://cts.test", TestMode: true}, nopLogger{})

	t.Run("templated", func(t *testing.T) {
		msg := NewEmailMessage(
			mail.Address{Name: "Ada", Address: "ada@test.cd"},
			"Credit transfer submitted",
			"application_submitted",
			map[string]string{"Name": "Ada", "Reference": "CT-ABC123"},
		)
		require.NoError(t, msg.Render())
		assert.True(t, msg.HasRecipients())
		assert.True(t, msg.HasContent())
		assert.Contains(t, msg.TextContent, "CT-ABC123")
		assert.Contains(t, msg.TextContent, "http://cts.test/student")
		assert.Contains(t, msg.HTMLContent, "<b>CT-ABC123</b>")
	})

	t.Run("missing key", func(t *testing.T) {
		msg := NewEmailMessage(mail.Address{Address: "ada@test.cd"}, "x", "application_submitted", map[string]string{"Name": "Ada"})
		assert.Error(t, msg.Render())
	})

	t.Run("unknown template", func(t *testing.T) {
		msg := NewEmailMessage(mail.Address{Address: "ada@test.cd"}, "x", "no_such_template", nil)
		assert.EqualError(t, msg.Render(), `email template "no_such_template" not found`)
		assert.False(t, msg.HasContent())
	})

	t.Run("plain body", func(t *testing.T) {
		msg := &EmailMessage{To: []mail.Address{{Address: "ada@test.cd"}}, BodyStr: "hello"}
		require.NoError(t, msg.Render())
		assert.Equal(t, "hello", msg.TextContent)
		assert.Empty(t, msg.HTMLContent)
	})
}

func TestParseTemplates(t *testing.T) {
	for _, base := range []string{"_base.txt", "_base.gohtml"} {
		_, err := fs.Stat(appfs.FS, emailTemplatesDir+"/"+base)
		require.NoError(t, err, "%s is not embedded", base)
	}

	require.NoError(t, parseTemplates())
	for _, name := range []string{"application_status", "application_submitted", "appointment_updated", "password_reset", "subject_assigned"} {
		entry, ok := templates[name]
		require.True(t, ok, name)
		assert.Len(t, entry, 2, name)
	}
}

func TestEmailMessage_Attach(t *testing.T) {
	msg := new(EmailMessage)
	require.NoError(t, msg.Attach(strings.NewReader("hello"), "hello.txt"))
	require.True(t, msg.HasAttachments())

	at := msg.Attachments[0]
	assert.Equal(t, "hello.txt", at.Filename)
	assert.Equal(t, "aGVsbG8=", at.Content.String())
	assert.Equal(t, "text/plain; charset=utf-8", at.ContentType)
}

func TestOrderByClause(t *testing.T) {
	allowed := map[string]string{"created_at": "a.created_at", "name": "a.name"}
	tests := []struct {
		name string
		ords []DBOrdering
		want string
	}{
		{name: "empty", want: "a.created_at DESC"},
		{name: "unknown field", ords: []DBOrdering{{Field: "password_hash"}}, want: "a.created_at DESC"},
		{name: "asc", ords: []DBOrdering{{Field: "name", Ascending: true}}, want: "a.name ASC"},
		{
			name: "multiple", ords: []DBOrdering{{Field: "name", Ascending: true}, {Field: "created_at"}},
			want: "a.name ASC, a.created_at DESC",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, OrderByClause(tt.ords, allowed, "a.created_at DESC"))
		})
	}
}
