package emailsvc

import (
	"bytes"
	"io"
	"net/mail"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-lms/core"
	"github.com/trezcool/masomo-lms/fs"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

func testConfig() *core.Config {
	return &core.Config{
		AppName:          "Masomo",
		TestMode:         true,
		FrontendBaseURL:  "http://localhost:3000",
		DefaultFromEmail: "Masomo <noreply@localhost>",
	}
}

func TestConsoleServiceMock_SendMessages(t *testing.T) {
	conf := testConfig()
	core.ParseEmailTemplates(appfs.FS, "assets/templates/email", conf, nopLogger{})
	svc := NewConsoleServiceMock(conf, nopLogger{})

	svc.SendMessages(
		&core.EmailMessage{
			To:           []mail.Address{{Name: "Jane", Address: "jane@example.com"}},
			Subject:      "Password Reset",
			TemplateName: "password_reset",
			TemplateData: map[string]string{"Name": "Jane", "UID": "dWlk", "Token": "tok-123"},
		},
		&core.EmailMessage{Subject: "no recipients", BodyStr: "dropped"},
	)

	sent := svc.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "Password Reset", sent[0].Subject)
	assert.Contains(t, sent[0].TextContent, "Hi Jane")
	assert.Contains(t, sent[0].TextContent, "uid=dWlk&token=tok-123")
	assert.NotEmpty(t, sent[0].HTMLContent)

	svc.Reset()
	assert.Empty(t, svc.SentMessages())
}

func TestConsoleService_send(t *testing.T) {
	var out bytes.Buffer
	svc := consoleService{
		defaultFromEmail: mail.Address{Name: "Masomo", Address: "noreply@localhost"},
		subjPrefix:       "[Masomo] ",
		out:              &out,
		logger:           nopLogger{},
	}
	msg := &core.EmailMessage{
		To:      []mail.Address{{Address: "jane@example.com"}},
		Subject: "Hello",
		BodyStr: "plain body",
	}
	require.NoError(t, msg.Attach(strings.NewReader("a,b\n1,2\n"), "grades.csv", "text/csv"))

	assert.True(t, svc.sendMessage(msg))
	got := out.String()
	assert.Contains(t, got, "Subject: [Masomo] Hello")
	assert.Contains(t, got, "To: <jane@example.com>")
	assert.Contains(t, got, "multipart/mixed")
	assert.Contains(t, got, "plain body")
	assert.Contains(t, got, "filename=grades.csv")
}

func TestConsoleService_discardedOutput(t *testing.T) {
	svc := consoleService{out: io.Discard, logger: nopLogger{}}
	assert.False(t, svc.sendMessage(&core.EmailMessage{Subject: "empty"}))
}
