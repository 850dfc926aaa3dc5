package emailsvc

import (
	"bytes"
	"log"
	"net/mail"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jayalms/lms/core"
	appfs "github.com/jayalms/lms/fs"
)

func TestConsoleService(t *testing.T) {
	core.ParseEmailTemplates(appfs.FS, core.NopLogger)
	conf := core.NewTestConfig()
	conf.FrontendBaseURL = "https://lms.test"

	var out bytes.Buffer
	svc := NewConsoleService(conf, log.New(&out, "", 0), core.NopLogger)
	svc.sync = true

	svc.SendMessages(
		&core.EmailMessage{
			To:           []mail.Address{{Name: "Jaya", Address: "jaya@test.cd"}},
			Subject:      "Welcome!",
			TemplateName: "welcome",
			TemplateData: map[string]interface{}{"Name": "Jaya"},
		},
		&core.EmailMessage{Subject: "no recipients", BodyStr: "dropped"},
		&core.EmailMessage{To: []mail.Address{{Address: "x@test.cd"}}, TemplateName: "missing"},
	)

	sent := svc.SentMessages()
	require.Len(t, sent, 1)
	msg := sent[0]
	assert.Contains(t, msg.TextContent, "Hi Jaya,")
	assert.Contains(t, msg.TextContent, "Welcome to Jaya LMS!")
	assert.Contains(t, msg.TextContent, "https://lms.test/login")
	assert.Contains(t, msg.HTMLContent, "Jaya")

	printed := out.String()
	assert.Contains(t, printed, "Subject: [Jaya LMS] Welcome!")
	assert.Contains(t, printed, `To: "Jaya" <jaya@test.cd>`)
	assert.Contains(t, printed, "Content-Type: text/html")
}

func TestRender_BodyStr(t *testing.T) {
	msg := core.EmailMessage{BodyStr: "plain body"}
	require.NoError(t, msg.Render("App", "https://lms.test"))
	assert.Equal(t, "plain body", msg.TextContent)
	assert.Empty(t, msg.HTMLContent)
}
