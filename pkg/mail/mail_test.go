package mail

import (
	"context"
	"html/template"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplateBody(t *testing.T) {
	tmpl := template.Must(template.New("greet").Parse(`<p>Hi {{.Name}}</p>`))
	m := To("user@example.com").WithSubject("Hello").Template(tmpl, map[string]string{"Name": "<Ana>"})

	require.NoError(t, m.Err())
	assert.Equal(t, "<p>Hi &lt;Ana&gt;</p>", m.Body)

	raw := string(m.raw("Store <orders@example.com>"))
	assert.True(t, strings.HasPrefix(raw, "From: Store <orders@example.com>\r\n"))
	assert.Contains(t, raw, "Content-Type: text/html")
}

func TestRecorderRejectsEmptyRecipients(t *testing.T) {
	var r Recorder
	assert.Error(t, r.Send(context.Background(), To().Text("x")))
	assert.NoError(t, r.Send(context.Background(), To("a@b.c").Text("x")))
	assert.Len(t, r.Messages(), 1)
}
