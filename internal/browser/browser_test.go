package browser

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestConfigNormalize(t *testing.T) {
	cfg, err := Config{}.Normalize()
	require.NoError(t, err)
	require.Equal(t, EngineChrome, cfg.Engine)
	require.Equal(t, "/usr/bin/google-chrome", cfg.Path)
	require.True(t, *cfg.Headless)

	cfg, err = Config{Engine: " FireFox "}.Normalize()
	require.NoError(t, err)
	require.Equal(t, EngineFirefox, cfg.Engine)
	require.Equal(t, "/usr/bin/firefox", cfg.Path)

	headless := false
	cfg, err = Config{Engine: "chrome", Path: "/opt/chromium", Headless: &headless}.Normalize()
	require.NoError(t, err)
	require.Equal(t, "/opt/chromium", cfg.Path)
	require.False(t, *cfg.Headless)

	_, err = Config{Engine: "safari"}.Normalize()
	require.Error(t, err)
	require.Error(t, Config{Engine: "firefox", RemoteURL: "ws://localhost:9222"}.Validate())
}

func TestNewUnsupportedEngine(t *testing.T) {
	_, err := New(context.Background(), Config{Engine: "lynx"})
	require.ErrorContains(t, err, "unsupported browser engine")
}

func TestFieldAction(t *testing.T) {
	cases := []struct {
		tag, typ, valueAttr, value string
		expected                   action
	}{
		{"TEXTAREA", "", "", "MKV", actionSetValue},
		{"select", "", "", "Virus", actionSetValue},
		{"INPUT", "", "", "x", actionSetValue},
		{"input", "text", "", "x", actionSetValue},
		{"input", "hidden", "", "x", actionSetValue},
		{"input", "FILE", "", "/tmp/a.fa", actionUpload},
		{"input", "radio", "Virus", "Virus", actionClick},
		{"input", "radio", "Bacteria", "Virus", actionSkip},
		{"input", "checkbox", "on", "on", actionClick},
		{"input", "submit", "Submit", "Submit", actionSkip},
		{"div", "", "", "x", actionSkip},
	}
	for _, c := range cases {
		require.Equal(
			t, c.expected,
			fieldAction(c.tag, c.typ, c.valueAttr, c.value),
			"%s type=%s", c.tag, c.typ,
		)
	}
}

func TestNameSelector(t *testing.T) {
	require.Equal(t, `[name="seq"]`, nameSelector("seq"))
	require.Equal(t, `[name="a\"b"]`, nameSelector(`a"b`))
}

const formPage = `<html><body>
<form onsubmit="event.preventDefault(); echo(this)">
<textarea name="sequence"></textarea>
<input type="radio" name="Target" value="Bacteria" checked>
<input type="radio" name="Target" value="Virus">
<input type="checkbox" name="agree" value="on" checked>
<input type="file" name="upload">
<input type="submit" name="Submit" value="Submit">
</form>
<script>
function echo(f) {
	var file = f.upload.files.length ? f.upload.files[0].name : "none";
	var target = f.querySelector("input[name=Target]:checked").value;
	document.body.innerHTML = "<table border=0><tr><td>done</td></tr>" +
		"<tr><td id=sequence>" + f.sequence.value + "</td></tr>" +
		"<tr><td id=target>" + target + "</td></tr>" +
		"<tr><td id=agree>" + f.agree.checked + "</td></tr>" +
		"<tr><td id=upload>" + file + "</td></tr></table>";
}
</script>
</body></html>`

// exerciseForm fills and submits formPage, the page echoes what it received.
func exerciseForm(t *testing.T, ctx context.Context, session Session, uploadPath string) {
	err := session.Open(ctx, "data:text/html,"+url.PathEscape(formPage))
	require.NoError(t, err)

	err = session.Fill(ctx, map[string]string{
		"sequence": "MKVLAAGIV",
		"Target":   "Virus",
		"agree":    "on",
		"upload":   uploadPath,
		"missing":  "ignored",
	})
	require.NoError(t, err)

	err = session.Submit(ctx, "button.does-not-exist")
	require.ErrorIs(t, err, ErrSubmission)

	require.NoError(t, session.Submit(ctx, "input[name='Submit']"))

	var html string
	require.Eventually(t, func() bool {
		html, err = session.HTML(ctx)
		return err == nil && strings.Contains(html, "done")
	}, 10*time.Second, 200*time.Millisecond)

	require.Contains(t, html, `<td id="sequence">MKVLAAGIV</td>`)
	require.Contains(t, html, `<td id="target">Virus</td>`)
	// filling a checkbox that is already checked keeps it checked
	require.Contains(t, html, `<td id="agree">true</td>`)
	require.Contains(t, html, `<td id="upload">input_0.fa</td>`)
}

func TestRemoteChrome(t *testing.T) {
	if testing.Short() {
		t.Skip("requires docker")
	}

	// suppress logging
	testcontainers.Logger = log.New(io.Discard, "", 0)

	ctx := context.Background()
	shell, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		Started: true,
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "chromedp/headless-shell:latest",
			ExposedPorts: []string{"9222/tcp"},
			WaitingFor:   wait.ForListeningPort("9222/tcp"),
		},
	})
	require.NoError(t, err)
	defer func() {
		require.NoError(t, shell.Terminate(ctx))
	}()

	// the browser runs in the container so the upload has to exist there
	const uploadPath = "/tmp/input_0.fa"
	err = shell.CopyToContainer(ctx, []byte(">seq1\nMKVLAAGIV\n"), uploadPath, 0o644)
	require.NoError(t, err)

	host, err := shell.Host(ctx)
	require.NoError(t, err)
	port, err := shell.MappedPort(ctx, "9222/tcp")
	require.NoError(t, err)

	session, err := New(ctx, Config{RemoteURL: fmt.Sprintf("http://%s:%s", host, port.Port())})
	require.NoError(t, err)
	defer session.Close()

	exerciseForm(t, ctx, session, uploadPath)
}

func TestFirefox(t *testing.T) {
	if testing.Short() {
		t.Skip("requires a playwright firefox install")
	}

	ctx := context.Background()
	session, err := New(ctx, Config{Engine: EngineFirefox})
	if err != nil {
		t.Skipf("firefox unavailable: %v", err)
	}
	defer session.Close()

	uploadPath := filepath.Join(t.TempDir(), "input_0.fa")
	require.NoError(t, os.WriteFile(uploadPath, []byte(">seq1\nMKVLAAGIV\n"), 0o644))

	exerciseForm(t, ctx, session, uploadPath)
}
