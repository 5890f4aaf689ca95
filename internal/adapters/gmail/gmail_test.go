package gmail

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mikey/phish-scorer/internal/core"
	"github.com/mikey/phish-scorer/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/oauth2"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

func enc(s string) string {
	return base64.URLEncoding.EncodeToString([]byte(s))
}

func newTestSource(t *testing.T) *Source {
	return &Source{textProcessor: utils.NewTextProcessor(zaptest.NewLogger(t)), logger: zaptest.NewLogger(t)}
}

func TestExtractBodyOrder(t *testing.T) {
	s := newTestSource(t)

	// Payload data wins
	assert.Equal(t, "direct", s.extractBody(&gmailapi.MessagePart{
		MimeType: "text/plain",
		Body:     &gmailapi.MessagePartBody{Data: enc("direct")},
		Parts:    []*gmailapi.MessagePart{{MimeType: "text/plain", Body: &gmailapi.MessagePartBody{Data: enc("part")}}},
	}))

	// text/plain preferred over an earlier text/html part
	assert.Equal(t, "plain body", s.extractBody(&gmailapi.MessagePart{
		MimeType: "multipart/alternative",
		Parts: []*gmailapi.MessagePart{
			{MimeType: "text/html", Body: &gmailapi.MessagePartBody{Data: enc("<p>html body</p>")}},
			{MimeType: "text/plain", Body: &gmailapi.MessagePartBody{Data: enc("plain body")}},
		},
	}))

	// HTML is rendered to text with links kept
	html := s.extractBody(&gmailapi.MessagePart{
		MimeType: "multipart/alternative",
		Parts: []*gmailapi.MessagePart{
			{MimeType: "text/html", Body: &gmailapi.MessagePartBody{Data: enc(`<p>Go <a href="http://x.tk/a">here</a></p>`)}},
		},
	})
	assert.Contains(t, html, "http://x.tk/a")
	assert.NotContains(t, html, "<p>")

	// Nested multipart
	assert.Equal(t, "nested", s.extractBody(&gmailapi.MessagePart{
		MimeType: "multipart/mixed",
		Parts: []*gmailapi.MessagePart{
			{MimeType: "application/pdf", Body: &gmailapi.MessagePartBody{AttachmentId: "att1"}},
			{MimeType: "multipart/alternative", Parts: []*gmailapi.MessagePart{
				{MimeType: "text/plain", Body: &gmailapi.MessagePartBody{Data: enc("nested")}},
			}},
		},
	}))

	assert.Equal(t, "", s.extractBody(&gmailapi.MessagePart{MimeType: "multipart/mixed"}))
	assert.Equal(t, "", s.extractBody(nil))
}

func TestToMessageAttachments(t *testing.T) {
	s := newTestSource(t)

	msg := s.toMessage(&gmailapi.Message{
		Id: "m1",
		Payload: &gmailapi.MessagePart{
			MimeType: "multipart/mixed",
			Headers:  []*gmailapi.MessagePartHeader{{Name: "From", Value: "billing@paypa1.net"}},
			Parts: []*gmailapi.MessagePart{
				{MimeType: "text/plain", Body: &gmailapi.MessagePartBody{Data: enc("see attached")}},
				{MimeType: "application/x-msdownload", Filename: "invoice.pdf.exe", Body: &gmailapi.MessagePartBody{AttachmentId: "a1", Size: 2048}},
			},
		},
	})

	assert.Equal(t, "billing@paypa1.net", msg.Sender)
	assert.Equal(t, "No Subject", msg.Subject)
	assert.Equal(t, "see attached", msg.Body)
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, core.Attachment{Filename: "invoice.pdf.exe", ContentType: "application/x-msdownload", Size: 2048}, msg.Attachments[0])
}

func TestDecodeData(t *testing.T) {
	assert.Equal(t, "hi?>", decodeData(base64.URLEncoding.EncodeToString([]byte("hi?>"))))
	assert.Equal(t, "hi?>", decodeData(base64.RawURLEncoding.EncodeToString([]byte("hi?>"))))
	assert.Equal(t, "", decodeData("!!!"))
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/gmail/v1/users/me/messages":
			assert.Equal(t, "2", r.URL.Query().Get("maxResults"))
			fmt.Fprint(w, `{"messages":[{"id":"m1","threadId":"t1"},{"id":"m2","threadId":"t2"}]}`)
		case "/gmail/v1/users/me/messages/m1":
			fmt.Fprintf(w, `{"id":"m1","payload":{"mimeType":"text/plain","headers":[{"name":"From","value":"security@paypa1.net"},{"name":"Subject","value":"Verify"}],"body":{"data":%q}}}`,
				enc("Log in at http://secure-bank.tk/login"))
		case "/gmail/v1/users/me/messages/m2":
			fmt.Fprint(w, `{"id":"m2","payload":{"mimeType":"multipart/mixed","headers":[]}}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	logger := zaptest.NewLogger(t)
	source, err := NewSource(context.Background(), srv.Client(), "", 2, utils.NewTextProcessor(logger), logger,
		option.WithEndpoint(srv.URL+"/"))
	require.NoError(t, err)

	msgs, err := source.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	assert.Equal(t, "m1", msgs[0].ID)
	assert.Equal(t, "security@paypa1.net", msgs[0].Sender)
	assert.Equal(t, "Verify", msgs[0].Subject)
	assert.Equal(t, "Log in at http://secure-bank.tk/login", msgs[0].Body)

	assert.Equal(t, "Unknown", msgs[1].Sender)
	assert.Equal(t, "No Subject", msgs[1].Subject)
	assert.Equal(t, "", msgs[1].Body)
}

func TestFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	logger := zaptest.NewLogger(t)
	source, err := NewSource(context.Background(), srv.Client(), "me", 5, utils.NewTextProcessor(logger), logger,
		option.WithEndpoint(srv.URL+"/"))
	require.NoError(t, err)

	_, err = source.Fetch(context.Background())
	assert.Error(t, err)
}

func newTokenServer(t *testing.T) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		if r.Form.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error":"invalid_grant"}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"access-1","token_type":"Bearer","refresh_token":"refresh-1","expires_in":3600}`)
	}))
}

func testOAuthConfig(tokenURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		Endpoint:     oauth2.Endpoint{AuthURL: "https://accounts.example/auth", TokenURL: tokenURL},
		Scopes:       []string{gmailapi.GmailReadonlyScope},
	}
}

func TestConsoleAuthorization(t *testing.T) {
	srv := newTokenServer(t)
	defer srv.Close()

	tokenFile := filepath.Join(t.TempDir(), "token.json")
	a, err := newAuthorizer(testOAuthConfig(srv.URL), tokenFile, AuthModeConsole, "", zaptest.NewLogger(t))
	require.NoError(t, err)

	var out bytes.Buffer
	a.in = strings.NewReader("good-code\n")
	a.out = &out

	client, err := a.Client(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, client)
	assert.Contains(t, out.String(), "https://accounts.example/auth?")

	tok, err := loadToken(tokenFile)
	require.NoError(t, err)
	assert.Equal(t, "access-1", tok.AccessToken)
	assert.Equal(t, "refresh-1", tok.RefreshToken)

	info, err := os.Stat(tokenFile)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	// Cached token skips the flow
	a.in = strings.NewReader("")
	_, err = a.Client(context.Background())
	assert.NoError(t, err)
}

func TestConsoleAuthorizationBadCode(t *testing.T) {
	srv := newTokenServer(t)
	defer srv.Close()

	a, err := newAuthorizer(testOAuthConfig(srv.URL), filepath.Join(t.TempDir(), "token.json"), AuthModeConsole, "", zaptest.NewLogger(t))
	require.NoError(t, err)
	a.out = io.Discard

	a.in = strings.NewReader("bad-code\n")
	_, err = a.Client(context.Background())
	assert.Error(t, err)

	a.in = strings.NewReader("")
	_, err = a.Client(context.Background())
	assert.Error(t, err)
}

func TestCallbackAuthorization(t *testing.T) {
	srv := newTokenServer(t)
	defer srv.Close()

	a, err := newAuthorizer(testOAuthConfig(srv.URL), filepath.Join(t.TempDir(), "token.json"), AuthModeCallback, "127.0.0.1:0", zaptest.NewLogger(t))
	require.NoError(t, err)

	pr, pw := io.Pipe()
	a.out = pw

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	type result struct {
		tok *oauth2.Token
		err error
	}
	done := make(chan result, 1)
	go func() {
		tok, err := a.authorize(ctx)
		done <- result{tok, err}
	}()

	// Second printed line is the consent URL
	scanner := bufio.NewScanner(pr)
	require.True(t, scanner.Scan())
	require.True(t, scanner.Scan())
	consent, err := url.Parse(scanner.Text())
	require.NoError(t, err)

	redirect := consent.Query().Get("redirect_uri")
	state := consent.Query().Get("state")
	require.True(t, strings.HasPrefix(redirect, "http://127.0.0.1:"))

	resp, err := http.Get(redirect + "?state=wrong&code=good-code")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(redirect + "?state=" + url.QueryEscape(state) + "&code=good-code")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, "access-1", res.tok.AccessToken)
}

func TestUnsupportedAuthMode(t *testing.T) {
	_, err := newAuthorizer(testOAuthConfig("http://unused"), "token.json", "device", "", zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestNewAuthorizerMissingCredentials(t *testing.T) {
	_, err := NewAuthorizer(filepath.Join(t.TempDir(), "missing.json"), "token.json", AuthModeConsole, "", zaptest.NewLogger(t))
	assert.Error(t, err)
}
