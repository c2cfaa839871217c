package crawler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestOutcomeWireShape(t *testing.T) {
	t.Parallel()

	ok := Succeeded("https://arxiv.org/pdf/1", Artifact{Path: "arxiv_pdfs/1", Fingerprint: "abc"})
	raw, err := json.Marshal(ok)
	require.NoError(t, err)
	require.JSONEq(t, `{"url":"https://arxiv.org/pdf/1","file":"arxiv_pdfs/1","md5":"abc","status":"success"}`, string(raw))

	failed := Failed("https://arxiv.org/pdf/2", errors.New("404 Not Found"))
	raw, err = json.Marshal(failed)
	require.NoError(t, err)
	require.JSONEq(t, `{"url":"https://arxiv.org/pdf/2","file":null,"md5":null,"status":"error: 404 Not Found"}`, string(raw))

	var decoded Outcome
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Equal(t, failed, decoded)
	require.Equal(t, "404 Not Found", failed.ErrorMessage())
	require.Empty(t, ok.ErrorMessage())

	require.Equal(t, "error: unknown error", Failed("u", nil).Status)
}

func TestStoredRecordWireShape(t *testing.T) {
	t.Parallel()

	rec := StoredRecord{
		ID:         "rec-1",
		BatchID:    "batch-1",
		ReceivedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Outcome:    Failed("https://arxiv.org/pdf/2", errors.New("timeout")),
	}
	raw, err := json.Marshal(rec)
	require.NoError(t, err)
	require.JSONEq(t, `{
		"id":"rec-1","batch_id":"batch-1","received_at":"2024-01-02T03:04:05Z",
		"url":"https://arxiv.org/pdf/2","file":null,"md5":null,"status":"error: timeout"
	}`, string(raw))
}

func TestLinkSetDeduplicates(t *testing.T) {
	t.Parallel()

	s := NewLinkSet("a", "b", "a", "", "c", "b")
	require.Equal(t, 3, s.Len())
	require.Equal(t, []string{"a", "b", "c"}, s.Links())
	require.True(t, s.Contains("c"))
	require.False(t, s.Contains("d"))
	require.False(t, s.Add("a"))
	require.True(t, s.Add("d"))

	var zero LinkSet
	require.Zero(t, zero.Len())
	require.False(t, zero.Contains("a"))
}

func TestResolveURL(t *testing.T) {
	t.Parallel()

	base, err := url.Parse("https://arxiv.org")
	require.NoError(t, err)

	got, err := ResolveURL(base, "/pdf/2401.00001v1#page=2")
	require.NoError(t, err)
	require.Equal(t, "https://arxiv.org/pdf/2401.00001v1", got)

	got, err = ResolveURL(base, "https://ocw.mit.edu/a.pdf")
	require.NoError(t, err)
	require.Equal(t, "https://ocw.mit.edu/a.pdf", got)

	_, err = ResolveURL(base, "http://[::1")
	require.Error(t, err)
}

func TestFileName(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"https://arxiv.org/pdf/2401.00001v1":          "2401.00001v1",
		"https://ocw.mit.edu/courses/x/lec1.pdf?dl=1": "lec1.pdf",
		"https://example.com/":                        "index",
		"https://example.com":                         "index",
		"://bad":                                      "index",
	}
	for in, want := range cases {
		require.Equal(t, want, FileName(in), in)
	}
}

func TestFetchError(t *testing.T) {
	t.Parallel()

	statusErr := NewStatusError("https://arxiv.org/list", http.StatusNotFound)
	require.Equal(t, "404 Not Found: https://arxiv.org/list", statusErr.Error())

	cause := errors.New("dial tcp: connection refused")
	transportErr := &FetchError{URL: "https://arxiv.org", Err: cause}
	require.ErrorIs(t, transportErr, cause)
	require.Contains(t, transportErr.Error(), "connection refused")

	require.True(t, IsSuccessStatus(204))
	require.False(t, IsSuccessStatus(301))
}

func TestFetchResponseCookie(t *testing.T) {
	t.Parallel()

	resp := FetchResponse{Cookies: []*http.Cookie{{Name: "sessionid", Value: "v"}}}
	c, ok := resp.Cookie("sessionid")
	require.True(t, ok)
	require.Equal(t, "v", c.Value)
	_, ok = resp.Cookie("other")
	require.False(t, ok)
}

func TestProfiles(t *testing.T) {
	t.Parallel()

	for kind, p := range DefaultProfiles() {
		if kind == ProfileArticleFeed {
			require.Error(t, p.Validate(), "article feed needs a login url")
			p.LoginURL = "https://example.com/login"
		}
		require.NoError(t, p.Validate(), kind)
	}

	_, err := ParseProfileKind("gopher")
	require.Error(t, err)
	kind, err := ParseProfileKind("mit_resource")
	require.NoError(t, err)
	require.Equal(t, ProfileMITResource, kind)

	require.Error(t, SiteProfile{Kind: ProfileArxiv, BaseURL: "x", PDFPathPrefix: "/pdf/"}.Validate(), "scratch dir required")
}
