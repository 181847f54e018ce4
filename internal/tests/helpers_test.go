package tests

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// device is one browser: its own cookie jar and optionally a creator token
type device struct {
	t       *testing.T
	baseURL string
	client  *http.Client
	token   string
}

func (s *testServer) newDevice(t *testing.T, token string) *device {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &device{t: t, baseURL: s.Server.URL, client: &http.Client{Jar: jar}, token: token}
}

func (d *device) do(method, path string, body io.Reader, contentType string) (int, []byte) {
	d.t.Helper()
	req, err := http.NewRequest(method, d.baseURL+path, body)
	require.NoError(d.t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if d.token != "" {
		req.Header.Set("Authorization", "Bearer "+d.token)
	}
	resp, err := d.client.Do(req)
	require.NoError(d.t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(d.t, err)
	return resp.StatusCode, data
}

func (d *device) json(method, path string, in any, out any) int {
	d.t.Helper()
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		require.NoError(d.t, err)
		body = bytes.NewReader(data)
	}
	status, data := d.do(method, path, body, "application/json")
	if out != nil && len(data) > 0 {
		require.NoError(d.t, json.Unmarshal(data, out), "body: %s", data)
	}
	return status
}

func (d *device) text(method, path, body string) (int, []byte) {
	d.t.Helper()
	return d.do(method, path, strings.NewReader(body), "text/plain")
}

type contact struct {
	Name     string `json:"name"`
	DialCode string `json:"dial_code"`
	Number   string `json:"number"`
}

type sessionBody struct {
	Session struct {
		ID               string `json:"id"`
		Name             string `json:"name"`
		ParticipantCount int    `json:"participant_count"`
	} `json:"session"`
	View struct {
		Role  string `json:"role"`
		Phase string `json:"phase"`
	} `json:"view"`
	Permissions struct {
		CanAdd      bool `json:"can_add"`
		CanViewList bool `json:"can_view_list"`
		CanDownload bool `json:"can_download"`
	} `json:"permissions"`
	JoinURL              string            `json:"join_url"`
	DownloadURL          string            `json:"download_url"`
	RemainingSubmissions int               `json:"remaining_submissions"`
	DownloadReadyIn      int               `json:"download_ready_in"`
	Participants         []participantBody `json:"participants"`
}

type participantBody struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type submitBody struct {
	Participant  participantBody `json:"participant"`
	LimitReached bool            `json:"limit_reached"`
	Remaining    int             `json:"remaining"`
	RedirectTo   string          `json:"redirect_to"`
}

type errorBody struct {
	Error     string `json:"error"`
	Field     string `json:"field"`
	Retryable bool   `json:"retryable"`
}
