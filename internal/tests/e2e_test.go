package tests

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vcfgather/server/internal/config"
	"github.com/vcfgather/server/internal/model"
	"github.com/vcfgather/server/internal/quota"
)

// TestSessionE2E runs the whole HTTP flow over the in-memory driver
func TestSessionE2E(t *testing.T) {
	ts := newTestServer(t, config.DriverMemory)
	anon := ts.newDevice(t, "")

	t.Run("A_Health", func(t *testing.T) {
		var body map[string]bool
		status := anon.json(http.MethodGet, "/health", nil, &body)
		assert.Equal(t, http.StatusOK, status)
		assert.True(t, body["ok"])
	})

	var token struct {
		AccessToken string `json:"access_token"`
		CreatorID   string `json:"creator_id"`
	}
	require.Equal(t, http.StatusOK, anon.json(http.MethodPost, "/auth/token", nil, &token))
	require.NotEmpty(t, token.AccessToken)
	creator := ts.newDevice(t, token.AccessToken)

	t.Run("B_CreateRequiresIdentity", func(t *testing.T) {
		status := anon.json(http.MethodPost, "/sessions", map[string]any{"name": "x", "destination_link": "https://example.com"}, nil)
		assert.Equal(t, http.StatusUnauthorized, status)
	})

	var created sessionBody
	status := creator.json(http.MethodPost, "/sessions", map[string]any{
		"name":             "Book Club",
		"destination_link": "https://chat.example.com/invite",
		"duration_minutes": 60,
	}, &created)
	require.Equal(t, http.StatusCreated, status)
	id := created.Session.ID
	require.NotEmpty(t, id)
	assert.Equal(t, "creator", created.View.Role)
	assert.True(t, strings.HasSuffix(created.JoinURL, "/join/"+id))

	t.Run("C_CreateValidation", func(t *testing.T) {
		var body errorBody
		status := creator.json(http.MethodPost, "/sessions", map[string]any{
			"name": "Bad", "destination_link": "not a url", "duration_minutes": 10,
		}, &body)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "destination_link", body.Field)
	})

	t.Run("D_ParticipantView", func(t *testing.T) {
		var body sessionBody
		status := anon.json(http.MethodGet, "/join/"+id, nil, &body)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "participant", body.View.Role)
		assert.Equal(t, "active", body.View.Phase)
		assert.True(t, body.Permissions.CanAdd)
		assert.False(t, body.Permissions.CanViewList)
		assert.Equal(t, quota.SubmissionLimit, body.RemainingSubmissions)
		assert.Empty(t, body.Participants)
		assert.Zero(t, body.DownloadReadyIn)
	})

	t.Run("E_SubmitQuota", func(t *testing.T) {
		var first submitBody
		status := anon.json(http.MethodPost, "/join/"+id, contact{"Jane Doe", "+1", "5551234567"}, &first)
		require.Equal(t, http.StatusCreated, status)
		assert.Equal(t, "+15551234567", first.Participant.Phone)
		assert.Equal(t, 2, first.Remaining)
		assert.False(t, first.LimitReached)
		assert.Equal(t, "https://chat.example.com/invite", first.RedirectTo)

		var second submitBody
		status = anon.json(http.MethodPost, "/sessions/"+id+"/participants", contact{"John Roe", "+44", "7700900123"}, &second)
		require.Equal(t, http.StatusCreated, status)
		assert.False(t, second.LimitReached)
		assert.Equal(t, 1, second.Remaining)

		var third submitBody
		status = anon.json(http.MethodPost, "/join/"+id, contact{"Third Person", "+1", "5550000003"}, &third)
		require.Equal(t, http.StatusCreated, status)
		assert.True(t, third.LimitReached)
		assert.Zero(t, third.Remaining)

		var body errorBody
		status = anon.json(http.MethodPost, "/join/"+id, contact{"Fourth Person", "+1", "5550000004"}, &body)
		assert.Equal(t, http.StatusTooManyRequests, status)

		var view sessionBody
		require.Equal(t, http.StatusOK, anon.json(http.MethodGet, "/join/"+id, nil, &view))
		assert.Zero(t, view.RemainingSubmissions)
	})

	t.Run("F_DuplicateAndValidation", func(t *testing.T) {
		other := ts.newDevice(t, "")

		var body errorBody
		status := other.json(http.MethodPost, "/join/"+id, contact{"Jane Again", "+1", "5551234567"}, &body)
		assert.Equal(t, http.StatusConflict, status)

		status = other.json(http.MethodPost, "/join/"+id, contact{"J", "+1", "5551234567"}, &body)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "name", body.Field)

		// rejected submissions leave the quota untouched
		var view sessionBody
		require.Equal(t, http.StatusOK, other.json(http.MethodGet, "/join/"+id, nil, &view))
		assert.Equal(t, quota.SubmissionLimit, view.RemainingSubmissions)
	})

	t.Run("G_ListGated", func(t *testing.T) {
		status, _ := anon.do(http.MethodGet, "/sessions/"+id+"/participants", nil, "")
		assert.Equal(t, http.StatusForbidden, status)

		status, _ = anon.do(http.MethodGet, "/download/"+id, nil, "")
		assert.Equal(t, http.StatusForbidden, status)

		var list []participantBody
		require.Equal(t, http.StatusOK, creator.json(http.MethodGet, "/sessions/"+id+"/participants", nil, &list))
		assert.Len(t, list, 3)

		require.Equal(t, http.StatusOK, creator.json(http.MethodGet, "/sessions/"+id+"/participants?q=jane", nil, &list))
		require.Len(t, list, 1)
		assert.Equal(t, "Jane Doe", list[0].Name)
	})

	t.Run("H_CreatorManagesContacts", func(t *testing.T) {
		var list []participantBody
		require.Equal(t, http.StatusOK, creator.json(http.MethodGet, "/sessions/"+id+"/participants?q=john", nil, &list))
		require.Len(t, list, 1)
		pid := list[0].ID

		status := anon.json(http.MethodPut, "/sessions/"+id+"/participants/"+pid, contact{"Johnny Roe", "+44", "7700900123"}, nil)
		assert.Equal(t, http.StatusForbidden, status)

		var edited participantBody
		status = creator.json(http.MethodPut, "/sessions/"+id+"/participants/"+pid, contact{"Johnny Roe", "+44", "7700900123"}, &edited)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "Johnny Roe", edited.Name)

		status, _ = creator.do(http.MethodDelete, "/sessions/"+id+"/participants/"+pid, nil, "")
		assert.Equal(t, http.StatusNoContent, status)

		status, _ = creator.do(http.MethodDelete, "/sessions/"+id+"/participants/"+pid, nil, "")
		assert.Equal(t, http.StatusForbidden, status, "deleting twice affects no rows")

		var submitted submitBody
		status = creator.json(http.MethodPost, "/sessions/"+id+"/participants", contact{"Manual Entry", "+1", "5550001111"}, &submitted)
		require.Equal(t, http.StatusCreated, status)
		assert.Empty(t, submitted.RedirectTo, "creators stay on the session page")
		assert.Equal(t, -1, submitted.Remaining)
	})

	t.Run("I_Import", func(t *testing.T) {
		status, _ := anon.text(http.MethodPost, "/sessions/"+id+"/participants/import", "Alice, +15550000001")
		assert.Equal(t, http.StatusUnauthorized, status)

		var res struct {
			Imported int `json:"imported"`
		}
		status, data := creator.text(http.MethodPost, "/sessions/"+id+"/participants/import",
			"Alice, +15550000001\nBob,+15550000002\nX, +15550000003\nJane, +15551234567\n")
		require.Equal(t, http.StatusOK, status, "body: %s", data)
		require.NoError(t, json.Unmarshal(data, &res))
		assert.Equal(t, 2, res.Imported)

		var body errorBody
		status, data = creator.text(http.MethodPost, "/sessions/"+id+"/participants/import", "garbage")
		assert.Equal(t, http.StatusUnprocessableEntity, status)
		require.NoError(t, json.Unmarshal(data, &body))
		assert.Contains(t, body.Error, model.ImportFormatHint)
	})

	t.Run("J_Download", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, ts.Server.URL+"/sessions/"+id+"/download", nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token.AccessToken)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "text/vcard; charset=utf-8", resp.Header.Get("Content-Type"))
		assert.Equal(t, `attachment; filename=Group_Book_Club_Contacts.vcf`, resp.Header.Get("Content-Disposition"))

		var cards int
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			if sc.Text() == "BEGIN:VCARD" {
				cards++
			}
		}
		assert.Equal(t, 5, cards)
	})

	t.Run("K_Dashboard", func(t *testing.T) {
		var d struct {
			Sessions          []map[string]any `json:"sessions"`
			ActiveSessions    int              `json:"active_sessions"`
			TotalParticipants int              `json:"total_participants"`
		}
		require.Equal(t, http.StatusOK, creator.json(http.MethodGet, "/sessions", nil, &d))
		require.Len(t, d.Sessions, 1)
		assert.Equal(t, 1, d.ActiveSessions)
		assert.Equal(t, 6, d.TotalParticipants, "deletes do not decrement the cached count")
	})

	t.Run("L_NotFound", func(t *testing.T) {
		status, _ := anon.do(http.MethodGet, "/join/not-a-uuid", nil, "")
		assert.Equal(t, http.StatusNotFound, status)
		status, _ = anon.do(http.MethodGet, "/sessions/00000000-0000-0000-0000-000000000001", nil, "")
		assert.Equal(t, http.StatusNotFound, status)
	})

	t.Run("M_InvalidToken", func(t *testing.T) {
		bad := ts.newDevice(t, "not-a-token")
		status, _ := bad.do(http.MethodGet, "/join/"+id, nil, "")
		assert.Equal(t, http.StatusUnauthorized, status)
	})

	t.Run("N_Metrics", func(t *testing.T) {
		status, data := anon.do(http.MethodGet, "/metrics", nil, "")
		require.Equal(t, http.StatusOK, status)
		assert.Contains(t, string(data), "vcfgather_participants_added_total")
	})

	t.Run("O_Live", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.Server.URL+"/sessions/"+id+"/live", nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token.AccessToken)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

		events := make(chan string, 16)
		go func() {
			defer close(events)
			sc := bufio.NewScanner(resp.Body)
			sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
			for sc.Scan() {
				if data, ok := strings.CutPrefix(sc.Text(), "data: "); ok {
					events <- data
				}
			}
		}()

		type snapshot struct {
			Participants []participantBody `json:"participants"`
			Synced       bool              `json:"synced"`
		}
		next := func() snapshot {
			t.Helper()
			select {
			case data, ok := <-events:
				require.True(t, ok, "stream closed early")
				var s snapshot
				require.NoError(t, json.Unmarshal([]byte(data), &s))
				return s
			case <-ctx.Done():
				t.Fatal("timed out waiting for snapshot")
				return snapshot{}
			}
		}

		first := next()
		assert.True(t, first.Synced)
		before := len(first.Participants)

		late := ts.newDevice(t, "")
		require.Equal(t, http.StatusCreated, late.json(http.MethodPost, "/join/"+id, contact{"Late Comer", "+1", "5559990000"}, nil))

		// the session row and the participant list may arrive as separate snapshots
		for {
			s := next()
			if len(s.Participants) == before+1 {
				break
			}
		}
	})
}
