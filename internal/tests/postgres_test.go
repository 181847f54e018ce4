package tests

import (
	"context"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vcfgather/server/internal/config"
	"github.com/vcfgather/server/internal/model"
	"github.com/vcfgather/server/internal/realtime"
	"github.com/vcfgather/server/internal/repo"
)

func requireDatabase(t *testing.T) {
	t.Helper()
	if os.Getenv("DATABASE_URL") == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}
}

// TestPostgresE2E repeats the core flow against a real database
func TestPostgresE2E(t *testing.T) {
	requireDatabase(t)

	ts := newTestServer(t, config.DriverPostgres)
	token, err := ts.JWT.SignCreatorToken(uuid.New())
	require.NoError(t, err)
	creator := ts.newDevice(t, token)
	anon := ts.newDevice(t, "")

	var body map[string]bool
	require.Equal(t, http.StatusOK, anon.json(http.MethodGet, "/health", nil, &body))
	assert.True(t, body["ok"])

	var created sessionBody
	require.Equal(t, http.StatusCreated, creator.json(http.MethodPost, "/sessions", map[string]any{
		"name": "PG Club", "destination_link": "https://example.com",
	}, &created))
	id := created.Session.ID

	require.Equal(t, http.StatusCreated, anon.json(http.MethodPost, "/join/"+id, contact{"Jane Doe", "+1", "5551234567"}, nil))
	assert.Equal(t, http.StatusConflict, anon.json(http.MethodPost, "/join/"+id, contact{"Jane Twin", "+1", "5551234567"}, nil),
		"unique (session_id, phone) surfaces as a duplicate")

	var view sessionBody
	require.Equal(t, http.StatusOK, creator.json(http.MethodGet, "/sessions/"+id, nil, &view))
	assert.Equal(t, 1, view.Session.ParticipantCount, "increment_participant_count ran")
	require.Len(t, view.Participants, 1)

	pid := view.Participants[0].ID
	other := ts.newDevice(t, "")
	{
		otherToken, err := ts.JWT.SignCreatorToken(uuid.New())
		require.NoError(t, err)
		other.token = otherToken
	}
	assert.Equal(t, http.StatusForbidden, other.json(http.MethodDelete, "/sessions/"+id+"/participants/"+pid, nil, nil),
		"only the owning creator's rows are touched")

	status, _ := creator.do(http.MethodDelete, "/sessions/"+id+"/participants/"+pid, nil, "")
	assert.Equal(t, http.StatusNoContent, status)
}

// TestPGStreamDeliversChanges checks the notify trigger reaches a subscriber
func TestPGStreamDeliversChanges(t *testing.T) {
	requireDatabase(t)

	ts := newTestServer(t, config.DriverPostgres)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sessions := repo.NewSessionRepo(ts.App.DB)
	participants := repo.NewParticipantRepo(ts.App.DB)
	s, err := sessions.Create(ctx, model.Session{
		Name: "Stream", CreatorID: uuid.New(), CreatedAt: time.Now().UTC(), DurationMinutes: 5, DestinationLink: "https://example.com",
	})
	require.NoError(t, err)

	stream := realtime.NewPGStream(os.Getenv("DATABASE_URL"), 10*time.Millisecond, time.Second, nil)
	events, err := stream.Subscribe(ctx, model.ChangeFilter{Table: model.TableParticipants, Column: "session_id", Value: s.ID.String()})
	require.NoError(t, err)

	p, err := participants.Insert(ctx, model.Participant{SessionID: s.ID, Name: "Jane Doe", Phone: "+15551234567"})
	require.NoError(t, err)

	select {
	case e, ok := <-events:
		require.True(t, ok)
		assert.Equal(t, model.TableParticipants, e.Table)
		assert.Equal(t, model.OpInsert, e.Op)
		assert.Equal(t, p.ID.String(), e.Record["id"])
	case <-ctx.Done():
		t.Fatal("no notification received")
	}
}
