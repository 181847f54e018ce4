package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vcfgather/server/internal/model"
)

func TestCreatorToken_RoundTrip(t *testing.T) {
	svc := NewJWTService("test-secret")
	id := uuid.New()

	token, err := svc.SignCreatorToken(id)
	require.NoError(t, err)

	got, err := svc.VerifyCreatorToken(token)
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestCreatorToken_RejectsNilCreator(t *testing.T) {
	_, err := NewJWTService("test-secret").SignCreatorToken(uuid.Nil)
	assert.Error(t, err)
}

func TestCreatorToken_WrongSecret(t *testing.T) {
	token, err := NewJWTService("secret-a").SignCreatorToken(uuid.New())
	require.NoError(t, err)

	_, err = NewJWTService("secret-b").VerifyCreatorToken(token)
	assert.Error(t, err)
}

func TestCreatorToken_Expired(t *testing.T) {
	svc := NewJWTService("test-secret")
	issued := time.Now().Add(-31 * 24 * time.Hour)
	svc.now = func() time.Time { return issued }

	token, err := svc.SignCreatorToken(uuid.New())
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.VerifyCreatorToken(token)
	assert.Error(t, err)
}

func TestCreatorToken_Garbage(t *testing.T) {
	_, err := NewJWTService("test-secret").VerifyCreatorToken("not.a.token")
	assert.Error(t, err)
}

func TestDeviceRecord_RoundTrip(t *testing.T) {
	svc := NewJWTService("test-secret")
	device, session := uuid.New(), uuid.New()
	rec := model.DeviceRecord{
		{Name: "Jane Doe", Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)},
		{Name: "John Roe", Timestamp: time.Date(2026, 1, 2, 3, 5, 0, 0, time.UTC)},
	}

	token, err := svc.SignDeviceRecord(device, session, rec)
	require.NoError(t, err)

	got, err := svc.ParseDeviceRecord(token, device, session)
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

func TestDeviceRecord_BoundToDeviceAndSession(t *testing.T) {
	svc := NewJWTService("test-secret")
	device, session := uuid.New(), uuid.New()

	token, err := svc.SignDeviceRecord(device, session, model.DeviceRecord{{Name: "Jane", Timestamp: time.Now().UTC()}})
	require.NoError(t, err)

	_, err = svc.ParseDeviceRecord(token, uuid.New(), session)
	assert.Error(t, err)

	_, err = svc.ParseDeviceRecord(token, device, uuid.New())
	assert.Error(t, err)
}

func TestDeviceRecord_IsNotACreatorToken(t *testing.T) {
	svc := NewJWTService("test-secret")
	token, err := svc.SignDeviceRecord(uuid.New(), uuid.New(), nil)
	require.NoError(t, err)

	_, err = svc.VerifyCreatorToken(token)
	assert.Error(t, err)
}
