package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/vcfgather/server/internal/model"
)

const deviceRecordExpiry = 60 * 24 * time.Hour

// DeviceRecordClaims carries a device's submissions to one session.
// The token is stored on the device; the server keeps no copy.
type DeviceRecordClaims struct {
	DeviceID    uuid.UUID          `json:"device_id"`
	SessionID   uuid.UUID          `json:"session_id"`
	Submissions model.DeviceRecord `json:"submissions"`
	jwt.RegisteredClaims
}

// SignDeviceRecord encodes rec for deviceID and sessionID as a signed token
func (s *JWTService) SignDeviceRecord(deviceID, sessionID uuid.UUID, rec model.DeviceRecord) (string, error) {
	now := s.now()
	claims := &DeviceRecordClaims{
		DeviceID:    deviceID,
		SessionID:   sessionID,
		Submissions: rec,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(deviceRecordExpiry)),
		},
	}

	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign device record: %w", err)
	}
	return tokenString, nil
}

// ParseDeviceRecord verifies a device record token issued for deviceID and sessionID.
// A token minted for another device or session is rejected.
func (s *JWTService) ParseDeviceRecord(tokenString string, deviceID, sessionID uuid.UUID) (model.DeviceRecord, error) {
	claims := &DeviceRecordClaims{}
	if err := s.parse(tokenString, claims); err != nil {
		return nil, err
	}
	if claims.DeviceID != deviceID || claims.SessionID != sessionID {
		return nil, fmt.Errorf("device record does not belong to this device and session")
	}
	return claims.Submissions, nil
}
