package token

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "12345678901234567890123456789012"

func TestPasetoRoundTrip(t *testing.T) {
	maker, err := NewPasetoMaker(testKey)
	require.NoError(t, err)

	user := uuid.New()
	tok, err := maker.CreateToken(user, "owner@hotel.test", time.Minute)
	require.NoError(t, err)

	payload, err := maker.VerifyToken(tok)
	require.NoError(t, err)
	assert.Equal(t, user, payload.UserID)
	assert.Equal(t, "owner@hotel.test", payload.Email)
}

func TestPasetoRejectsExpiredAndForeignTokens(t *testing.T) {
	maker, err := NewPasetoMaker(testKey)
	require.NoError(t, err)

	tok, err := maker.CreateToken(uuid.New(), "", time.Nanosecond)
	require.NoError(t, err)
	time.Sleep(time.Millisecond)
	_, err = maker.VerifyToken(tok)
	assert.ErrorIs(t, err, ErrExpired)

	other, err := NewPasetoMaker(strings.Repeat("k", 32))
	require.NoError(t, err)
	foreign, err := other.CreateToken(uuid.New(), "", time.Minute)
	require.NoError(t, err)
	_, err = maker.VerifyToken(foreign)
	assert.Error(t, err)
}

func TestNewPasetoMakerKeySize(t *testing.T) {
	_, err := NewPasetoMaker("short")
	assert.Error(t, err)
}
