package config_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dieortin/http-server/config"
)

func TestAddAndGet(t *testing.T) {
	s := config.New()

	require.NoError(t, s.AddString(config.Address.String(), "127.0.0.1"))
	require.NoError(t, s.AddInt(config.Port.String(), 8081))

	addr, err := s.GetStringOption(config.Address)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", addr)

	port, err := s.GetIntOption(config.Port)
	require.NoError(t, err)
	assert.EqualValues(t, 8081, port)
}

func TestAddExistingIsError(t *testing.T) {
	s := config.New()
	require.NoError(t, s.AddInt("PORT", 1))
	err := s.AddInt("PORT", 2)
	assert.Error(t, err)
}

func TestGetNotFound(t *testing.T) {
	s := config.New()
	_, err := s.GetInt("MISSING")
	assert.True(t, errors.Is(err, config.ErrNotFound))
}

func TestGetWrongType(t *testing.T) {
	s := config.New()
	require.NoError(t, s.AddString("WEBROOT", "/www"))
	_, err := s.GetInt("WEBROOT")
	assert.True(t, errors.Is(err, config.ErrWrongType))
}

func TestAddEmptyNameIsBadArgument(t *testing.T) {
	s := config.New()
	err := s.AddInt("", 1)
	assert.True(t, errors.Is(err, config.ErrBadArgument))
}

func TestIntOrDefault(t *testing.T) {
	s := config.New()
	assert.EqualValues(t, 2, s.IntOrDefault(config.NThreads, 2))

	require.NoError(t, s.AddInt(config.NThreads.String(), 8))
	assert.EqualValues(t, 8, s.IntOrDefault(config.NThreads, 2))
}

func TestParseInt32Overflow(t *testing.T) {
	_, err := config.ParseInt32("99999999999999999999")
	assert.True(t, errors.Is(err, config.ErrBadArgument))
}

func TestParseInt32OK(t *testing.T) {
	v, err := config.ParseInt32("8081")
	require.NoError(t, err)
	assert.EqualValues(t, 8081, v)
}
