package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockProviderCannedResponses(t *testing.T) {
	mock := NewMockProviderWithResponses(map[string]string{"ping": "pong"}, "fallback")

	out, err := mock.Generate(context.Background(), Request{Prompt: "ping"})
	require.NoError(t, err)
	assert.Equal(t, "pong", out)

	out, err = mock.Generate(context.Background(), Request{Prompt: "unknown"})
	require.NoError(t, err)
	assert.Contains(t, out, "fallback")
	assert.Equal(t, 2, mock.Calls())
}

func TestMockProviderFailFirst(t *testing.T) {
	mock := NewMockProvider()
	mock.FailFirst = 2

	_, err := mock.Generate(context.Background(), Request{Prompt: "hi"})
	require.Error(t, err)
	assert.True(t, IsTransient(err))

	_, err = mock.Generate(context.Background(), Request{Prompt: "hi"})
	require.Error(t, err)

	out, err := mock.Generate(context.Background(), Request{Prompt: "hi"})
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}
