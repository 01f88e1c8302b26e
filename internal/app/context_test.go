package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromContext(t *testing.T) {
	// Пустой контекст не должен ронять вызывающего
	got, ok := FromContext(context.Background())
	assert.False(t, ok)
	assert.Nil(t, got)

	a := &App{}
	got, ok = FromContext(NewContext(context.Background(), a))
	require.True(t, ok)
	assert.Same(t, a, got)
}
