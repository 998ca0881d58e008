package local

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ctx = context.Background()

func TestList_PushRange(t *testing.T) {
	c := NewList()
	require.NoError(t, c.LPush(ctx, "k", "a", "b"))
	require.NoError(t, c.LPush(ctx, "k", "c"))

	got, err := c.LRange(ctx, "k", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b", "a"}, got)

	got, _ = c.LRange(ctx, "k", 1, 1)
	assert.Equal(t, []string{"b"}, got)
	got, _ = c.LRange(ctx, "k", -2, -1)
	assert.Equal(t, []string{"b", "a"}, got)
	got, _ = c.LRange(ctx, "k", 5, 10)
	assert.Empty(t, got)
	got, _ = c.LRange(ctx, "missing", 0, -1)
	assert.Empty(t, got)
}

func TestList_Trim(t *testing.T) {
	c := NewList()
	require.NoError(t, c.LPush(ctx, "k", "1", "2", "3", "4"))

	require.NoError(t, c.LTrim(ctx, "k", 0, 1))
	got, _ := c.LRange(ctx, "k", 0, -1)
	assert.Equal(t, []string{"4", "3"}, got)

	require.NoError(t, c.LTrim(ctx, "k", 5, 9))
	got, _ = c.LRange(ctx, "k", 0, -1)
	assert.Empty(t, got)
}

func TestList_Del(t *testing.T) {
	c := NewList()
	require.NoError(t, c.LPush(ctx, "a", "x"))
	require.NoError(t, c.LPush(ctx, "b", "y"))
	require.NoError(t, c.Del(ctx, "a"))

	got, _ := c.LRange(ctx, "a", 0, -1)
	assert.Empty(t, got)
	got, _ = c.LRange(ctx, "b", 0, -1)
	assert.Equal(t, []string{"y"}, got)
	assert.NoError(t, c.Close())
}
