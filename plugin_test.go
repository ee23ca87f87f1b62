package resmgr_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/resmgr"
	"github.com/hupe1980/resmgr/testutil"
)

func TestRegistry_Register(t *testing.T) {
	r := resmgr.NewRegistry()

	require.NoError(t, r.Register("cache", func() resmgr.Plugin { return &testutil.FakePlugin{} }))
	require.NoError(t, r.Register("rate", func() resmgr.Plugin { return &testutil.FakePlugin{} }))

	err := r.Register("cache", func() resmgr.Plugin { return &testutil.FakePlugin{} })
	require.Error(t, err)

	var dup *resmgr.ErrDuplicateType
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "cache", dup.Type)

	assert.Equal(t, []string{"cache", "rate"}, r.Types())
}

func TestDefaultFactory_Create(t *testing.T) {
	plugin := &testutil.FakePlugin{}
	factory := resmgr.NewDefaultFactory(testutil.SingleTypeRegistry("cache", plugin))

	params := map[string]any{"deadBand": 0.2}
	created, err := factory.Create("cache", params)
	require.NoError(t, err)
	require.NotNil(t, created)

	// The factory initializes the plugin before returning it.
	assert.Equal(t, params, plugin.InitParams())
}

func TestDefaultFactory_Create_UnknownType(t *testing.T) {
	factory := resmgr.NewDefaultFactory(resmgr.NewRegistry())

	created, err := factory.Create("bogus", nil)
	require.Error(t, err)
	assert.Nil(t, created)

	var unsupported *resmgr.ErrUnsupportedPoolType
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "bogus", unsupported.Type)
}
