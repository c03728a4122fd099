package di

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ssargent/binderdump/pkg/capture"
	"github.com/ssargent/binderdump/pkg/pcapng"
	"github.com/ssargent/binderdump/pkg/spool"
	"github.com/ssargent/binderdump/pkg/storage"
)

func TestNewContainer_Defaults(t *testing.T) {
	c := NewContainer()

	assert.NotNil(t, c.GetSourceFactory())
	assert.NotNil(t, c.GetCatalogFactory())
	assert.NotNil(t, c.GetResolverFactory())
	assert.IsType(t, pcapng.Getprop{}, c.GetProperties())

	logger, err := c.GetLoggerFactory()("debug", "console")
	require.NoError(t, err)
	assert.NotNil(t, logger)
}

func TestDefaultFactories(t *testing.T) {
	c := NewContainer()
	dir := t.TempDir()

	catalog, err := c.GetCatalogFactory().Open(filepath.Join(dir, "catalog"))
	require.NoError(t, err)
	require.NoError(t, catalog.Create(&storage.Session{Output: "out.pcapng"}))
	require.NoError(t, catalog.Close())

	path := filepath.Join(dir, "raw.spool")
	w, err := spool.NewWriter(spool.WriterConfig{FilePath: path})
	require.NoError(t, err)
	_, err = w.Append([]byte{1, 2, 3})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	src, err := c.GetSourceFactory().Replay(path, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, <-src.Samples())
	require.NoError(t, src.Close())

	_, err = c.GetSourceFactory().Replay(filepath.Join(dir, "missing.spool"), 1, nil)
	assert.Error(t, err)

	resolver, err := c.GetResolverFactory().Resolver(t.TempDir())
	require.NoError(t, err)
	assert.NotNil(t, resolver)
}

type stubSources struct{}

func (stubSources) Live(capture.EBPFConfig) (capture.Source, error) {
	return capture.NewSliceSource([]byte{9}), nil
}

func (stubSources) Replay(string, int, *zap.Logger) (capture.Source, error) {
	return capture.NewSliceSource(), nil
}

type stubProps struct{}

func (stubProps) Get(context.Context, string) (string, error) { return "stub", nil }

func TestContainer_Overrides(t *testing.T) {
	c := NewContainer()
	c.SetSourceFactory(stubSources{})
	c.SetProperties(stubProps{})
	c.SetLoggerFactory(func(string, string) (*zap.Logger, error) { return zap.NewNop(), nil })

	src, err := c.GetSourceFactory().Live(capture.EBPFConfig{})
	require.NoError(t, err)
	assert.Equal(t, []byte{9}, <-src.Samples())

	v, err := c.GetProperties().Get(context.Background(), "ro.product.model")
	require.NoError(t, err)
	assert.Equal(t, "stub", v)

	logger, err := c.GetLoggerFactory()("", "")
	require.NoError(t, err)
	assert.NotNil(t, logger)
}
