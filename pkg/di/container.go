// Package di provides dependency injection container
package di

import (
	"go.uber.org/zap"

	"github.com/ssargent/binderdump/pkg/capture"
	"github.com/ssargent/binderdump/pkg/logging"
	"github.com/ssargent/binderdump/pkg/pcapng"
	"github.com/ssargent/binderdump/pkg/storage"
)

// SourceFactory opens event sources.
type SourceFactory interface {
	// Live attaches to the kernel tracepoints.
	Live(cfg capture.EBPFConfig) (capture.Source, error)
	// Replay reads a spool written by an earlier capture.
	Replay(path string, channelSize int, logger *zap.Logger) (capture.Source, error)
}

// CatalogFactory opens the session catalog.
type CatalogFactory interface {
	Open(dir string) (*storage.Catalog, error)
}

// ResolverFactory creates the resolver behind the process cache.
type ResolverFactory interface {
	Resolver(procRoot string) (capture.Resolver, error)
}

// LoggerFactory builds the application logger.
type LoggerFactory func(level, format string) (*zap.Logger, error)

// Container holds all the dependencies for the application
type Container struct {
	sourceFactory   SourceFactory
	catalogFactory  CatalogFactory
	resolverFactory ResolverFactory
	properties      pcapng.Properties
	loggerFactory   LoggerFactory
}

// NewContainer creates a new dependency injection container
func NewContainer() *Container {
	return &Container{
		sourceFactory:   defaultSourceFactory{},
		catalogFactory:  defaultCatalogFactory{},
		resolverFactory: defaultResolverFactory{},
		properties:      pcapng.Getprop{},
		loggerFactory:   logging.New,
	}
}

func (c *Container) GetSourceFactory() SourceFactory {
	return c.sourceFactory
}

// SetSourceFactory allows overriding the source factory (for testing)
func (c *Container) SetSourceFactory(factory SourceFactory) {
	c.sourceFactory = factory
}

func (c *Container) GetCatalogFactory() CatalogFactory {
	return c.catalogFactory
}

func (c *Container) SetCatalogFactory(factory CatalogFactory) {
	c.catalogFactory = factory
}

func (c *Container) GetResolverFactory() ResolverFactory {
	return c.resolverFactory
}

func (c *Container) SetResolverFactory(factory ResolverFactory) {
	c.resolverFactory = factory
}

// GetProperties returns the system property reader used for capture info.
func (c *Container) GetProperties() pcapng.Properties {
	return c.properties
}

func (c *Container) SetProperties(props pcapng.Properties) {
	c.properties = props
}

func (c *Container) GetLoggerFactory() LoggerFactory {
	return c.loggerFactory
}

func (c *Container) SetLoggerFactory(factory LoggerFactory) {
	c.loggerFactory = factory
}

type defaultSourceFactory struct{}

func (defaultSourceFactory) Live(cfg capture.EBPFConfig) (capture.Source, error) {
	return capture.OpenEBPF(cfg)
}

func (defaultSourceFactory) Replay(path string, channelSize int, logger *zap.Logger) (capture.Source, error) {
	return capture.NewReplaySource(path, channelSize, logger)
}

type defaultCatalogFactory struct{}

func (defaultCatalogFactory) Open(dir string) (*storage.Catalog, error) {
	return storage.Open(dir)
}

type defaultResolverFactory struct{}

func (defaultResolverFactory) Resolver(procRoot string) (capture.Resolver, error) {
	return capture.NewProcfsResolver(procRoot)
}
