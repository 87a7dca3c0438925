/*
Package container provides dependency injection capabilities for the job feed
backend.

This package implements a simple dependency injection container that manages
service dependencies and reduces tight coupling between components.
*/
package container

import (
	"fmt"
	"sync"

	"github.com/Nexora-Open-Source/job-feed-backend/cache"
	"github.com/Nexora-Open-Source/job-feed-backend/handlers"
	"github.com/Nexora-Open-Source/job-feed-backend/importer"
	"github.com/Nexora-Open-Source/job-feed-backend/queue"
	"github.com/Nexora-Open-Source/job-feed-backend/runs"
	"github.com/Nexora-Open-Source/job-feed-backend/store"
	"github.com/sirupsen/logrus"
)

// Container holds all service dependencies
type Container struct {
	mu         sync.RWMutex
	services   map[string]interface{}
	factories  map[string]func() (interface{}, error)
	singletons map[string]interface{}
}

// NewContainer creates a new dependency injection container
func NewContainer() *Container {
	return &Container{
		services:   make(map[string]interface{}),
		factories:  make(map[string]func() (interface{}, error)),
		singletons: make(map[string]interface{}),
	}
}

// Register registers a service instance
func (c *Container) Register(name string, service interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.services[name] = service
}

// RegisterFactory registers a factory function for lazy service creation
func (c *Container) RegisterFactory(name string, factory func() (interface{}, error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.factories[name] = factory
}

// RegisterSingleton registers a singleton service
func (c *Container) RegisterSingleton(name string, service interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.singletons[name] = service
}

// Get retrieves a service by name
func (c *Container) Get(name string) (interface{}, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if service, exists := c.services[name]; exists {
		return service, nil
	}
	if singleton, exists := c.singletons[name]; exists {
		return singleton, nil
	}
	if factory, exists := c.factories[name]; exists {
		service, err := factory()
		if err != nil {
			return nil, fmt.Errorf("failed to create service %s: %v", name, err)
		}
		return service, nil
	}

	return nil, fmt.Errorf("service %s not found", name)
}

// GetLogger retrieves the logger service
func (c *Container) GetLogger() (*logrus.Logger, error) {
	service, err := c.Get("logger")
	if err != nil {
		return nil, err
	}
	logger, ok := service.(*logrus.Logger)
	if !ok {
		return nil, fmt.Errorf("logger service is not of expected type")
	}
	return logger, nil
}

// GetImporter retrieves the importer service
func (c *Container) GetImporter() (*importer.Service, error) {
	service, err := c.Get("importer")
	if err != nil {
		return nil, err
	}
	imp, ok := service.(*importer.Service)
	if !ok {
		return nil, fmt.Errorf("importer service is not of expected type")
	}
	return imp, nil
}

// GetTracker retrieves the run tracker service
func (c *Container) GetTracker() (*runs.Tracker, error) {
	service, err := c.Get("tracker")
	if err != nil {
		return nil, err
	}
	tracker, ok := service.(*runs.Tracker)
	if !ok {
		return nil, fmt.Errorf("tracker service is not of expected type")
	}
	return tracker, nil
}

// GetQueue retrieves the queue service
func (c *Container) GetQueue() (*queue.Queue, error) {
	service, err := c.Get("queue")
	if err != nil {
		return nil, err
	}
	q, ok := service.(*queue.Queue)
	if !ok {
		return nil, fmt.Errorf("queue service is not of expected type")
	}
	return q, nil
}

// GetRunStore retrieves the run store service
func (c *Container) GetRunStore() (store.RunStore, error) {
	service, err := c.Get("runstore")
	if err != nil {
		return nil, err
	}
	runStore, ok := service.(store.RunStore)
	if !ok {
		return nil, fmt.Errorf("runstore service is not of expected type")
	}
	return runStore, nil
}

// GetHandler retrieves the handler service
func (c *Container) GetHandler() (*handlers.Handler, error) {
	service, err := c.Get("handler")
	if err != nil {
		return nil, err
	}
	handler, ok := service.(*handlers.Handler)
	if !ok {
		return nil, fmt.Errorf("handler service is not of expected type")
	}
	return handler, nil
}

// InitializeServices initializes all core services with proper dependencies
func (c *Container) InitializeServices(importService *importer.Service, tracker *runs.Tracker, q *queue.Queue, statsCache *cache.Manager, runStore store.RunStore, feedURLs []string, logger *logrus.Logger) error {
	c.RegisterSingleton("logger", logger)
	c.RegisterSingleton("runstore", runStore)
	c.RegisterSingleton("importer", importService)
	c.RegisterSingleton("tracker", tracker)
	c.RegisterSingleton("queue", q)
	c.RegisterSingleton("cache", statsCache)

	c.RegisterFactory("handler", func() (interface{}, error) {
		return handlers.NewHandler(importService, tracker, q, statsCache, feedURLs, logger), nil
	})

	return nil
}
