package api

import (
	"errors"
	"sync"
)

// StatusHandler exposes Application state to the operator surface. The
// engine registers its implementation during bootstrap; the HTTP server
// consumes it through the registry so that it never imports the engine
// directly.
type StatusHandler interface {
	// ListApplications returns a summary for every known Application,
	// sorted by name.
	ListApplications() []ApplicationSummary

	// GetApplication returns the detail view for one Application.
	GetApplication(name string) (*ApplicationDetail, error)

	// GetHistory returns the retained sync results for one Application,
	// newest first.
	GetHistory(name string) ([]SyncResult, error)
}

// TriggerHandler accepts reconciliation triggers from the operator
// surface.
type TriggerHandler interface {
	// TriggerSync enqueues a manual reconciliation. It returns
	// NotFoundError when the Application is unknown. The call returns as
	// soon as the trigger is queued; it never waits for the sync.
	TriggerSync(name string, req SyncRequest) error
}

// Handler registration errors.
var (
	ErrStatusNotRegistered  = errors.New("status handler not registered")
	ErrTriggerNotRegistered = errors.New("trigger handler not registered")
)

var (
	statusHandler  StatusHandler
	triggerHandler TriggerHandler

	handlerMutex sync.RWMutex
)

// RegisterStatusHandler registers the status handler implementation.
// Thread-safe; later registrations replace earlier ones.
func RegisterStatusHandler(h StatusHandler) {
	handlerMutex.Lock()
	defer handlerMutex.Unlock()
	statusHandler = h
}

// GetStatusHandler returns the registered status handler, or an error
// when bootstrap has not registered one yet.
func GetStatusHandler() (StatusHandler, error) {
	handlerMutex.RLock()
	defer handlerMutex.RUnlock()
	if statusHandler == nil {
		return nil, ErrStatusNotRegistered
	}
	return statusHandler, nil
}

// RegisterTriggerHandler registers the trigger handler implementation.
// Thread-safe; later registrations replace earlier ones.
func RegisterTriggerHandler(h TriggerHandler) {
	handlerMutex.Lock()
	defer handlerMutex.Unlock()
	triggerHandler = h
}

// GetTriggerHandler returns the registered trigger handler, or an error
// when bootstrap has not registered one yet.
func GetTriggerHandler() (TriggerHandler, error) {
	handlerMutex.RLock()
	defer handlerMutex.RUnlock()
	if triggerHandler == nil {
		return nil, ErrTriggerNotRegistered
	}
	return triggerHandler, nil
}
