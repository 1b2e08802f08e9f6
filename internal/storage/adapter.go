package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
)

// Adapter translates between Go values and JSON stored in a Backend.
//
// Availability is checked once in New and cached. An unavailable adapter turns
// every call into a logged no-op so callers never fail because storage is missing.
type Adapter struct {
	backend   Backend
	logger    *log.Logger
	available bool
}

// New health-checks backend and returns an adapter. backend may be nil.
func New(ctx context.Context, backend Backend, logger *log.Logger) *Adapter {
	if logger == nil {
		logger = log.Default()
	}
	a := &Adapter{backend: backend, logger: logger}
	if backend == nil {
		logger.Println("storage: no durable backend configured, persistence disabled")
		return a
	}
	if err := backend.HealthCheck(ctx); err != nil {
		logger.Printf("storage: backend health check failed, persistence disabled: %v", err)
		return a
	}
	a.available = true
	return a
}

// Available reports the cached health check result.
func (a *Adapter) Available() bool {
	return a != nil && a.available
}

// Get decodes the value under key into dst. It returns false when the key is
// absent, storage is unavailable, or the stored JSON is malformed.
func (a *Adapter) Get(ctx context.Context, key string, dst any) bool {
	if !a.Available() {
		a.warnUnavailable("get", key)
		return false
	}
	raw, ok, err := a.backend.Get(ctx, key)
	if err != nil {
		a.logger.Printf("storage: read %q failed: %v", key, err)
		return false
	}
	if !ok || len(raw) == 0 {
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		a.logger.Printf("storage: discarding malformed value under %q: %v", key, err)
		return false
	}
	return true
}

// Set encodes value as JSON and writes it under key. Failures are logged and
// returned; callers treating persistence as best-effort may ignore them.
func (a *Adapter) Set(ctx context.Context, key string, value any) error {
	if !a.Available() {
		a.warnUnavailable("set", key)
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		a.logger.Printf("storage: encode %q failed: %v", key, err)
		return fmt.Errorf("encode %q: %w", key, err)
	}
	if err := a.backend.Put(ctx, key, payload); err != nil {
		a.logger.Printf("storage: write %q failed: %v", key, err)
		return fmt.Errorf("write %q: %w", key, err)
	}
	return nil
}

// Remove deletes key. Missing keys are not an error.
func (a *Adapter) Remove(ctx context.Context, key string) {
	if !a.Available() {
		a.warnUnavailable("remove", key)
		return
	}
	if err := a.backend.Delete(ctx, key); err != nil {
		a.logger.Printf("storage: remove %q failed: %v", key, err)
	}
}

// Has reports whether a value exists under key.
func (a *Adapter) Has(ctx context.Context, key string) bool {
	if !a.Available() {
		return false
	}
	_, ok, err := a.backend.Get(ctx, key)
	if err != nil {
		a.logger.Printf("storage: read %q failed: %v", key, err)
		return false
	}
	return ok
}

func (a *Adapter) warnUnavailable(op, key string) {
	if a == nil {
		return
	}
	a.logger.Printf("storage: %s %q skipped, storage unavailable", op, key)
}
