// Package scrapers holds the registry of platform scraper constructors.
// The browser-automation drivers themselves live outside this repository;
// they plug in by registering a constructor for their platform, usually
// from an init function behind a blank import.
package scrapers

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/logger"
	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/types/interfaces"
)

// Constructor builds a scraper for one platform, bound to an optional proxy.
type Constructor func(ctx context.Context, proxy string) (interfaces.PlatformScraper, error)

var (
	mu       sync.RWMutex
	registry = make(map[string]Constructor)
)

// Register installs a constructor for a platform. Later registrations for
// the same platform win.
func Register(platform string, c Constructor) {
	mu.Lock()
	defer mu.Unlock()
	registry[strings.ToLower(platform)] = c
}

// Registered lists the platforms with a registered constructor.
func Registered() []string {
	mu.RLock()
	defer mu.RUnlock()
	platforms := make([]string, 0, len(registry))
	for p := range registry {
		platforms = append(platforms, p)
	}
	sort.Strings(platforms)
	return platforms
}

// New builds a scraper for the platform, or fails when none is registered.
func New(ctx context.Context, platform, proxy string) (interfaces.PlatformScraper, error) {
	mu.RLock()
	c, ok := registry[strings.ToLower(platform)]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported platform: %s", platform)
	}
	return c(ctx, proxy)
}

// Factory is the interfaces.ScraperFactory backed by the registry.
func Factory(ctx context.Context, platform, proxy string) (interfaces.PlatformScraper, error) {
	return New(ctx, platform, proxy)
}

// FallbackPolicy selects a preferred driver and swaps to a fallback when
// the preferred one cannot start. The swap is a single explicit operation;
// the policy holds at most one live scraper at a time.
type FallbackPolicy struct {
	Preferred string
	Fallback  string

	current interfaces.PlatformScraper
}

// Acquire starts the preferred driver, falling back once on failure.
func (p *FallbackPolicy) Acquire(ctx context.Context, proxy string) (interfaces.PlatformScraper, error) {
	scraper, err := New(ctx, p.Preferred, proxy)
	if err == nil {
		p.current = scraper
		return scraper, nil
	}
	if p.Fallback == "" {
		return nil, err
	}
	logger.Warnf(ctx, "driver %s unavailable (%v), falling back to %s", p.Preferred, err, p.Fallback)
	scraper, ferr := New(ctx, p.Fallback, proxy)
	if ferr != nil {
		return nil, fmt.Errorf("preferred driver failed (%v) and fallback failed: %w", err, ferr)
	}
	p.current = scraper
	return scraper, nil
}

// Release closes the held scraper, if any.
func (p *FallbackPolicy) Release() error {
	if p.current == nil {
		return nil
	}
	err := p.current.Close()
	p.current = nil
	return err
}
