// Package proxy maintains the pool of free proxies used by the platform
// scrapers. The verified list lives in a JSON sidecar file; readers snapshot
// it at acquisition time and validation replaces it atomically.
package proxy

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/panjf2000/ants/v2"

	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/logger"
)

// Direct is the caller value that disables proxy use entirely, distinct
// from "unspecified" which triggers auto-selection.
const Direct = "DIRECT"

// proxySources are the public lists the pool refreshes from.
var proxySources = map[string]string{
	"http":        "https://raw.githubusercontent.com/proxifly/free-proxy-list/refs/heads/main/proxies/protocols/http/data.txt",
	"https":       "https://raw.githubusercontent.com/proxifly/free-proxy-list/refs/heads/main/proxies/protocols/https/data.txt",
	"socks4":      "https://raw.githubusercontent.com/proxifly/free-proxy-list/refs/heads/main/proxies/protocols/socks4/data.txt",
	"socks5":      "https://raw.githubusercontent.com/proxifly/free-proxy-list/refs/heads/main/proxies/protocols/socks5/data.txt",
	"proxyscrape": "https://api.proxyscrape.com/v4/free-proxy-list/get?request=get_proxies&protocol=http&proxy_format=protocolipport&format=text&timeout=20000",
}

const (
	testURL           = "http://httpbin.org/ip"
	checkTimeout      = 5 * time.Second
	fetchTimeout      = 15 * time.Second
	validationWorkers = 50
)

// fileFormat is the on-disk shape of verified_proxies.json.
type fileFormat struct {
	VerifiedAt string   `json:"verified_at"`
	Count      int      `json:"count"`
	Proxies    []string `json:"proxies"`
}

// Pool fetches, validates and hands out proxies.
type Pool struct {
	filePath string
	http     *resty.Client
	check    func(proxyURL string) bool

	mu sync.Mutex
}

// NewPool builds a pool persisting its verified list at filePath.
func NewPool(filePath string) *Pool {
	p := &Pool{
		filePath: filePath,
		http:     resty.New().SetTimeout(fetchTimeout),
	}
	p.check = p.probe
	return p
}

// GetWorkingProxy returns a random proxy from the verified list, or ""
// when none are known. It never validates on the hot path.
func (p *Pool) GetWorkingProxy() string {
	proxies := p.load()
	if len(proxies) == 0 {
		return ""
	}
	return proxies[rand.Intn(len(proxies))]
}

// ValidateAll fetches every source list, probes all candidates in parallel
// and atomically replaces the verified file with the working set.
func (p *Pool) ValidateAll(ctx context.Context) ([]string, error) {
	candidates := p.fetchAll(ctx)
	if len(candidates) == 0 {
		logger.Warnf(ctx, "no proxies to validate")
		return nil, nil
	}
	logger.Infof(ctx, "validating %d proxies with %d workers", len(candidates), validationWorkers)

	var (
		workingMu sync.Mutex
		working   []string
		wg        sync.WaitGroup
	)
	pool, err := ants.NewPool(validationWorkers)
	if err != nil {
		return nil, fmt.Errorf("create validation pool: %w", err)
	}
	defer pool.Release()

	for _, candidate := range candidates {
		candidate := candidate
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			if p.check(candidate) {
				workingMu.Lock()
				working = append(working, candidate)
				workingMu.Unlock()
			}
		}); err != nil {
			wg.Done()
		}
	}
	wg.Wait()

	logger.Infof(ctx, "validation complete: %d/%d working", len(working), len(candidates))
	if err := p.save(working); err != nil {
		return working, err
	}
	return working, nil
}

// fetchAll downloads and merges every source list, deduplicated.
func (p *Pool) fetchAll(ctx context.Context) []string {
	seen := make(map[string]struct{})
	var fetched []string

	for protocol, url := range proxySources {
		resp, err := p.http.R().SetContext(ctx).Get(url)
		if err != nil || resp.StatusCode() != 200 {
			logger.Errorf(ctx, "error fetching %s proxy list: %v", protocol, err)
			continue
		}
		count := 0
		for _, line := range strings.Split(strings.TrimSpace(resp.String()), "\n") {
			line = strings.TrimSpace(line)
			if line == "" || !strings.Contains(line, ":") {
				continue
			}
			var proxyURL string
			switch {
			case protocol == "proxyscrape" || strings.HasPrefix(line, "http"):
				proxyURL = line
			case protocol == "http" || protocol == "https":
				proxyURL = "http://" + line
			default:
				proxyURL = protocol + "://" + line
			}
			if _, dup := seen[proxyURL]; dup {
				continue
			}
			seen[proxyURL] = struct{}{}
			fetched = append(fetched, proxyURL)
			count++
		}
		logger.Infof(ctx, "fetched %d %s proxies", count, strings.ToUpper(protocol))
	}
	return fetched
}

// probe tests one proxy against the echo endpoint.
func (p *Pool) probe(proxyURL string) bool {
	client := resty.New().
		SetProxy(proxyURL).
		SetTimeout(checkTimeout).
		SetDisableWarn(true)
	resp, err := client.R().Get(testURL)
	return err == nil && resp.StatusCode() == 200
}

// load reads the verified list from disk.
func (p *Pool) load() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	data, err := os.ReadFile(p.filePath)
	if err != nil {
		return nil
	}
	var f fileFormat
	if err := json.Unmarshal(data, &f); err != nil {
		return nil
	}
	return f.Proxies
}

// save atomically replaces the verified file.
func (p *Pool) save(proxies []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	f := fileFormat{
		VerifiedAt: time.Now().UTC().Format(time.RFC3339),
		Count:      len(proxies),
		Proxies:    proxies,
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(p.filePath), ".proxies-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), p.filePath)
}
