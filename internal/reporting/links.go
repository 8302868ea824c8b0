package reporting

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// LinkIssue describes a single link problem found in the report.
type LinkIssue struct {
	Target string // link target
	Reason string // human-readable description
}

// LinkResult holds the output from report link validation.
type LinkResult struct {
	BrokenLinks    []LinkIssue
	DirectoryLinks []LinkIssue
	ScopeEscapes   []LinkIssue
	DeadURLs       []LinkIssue
	TotalLinks     int
	ValidLinks     int
}

// Passed returns true when no link errors were found.
func (r *LinkResult) Passed() bool {
	return len(r.BrokenLinks) == 0 &&
		len(r.DirectoryLinks) == 0 &&
		len(r.ScopeEscapes) == 0 &&
		len(r.DeadURLs) == 0
}

// Issues flattens every problem into one list for printing.
func (r *LinkResult) Issues() []LinkIssue {
	var all []LinkIssue
	all = append(all, r.BrokenLinks...)
	all = append(all, r.DirectoryLinks...)
	all = append(all, r.ScopeEscapes...)
	all = append(all, r.DeadURLs...)
	return all
}

// LinkChecker validates the links and images inside a generated report. A
// report that points at a plot which the training stage never wrote is a
// broken report, and the eval stage treats it as a failure.
type LinkChecker struct {
	// ProjectDir bounds local link resolution. Links that resolve outside it
	// are reported as scope escapes. Empty means the report's own directory.
	ProjectDir string

	// CheckExternal also probes http(s) URLs. Off by default so eval does
	// not depend on the network.
	CheckExternal bool
}

// linkHTTPClient is the shared HTTP client for external URL checks.
var linkHTTPClient = &http.Client{
	Timeout: 10 * time.Second,
	CheckRedirect: func(req *http.Request, via []*http.Request) error {
		if len(via) >= 10 {
			return fmt.Errorf("too many redirects")
		}
		return nil
	},
}

// CheckFile validates the links in the Markdown file at path.
func (c *LinkChecker) CheckFile(path string) (*LinkResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading report: %w", err)
	}
	return c.CheckSource(data, filepath.Dir(path)), nil
}

// CheckSource validates the links in Markdown bytes. Local targets are
// resolved relative to baseDir.
func (c *LinkChecker) CheckSource(source []byte, baseDir string) *LinkResult {
	r := &LinkResult{}

	scopeDir := c.ProjectDir
	if scopeDir == "" {
		scopeDir = baseDir
	}

	var externalURLs []string
	for _, target := range extractLinks(source) {
		if shouldSkipLink(target) {
			continue
		}
		if isExternalURL(target) {
			clean := stripFragment(target)
			externalURLs = appendUnique(externalURLs, clean)
			continue
		}

		localTarget := stripFragment(target)
		if localTarget == "" {
			continue // fragment-only
		}

		r.TotalLinks++

		resolved := filepath.Clean(filepath.Join(baseDir, filepath.FromSlash(localTarget)))

		if !isWithinDir(resolved, scopeDir) {
			r.ScopeEscapes = append(r.ScopeEscapes, LinkIssue{
				Target: target, Reason: "link escapes the project directory",
			})
			continue
		}

		info, err := os.Stat(resolved)
		if err != nil {
			r.BrokenLinks = append(r.BrokenLinks, LinkIssue{
				Target: target, Reason: "target does not exist",
			})
			continue
		}

		if info.IsDir() {
			r.DirectoryLinks = append(r.DirectoryLinks, LinkIssue{
				Target: target, Reason: "target is a directory, not a file",
			})
			continue
		}
	}

	if c.CheckExternal {
		r.TotalLinks += len(externalURLs)
		r.DeadURLs = checkExternalURLs(externalURLs)
	}

	problems := len(r.BrokenLinks) + len(r.DirectoryLinks) + len(r.ScopeEscapes) + len(r.DeadURLs)
	r.ValidLinks = r.TotalLinks - problems
	if r.ValidLinks < 0 {
		r.ValidLinks = 0
	}

	return r
}

// extractLinks parses Markdown bytes and extracts link/image destinations.
func extractLinks(source []byte) []string {
	md := goldmark.New()
	reader := text.NewReader(source)
	doc := md.Parser().Parse(reader)

	var links []string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := n.(type) {
		case *ast.Link:
			links = append(links, string(v.Destination))
		case *ast.Image:
			links = append(links, string(v.Destination))
		case *ast.AutoLink:
			target := string(v.Label(source))
			if len(v.Protocol) > 0 && !strings.HasPrefix(target, string(v.Protocol)) {
				target = string(v.Protocol) + target
			}
			links = append(links, target)
		}
		return ast.WalkContinue, nil
	})
	return links
}

// isExternalURL returns true for http:// and https:// URLs.
func isExternalURL(target string) bool {
	return strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://")
}

// shouldSkipLink returns true for link schemes that should not be validated.
func shouldSkipLink(target string) bool {
	return strings.HasPrefix(target, "mailto:")
}

// stripFragment removes the #fragment portion of a URL or path.
func stripFragment(target string) string {
	if idx := strings.Index(target, "#"); idx >= 0 {
		return target[:idx]
	}
	return target
}

// isWithinDir returns true if path is inside dir (or is dir itself).
func isWithinDir(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(os.PathSeparator))
}

// checkExternalURLs validates unique external URLs with a goroutine pool of 5.
func checkExternalURLs(urls []string) []LinkIssue {
	if len(urls) == 0 {
		return nil
	}

	var mu sync.Mutex
	var dead []LinkIssue
	sem := make(chan struct{}, 5)
	var wg sync.WaitGroup

	for _, u := range urls {
		wg.Add(1)
		go func(u string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if isDead, reason := checkSingleURL(u); isDead {
				mu.Lock()
				dead = append(dead, LinkIssue{Target: u, Reason: reason})
				mu.Unlock()
			}
		}(u)
	}

	wg.Wait()
	return dead
}

// checkSingleURL tries HTTP HEAD then falls back to GET.
func checkSingleURL(rawURL string) (dead bool, reason string) {
	req, err := http.NewRequest(http.MethodHead, rawURL, nil)
	if err != nil {
		return true, err.Error()
	}
	req.Header.Set("User-Agent", "mlship-link-checker/1.0")

	resp, err := linkHTTPClient.Do(req)
	if err == nil {
		_ = resp.Body.Close()
		if resp.StatusCode < 400 {
			return false, ""
		}
		// Some servers reject HEAD; fall back to GET.
		if resp.StatusCode == http.StatusMethodNotAllowed || resp.StatusCode == http.StatusForbidden {
			return checkSingleURLGet(rawURL)
		}
		return true, fmt.Sprintf("HTTP %d", resp.StatusCode)
	}
	return checkSingleURLGet(rawURL)
}

func checkSingleURLGet(rawURL string) (bool, string) {
	req, err := http.NewRequest(http.MethodGet, rawURL, nil)
	if err != nil {
		return true, err.Error()
	}
	req.Header.Set("User-Agent", "mlship-link-checker/1.0")

	resp, err := linkHTTPClient.Do(req)
	if err != nil {
		return true, err.Error()
	}
	_ = resp.Body.Close()
	if resp.StatusCode >= 400 {
		return true, fmt.Sprintf("HTTP %d", resp.StatusCode)
	}
	return false, ""
}

// appendUnique appends item to slice only if not already present.
func appendUnique(slice []string, item string) []string {
	for _, s := range slice {
		if s == item {
			return slice
		}
	}
	return append(slice, item)
}
