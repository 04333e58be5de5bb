package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// PageOptions configures FindPages
type PageOptions struct {
	// Sections lists the manual sections to include, in priority order
	Sections []string
	// Pattern is a regex a utility name must match (optional)
	Pattern string
	// Exclude lists utility names to leave out
	Exclude []string
}

// Page is one manual-page source file
type Page struct {
	Utility string
	Section string
	Path    string // Absolute path
}

// PageResult contains the pages found and any non-fatal errors
type PageResult struct {
	Pages  []Page
	Errors []error
}

// FindPages lists the <utility>.<section> files directly under dir.
func FindPages(dir string, opts PageOptions) (*PageResult, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to access directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", dir)
	}

	var patternRegex *regexp.Regexp
	if opts.Pattern != "" {
		patternRegex, err = regexp.Compile(opts.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern: %w", err)
		}
	}

	rank := make(map[string]int, len(opts.Sections))
	for i, s := range opts.Sections {
		if _, ok := rank[s]; !ok {
			rank[s] = i
		}
	}
	excludeMap := make(map[string]bool, len(opts.Exclude))
	for _, name := range opts.Exclude {
		excludeMap[name] = true
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	result := &PageResult{
		Pages:  make([]Page, 0),
		Errors: make([]error, 0),
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}

		// The section is everything after the last dot: "ls.1", "git-add.1".
		dot := strings.LastIndexByte(name, '.')
		if dot <= 0 {
			continue
		}
		utility, section := name[:dot], name[dot+1:]
		if _, ok := rank[section]; !ok {
			continue
		}
		if excludeMap[utility] {
			continue
		}
		if patternRegex != nil && !patternRegex.MatchString(utility) {
			continue
		}

		path := filepath.Join(dir, name)
		fi, err := os.Stat(path)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("error accessing %s: %w", path, err))
			continue
		}
		if !fi.Mode().IsRegular() {
			continue
		}
		absPath, err := filepath.Abs(path)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("failed to resolve path %s: %w", path, err))
			continue
		}

		result.Pages = append(result.Pages, Page{Utility: utility, Section: section, Path: absPath})
	}

	sort.Slice(result.Pages, func(i, j int) bool {
		a, b := result.Pages[i], result.Pages[j]
		if a.Utility != b.Utility {
			return a.Utility < b.Utility
		}
		return rank[a.Section] < rank[b.Section]
	})

	return result, nil
}

// Utilities returns the distinct utility names of the pages, in order.
func (r *PageResult) Utilities() []string {
	var names []string
	for _, p := range r.Pages {
		if len(names) == 0 || names[len(names)-1] != p.Utility {
			names = append(names, p.Utility)
		}
	}
	return names
}
