// Package version reports build information and checks GitHub for newer releases.
package version

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"runtime"
	"runtime/debug"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultReleaseURL is the latest-release endpoint of the depositor repository.
	DefaultReleaseURL = "https://api.github.com/repos/mrz1836/depositor/releases/latest"

	devVersion       = "dev"
	unknown          = "unknown"
	checkTimeout     = 10 * time.Second
	maxReleaseBody   = 64 * 1024
	maxErrorBodySize = 1024
)

// ErrReleaseCheckFailed is returned when the release endpoint does not answer 200.
var ErrReleaseCheckFailed = errors.New("release check failed")

// Build metadata, set with -ldflags "-X".
//
//nolint:gochecknoglobals // populated by the linker
var (
	Version = ""
	Commit  = ""
	Date    = ""
)

// BuildInfo describes the running binary.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// Get returns the build information, falling back to module data embedded
// by the Go toolchain when ldflags were not set.
func Get() BuildInfo {
	info := BuildInfo{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}

	if bi, ok := debug.ReadBuildInfo(); ok {
		if info.Version == "" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
			info.Version = bi.Main.Version
		}
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				if info.Commit == "" && len(s.Value) >= 7 {
					info.Commit = s.Value[:7]
				}
			case "vcs.time":
				if info.Date == "" {
					info.Date = s.Value
				}
			}
		}
	}
	return info
}

// String formats the build information on one line.
func (b BuildInfo) String() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", orDefault(b.Version, devVersion), orDefault(b.Commit, unknown), orDefault(b.Date, unknown))
}

// IsDev reports whether the binary was built without a release version.
func (b BuildInfo) IsDev() bool {
	return b.Version == "" || b.Version == devVersion
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// Release is the subset of a GitHub release used for update checks.
type Release struct {
	TagName     string    `json:"tag_name"`
	HTMLURL     string    `json:"html_url"`
	PublishedAt time.Time `json:"published_at"`
}

// LatestRelease fetches the latest published release from url.
func LatestRelease(ctx context.Context, client *http.Client, url string) (*Release, error) {
	if client == nil {
		client = &http.Client{Timeout: checkTimeout}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", "depositor/"+orDefault(Version, devVersion))

	resp, err := client.Do(req) //nolint:gosec // URL is the configured release endpoint
	if err != nil {
		return nil, fmt.Errorf("fetching release: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return nil, fmt.Errorf("%w: status %d: %s", ErrReleaseCheckFailed, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var rel Release
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxReleaseBody)).Decode(&rel); err != nil {
		return nil, fmt.Errorf("decoding release: %w", err)
	}
	return &rel, nil
}

// Compare compares two "vMAJOR.MINOR.PATCH" versions, ignoring pre-release
// and build suffixes. Development versions sort before every release.
func Compare(a, b string) int {
	pa, okA := parse(a)
	pb, okB := parse(b)
	switch {
	case !okA && !okB:
		return 0
	case !okA:
		return -1
	case !okB:
		return 1
	}
	for i := range pa {
		if pa[i] != pb[i] {
			if pa[i] > pb[i] {
				return 1
			}
			return -1
		}
	}
	return 0
}

// IsNewer reports whether latest is a newer release than current.
func IsNewer(current, latest string) bool {
	return Compare(latest, current) > 0
}

func parse(v string) ([3]int, bool) {
	var out [3]int
	v = strings.TrimPrefix(strings.TrimSpace(v), "v")
	if idx := strings.IndexAny(v, "-+"); idx != -1 {
		v = v[:idx]
	}
	if v == "" || v == devVersion {
		return out, false
	}
	parts := strings.Split(v, ".")
	if len(parts) > len(out) {
		return out, false
	}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return out, false
		}
		out[i] = n
	}
	return out, true
}
