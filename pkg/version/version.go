// Package version holds build-time version info injected via ldflags:
//
//	go build -ldflags "-X github.com/NicolasHaas/roulette/pkg/version.tag=v1.0.0
//	  -X github.com/NicolasHaas/roulette/pkg/version.commit=abc1234
//	  -X github.com/NicolasHaas/roulette/pkg/version.date=2026-01-01"
package version

// Populated by -ldflags "-X ...". Defaults are used for local dev builds.
var (
	tag    = ""
	commit = "unknown"
	date   = "unknown"
)

// String returns "v0.2.0" on a tag, the short commit otherwise, or "dev".
func String() string {
	if tag != "" {
		return tag
	}
	if commit != "unknown" {
		return commit
	}
	return "dev"
}

// Full returns "tag (commit) built date" or a sensible fallback.
func Full() string {
	if tag != "" {
		return tag + " (" + commit + ") built " + date
	}
	if commit != "unknown" {
		return commit + " built " + date
	}
	return "dev"
}

// UserAgent is sent by the HTTP clients, e.g. "roulette-client/v0.2.0".
func UserAgent(component string) string {
	return "roulette-" + component + "/" + String()
}
