package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"runtime"

	"github.com/fulmenhq/gofulmen/crucible"

	"github.com/guardianhq/guardian/internal/appid"
	"github.com/guardianhq/guardian/internal/limiter"
)

// Build metadata, injected from main via SetVersionInfo.
var (
	AppVersion   = "dev"
	AppCommit    = "unknown"
	AppBuildDate = "unknown"
	appIdentity  *appid.Identity
	versionCoord *limiter.Coordinator
)

func SetVersionInfo(version, commit, buildDate string) {
	AppVersion = version
	AppCommit = commit
	AppBuildDate = buildDate
}

func SetAppIdentity(identity *appid.Identity) {
	appIdentity = identity
}

// SetVersionCoordinator selects the coordinator summarised by /version.
// Nil restores limiter.Default().
func SetVersionCoordinator(c *limiter.Coordinator) {
	versionCoord = c
}

type VersionResponse struct {
	App          AppInfo       `json:"app"`
	Admission    AdmissionInfo `json:"admission"`
	Dependencies DepInfo       `json:"dependencies"`
	Runtime      RuntimeInfo   `json:"runtime"`
}

type AppInfo struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Commit    string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version,omitempty"`
}

// AdmissionInfo summarises the coordinator the server admits through.
type AdmissionInfo struct {
	GlobalPolicy  limiter.GlobalPolicy `json:"global_policy"`
	GlobalMembers int                  `json:"global_members"`
	SafeMode      bool                 `json:"safe_mode"`
}

type DepInfo struct {
	Gofulmen string `json:"gofulmen"`
	Crucible string `json:"crucible"`
}

type RuntimeInfo struct {
	Platform      string `json:"platform"`
	NumCPU        int    `json:"num_cpu"`
	NumGoroutines int    `json:"num_goroutines"`
}

func binaryName() string {
	if appIdentity != nil && appIdentity.BinaryName != "" {
		return appIdentity.BinaryName
	}
	if len(os.Args) > 0 && os.Args[0] != "" {
		return filepath.Base(os.Args[0])
	}
	return "unknown"
}

// VersionHandler reports build metadata and the admission posture.
func VersionHandler(w http.ResponseWriter, r *http.Request) {
	coord := versionCoord
	if coord == nil {
		coord = limiter.Default()
	}
	deps := crucible.GetVersion()

	writeJSON(w, http.StatusOK, VersionResponse{
		App: AppInfo{
			Name:      binaryName(),
			Version:   AppVersion,
			Commit:    AppCommit,
			BuildDate: AppBuildDate,
			GoVersion: runtime.Version(),
		},
		Admission: AdmissionInfo{
			GlobalPolicy:  coord.Policy(),
			GlobalMembers: coord.GlobalMembers(),
			SafeMode:      coord.SafeMode().Enabled(),
		},
		Dependencies: DepInfo{
			Gofulmen: deps.Gofulmen,
			Crucible: deps.Crucible,
		},
		Runtime: RuntimeInfo{
			Platform:      runtime.GOOS + "/" + runtime.GOARCH,
			NumCPU:        runtime.NumCPU(),
			NumGoroutines: runtime.NumGoroutine(),
		},
	})
}
