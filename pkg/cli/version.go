package cli

import (
	"fmt"
	"io"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/techop/httpmetrics/pkg/cli/internal/output"
)

// VersionOutput represents JSON output format
type VersionOutput struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
	Go      string `json:"go"`
	OS      string `json:"os"`
	Arch    string `json:"arch"`
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show httpmetrics version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runVersion(cmd.OutOrStdout(), buildVersion(), jsonOutput)
	},
}

// buildVersion fills build-time values that were not injected from the
// module build info.
func buildVersion() VersionOutput {
	version := Version
	commit := Commit
	date := BuildDate

	if info, ok := debug.ReadBuildInfo(); ok {
		if version == "dev" && info.Main.Version != "" {
			version = info.Main.Version
		}
		for _, setting := range info.Settings {
			switch setting.Key {
			case "vcs.revision":
				if commit == "none" {
					commit = setting.Value
				}
			case "vcs.time":
				if date == "unknown" {
					date = setting.Value
				}
			case "vcs.modified":
				if setting.Value == "true" {
					commit += "-dirty"
				}
			}
		}
	}

	return VersionOutput{
		Version: version,
		Commit:  commit,
		Date:    date,
		Go:      runtime.Version(),
		OS:      runtime.GOOS,
		Arch:    runtime.GOARCH,
	}
}

func runVersion(w io.Writer, out VersionOutput, asJSON bool) error {
	if asJSON {
		return output.JSON(w, out)
	}

	v := out.Version
	if len(v) > 0 && v[0] != 'v' && v != "dev" && v != "(devel)" {
		v = "v" + v
	}
	fmt.Fprintf(w, "httpmetrics %s (%s, %s)\n", v, out.Commit, out.Date)
	fmt.Fprintf(w, "%s %s/%s\n", out.Go, out.OS, out.Arch)
	return nil
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
