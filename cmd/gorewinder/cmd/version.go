package cmd

import (
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/gorewinder/internal/config"
	"github.com/dbsmedya/gorewinder/internal/tracker"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version and tracking details",
	Long: `Version prints the build, the database adapters this binary can use,
and the environment variables that carry tracking to spawned processes.`,
	Run: runVersion,
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func runVersion(cmd *cobra.Command, args []string) {
	cmd.Printf("gorewinder %s (%s) %s %s/%s\n", Version, Commit, runtime.Version(), runtime.GOOS, runtime.GOARCH)
	cmd.Printf("  Adapters: %s\n", strings.Join(config.SupportedAdapters, ", "))
	cmd.Printf("  Records:  <root-pid>.<pid>%s\n", tracker.RecordSuffix)
	cmd.Printf("  Env:      %s, %s, %s\n", tracker.RootPIDEnv, tracker.TrackingDirEnv, AddrEnv)
}
