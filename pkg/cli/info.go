package cli

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/withgalaxy/lazyload/pkg/keepalive"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Display environment information",
	Long:  `Display the effective lazyload configuration for the current project`,
	RunE:  runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	cwd, err := projectDir()
	if err != nil {
		return err
	}
	path, err := configPath()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "lazyload                 v%s\n", Version)
	fmt.Fprintf(out, "Go                       %s\n", runtime.Version())
	fmt.Fprintf(out, "System                   %s (%s)\n", runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(out, "Working Directory        %s\n", cwd)

	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(out, "Config                   %s\n", path)
	} else {
		fmt.Fprintf(out, "Config                   (defaults)\n")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	uniqueName := cfg.Output.UniqueName
	if uniqueName == "" {
		uniqueName = "(none)"
	}
	fmt.Fprintf(out, "Unique Name              %s\n", uniqueName)
	fmt.Fprintf(out, "Chunk Load Timeout       %s\n", cfg.Output.LoadTimeout())
	fmt.Fprintf(out, "Cross-Origin Loading     %q\n", cfg.Output.CrossOriginLoading)
	fmt.Fprintf(out, "Fetch Priority           %t\n", cfg.Features.FetchPriority)
	fmt.Fprintf(out, "External Dependencies    %t\n", cfg.Features.ExternalSupport)
	fmt.Fprintf(out, "Trusted Script URLs      %t\n", cfg.Features.CreateScriptURL)
	fmt.Fprintf(out, "Keep-Alive Transport     %s\n", cfg.KeepAlive.Transport)
	fmt.Fprintf(out, "Keep-Alive Backoff       %s → %s (x%g)\n", cfg.KeepAlive.Backoff.InitialDelay, cfg.KeepAlive.Backoff.MaxDelay, cfg.KeepAlive.Backoff.Multiplier)
	if cfg.KeepAlive.ResourceQuery != "" {
		if base, err := keepalive.ParseResourceQuery(cfg.KeepAlive.ResourceQuery); err == nil {
			fmt.Fprintf(out, "Keep-Alive Endpoint      %s\n", base)
		}
	}
	fmt.Fprintf(out, "Dev Endpoint             http://%s%s\n", cfg.Addr(), cfg.Server.Prefix)

	return nil
}
