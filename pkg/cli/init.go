package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/withgalaxy/lazyload/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a lazyload.config.toml interactively",
	RunE:  runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing config file")
}

type initAnswers struct {
	UniqueName  string
	CrossOrigin string
	Timeout     string
	Transport   string
	Features    []string
}

const (
	featureFetchPriority = "fetch priority"
	featureExternal      = "external dependencies"
	featureTrustedTypes  = "trusted types script URLs"
)

func runInit(cmd *cobra.Command, args []string) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil && !initForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	cfg := config.DefaultConfig()
	questions := []*survey.Question{
		{
			Name:   "UniqueName",
			Prompt: &survey.Input{Message: "Build unique name (empty to disable identity matching):"},
		},
		{
			Name: "CrossOrigin",
			Prompt: &survey.Select{
				Message: "Cross-origin loading:",
				Options: []string{"none", string(config.CrossOriginAnonymous), string(config.CrossOriginUseCredentials)},
				Default: "none",
			},
		},
		{
			Name:   "Timeout",
			Prompt: &survey.Input{Message: "Chunk load timeout (ms):", Default: strconv.Itoa(cfg.Output.ChunkLoadTimeout)},
			Validate: func(ans interface{}) error {
				n, err := strconv.Atoi(ans.(string))
				if err != nil || n < 0 {
					return fmt.Errorf("timeout must be a non-negative integer")
				}
				return nil
			},
		},
		{
			Name: "Transport",
			Prompt: &survey.Select{
				Message: "Keep-alive transport:",
				Options: []string{string(config.TransportAuto), string(config.TransportEventSource), string(config.TransportWebSocket)},
				Default: string(config.TransportAuto),
			},
		},
		{
			Name: "Features",
			Prompt: &survey.MultiSelect{
				Message: "Enable features:",
				Options: []string{featureFetchPriority, featureExternal, featureTrustedTypes},
				Default: []string{featureExternal},
			},
		},
	}

	var answers initAnswers
	if err := survey.Ask(questions, &answers); err != nil {
		return err
	}

	applyInitAnswers(cfg, answers)
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := config.Save(path, cfg); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote %s\n", path)
	return nil
}

func applyInitAnswers(cfg *config.Config, a initAnswers) {
	cfg.Output.UniqueName = a.UniqueName
	if a.CrossOrigin != "none" {
		cfg.Output.CrossOriginLoading = config.CrossOrigin(a.CrossOrigin)
	}
	if n, err := strconv.Atoi(a.Timeout); err == nil {
		cfg.Output.ChunkLoadTimeout = n
	}
	cfg.KeepAlive.Transport = config.TransportName(a.Transport)

	cfg.Features.FetchPriority = false
	cfg.Features.ExternalSupport = false
	cfg.Features.CreateScriptURL = false
	for _, f := range a.Features {
		switch f {
		case featureFetchPriority:
			cfg.Features.FetchPriority = true
		case featureExternal:
			cfg.Features.ExternalSupport = true
		case featureTrustedTypes:
			cfg.Features.CreateScriptURL = true
		}
	}
}
