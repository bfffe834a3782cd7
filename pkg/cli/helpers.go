package cli

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/rs/zerolog"

	"github.com/withgalaxy/lazyload/pkg/config"
	"github.com/withgalaxy/lazyload/pkg/logging"
)

func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	}
	if cmd != nil {
		cmd.Start()
	}
}

func projectDir() (string, error) {
	if rootDir != "" {
		return filepath.Abs(rootDir)
	}
	return os.Getwd()
}

// configPath is --config when given, else lazyload.config.toml in the
// project directory.
func configPath() (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	dir, err := projectDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, config.FileName), nil
}

func loadConfig() (*config.Config, error) {
	path, err := configPath()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) zerolog.Logger {
	logCfg := cfg.Log
	if verbose {
		logCfg.Level = "debug"
	}
	if silent {
		logCfg.Level = "disabled"
	}
	return logging.New(logCfg)
}

// resolveDir makes p absolute relative to the project directory.
func resolveDir(p string) (string, error) {
	if filepath.IsAbs(p) {
		return p, nil
	}
	dir, err := projectDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, p), nil
}
