// Package run provides the CLI command that executes a plan document
// against an environment.
package run

import (
	"context"
	"os"

	"github.com/solharness/solharness/config"
	"github.com/solharness/solharness/execution"
	"github.com/solharness/solharness/harness"
)

// Runner executes plan documents against one environment. It is satisfied
// by harness.Harness.
type Runner interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Run(ctx context.Context, document []byte) (*execution.Execution, error)
}

// ConfigLoaderFunc loads harness settings from a file path. An empty path
// loads from the environment only.
type ConfigLoaderFunc func(filePath string) (*config.Config, error)

// RunnerBuilderFunc builds the Runner the command executes plans with.
type RunnerBuilderFunc func(cfg harness.Config) (Runner, error)

// FileReaderFunc reads the plan document from disk.
type FileReaderFunc func(name string) ([]byte, error)

func defaultConfigLoader(filePath string) (*config.Config, error) {
	if filePath == "" {
		return config.LoadEnv()
	}

	return config.Load(filePath)
}

func defaultRunnerBuilder(cfg harness.Config) (Runner, error) {
	return harness.New(cfg)
}

// Deps holds the injectable dependencies for the run command.
// All fields are optional; nil values will use production defaults.
type Deps struct {
	// ConfigLoader loads harness settings.
	// Default: config.Load / config.LoadEnv
	ConfigLoader ConfigLoaderFunc

	// RunnerBuilder builds the plan runner.
	// Default: harness.New
	RunnerBuilder RunnerBuilderFunc

	// FileReader reads the plan document.
	// Default: os.ReadFile
	FileReader FileReaderFunc
}

// applyDefaults fills in nil dependencies with production defaults.
func (d *Deps) applyDefaults() {
	if d.ConfigLoader == nil {
		d.ConfigLoader = defaultConfigLoader
	}
	if d.RunnerBuilder == nil {
		d.RunnerBuilder = defaultRunnerBuilder
	}
	if d.FileReader == nil {
		d.FileReader = os.ReadFile
	}
}
