// Package cmd wires the Cobra CLI: flag parsing, logging setup and the
// panic/recover boundary between core's fatal assertions and a clean
// process exit.
package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	// Registers the NEWTON and NEUPIMS PIM instruction patterns with core
	// via their init() functions; core never imports this package itself.
	_ "github.com/neupims-sim/neupims-sim/core/dram"
)

var (
	flagConfig      string
	flagMemConfig   string
	flagCliConfig   string
	flagModelConfig string
	flagSysConfig   string

	flagLogDir   string
	flagLogLevel string
	flagMode     string
)

var rootCmd = &cobra.Command{
	Use:   "neupims-sim",
	Short: "Cycle-accurate NPU+PIM inference accelerator simulator",
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)

	for _, c := range []*cobra.Command{runCmd, validateCmd} {
		c.Flags().StringVar(&flagConfig, "config", "", "path to the general run config YAML")
		c.Flags().StringVar(&flagMemConfig, "mem_config", "", "path to the memory/DRAM config YAML")
		c.Flags().StringVar(&flagCliConfig, "cli_config", "", "path to the request-generator config YAML")
		c.Flags().StringVar(&flagModelConfig, "model_config", "", "path to the model topology config YAML")
		c.Flags().StringVar(&flagSysConfig, "sys_config", "", "path to the system/hardware config YAML")
	}
	runCmd.Flags().StringVar(&flagLogDir, "log_dir", "", "directory for log output (default: stderr)")
	runCmd.Flags().StringVar(&flagLogLevel, "log_level", "info", "logrus level (panic, fatal, error, warn, info, debug, trace)")
	runCmd.Flags().StringVar(&flagMode, "mode", "run", "run mode label carried into log lines")
}

// Execute runs the root command, exiting the process non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logrus.Fatalf("%v", err)
	}
}

func configPaths() ConfigPaths {
	return ConfigPaths{
		Config:      flagConfig,
		MemConfig:   flagMemConfig,
		CliConfig:   flagCliConfig,
		ModelConfig: flagModelConfig,
		SysConfig:   flagSysConfig,
	}
}
