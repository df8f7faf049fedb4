package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate-config",
	Short: "Load and validate the five config YAML documents without running",
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := LoadSimulationConfig(configPaths())
	if err != nil {
		return err
	}
	logrus.Infof("validate-config: OK run_mode=%s dram_type=%s n_head=%d n_embd=%d n_tp=%d",
		cfg.RunMode, cfg.DRAM.DramType, cfg.Model.NHead, cfg.Model.NEmbd, cfg.NTP)
	return nil
}
