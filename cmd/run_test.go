package cmd

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunRun_ValidConfig_InitializesAddressSpace(t *testing.T) {
	// GIVEN valid config flags and a default log level
	flagConfig = testdataPath("run.yaml")
	flagMemConfig = testdataPath("mem.yaml")
	flagCliConfig = testdataPath("cli.yaml")
	flagModelConfig = testdataPath("model.yaml")
	flagSysConfig = testdataPath("sys.yaml")
	flagLogDir = ""
	flagLogLevel = "info"
	flagMode = "run"

	// WHEN running
	err := runRun(runCmd, nil)

	// THEN it succeeds
	require.NoError(t, err)
}

func TestRunRun_InvalidLogLevel_ReturnsError(t *testing.T) {
	flagConfig = testdataPath("run.yaml")
	flagMemConfig = testdataPath("mem.yaml")
	flagCliConfig = testdataPath("cli.yaml")
	flagModelConfig = testdataPath("model.yaml")
	flagSysConfig = testdataPath("sys.yaml")
	flagLogDir = ""
	flagLogLevel = "not_a_level"

	err := runRun(runCmd, nil)
	require.Error(t, err, "expected an error for an invalid --log_level")
}
