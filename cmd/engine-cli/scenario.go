package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/atmx/predengine/internal/audit"
	"github.com/atmx/predengine/internal/harness"
	"github.com/atmx/predengine/internal/ledger"
)

// scenarioFile is the on-disk shape accepted by `scenario run`. Engine
// selects which replay driver consumes Ops; Preset names an
// internal/harness preset for "lmsr", while Seeds supplies CLOB trader
// seeds directly (a CLOB scenario has no liquidity parameter to name a
// preset around).
type scenarioFile struct {
	Engine string        `json:"engine"` // "lmsr" or "clob"
	Preset string        `json:"preset"`
	Seeds  []ledger.Seed `json:"seeds"`
	Ops    []harness.Op  `json:"ops"`
}

var scenarioCmd = &cobra.Command{
	Use:   "scenario",
	Short: "Replay a deterministic sequence of engine operations from a file",
}

var scenarioRunCmd = &cobra.Command{
	Use:   "run <file>",
	Short: "Run the scenario described by the given JSON file",
	Args:  cobra.ExactArgs(1),
	RunE:  runScenario,
}

func init() {
	rootCmd.AddCommand(scenarioCmd)
	scenarioCmd.AddCommand(scenarioRunCmd)
}

func runScenario(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read scenario file: %w", err)
	}
	var sf scenarioFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return fmt.Errorf("parse scenario file: %w", err)
	}

	log := audit.New()
	switch sf.Engine {
	case "lmsr":
		preset, err := harness.GetPreset(sf.Preset)
		if err != nil {
			return err
		}
		result, err := harness.ReplayLMSRScenario(preset, sf.Ops, log)
		if err != nil {
			printScenarioError(err, log)
			return err
		}
		return printJSON(result)
	case "clob":
		result, err := harness.ReplayCLOBScenario(sf.Seeds, sf.Ops, log)
		if err != nil {
			printScenarioError(err, log)
			return err
		}
		return printJSON(result)
	default:
		return fmt.Errorf("scenario: unknown engine %q (want \"lmsr\" or \"clob\")", sf.Engine)
	}
}

func printScenarioError(err error, log *audit.Log) {
	fmt.Fprintln(os.Stderr, harness.FormatError(err))
	printJSON(log.GetLogs())
}
