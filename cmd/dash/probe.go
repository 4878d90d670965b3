package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dkeye/Dash/internal/adapters/device"
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Checks once whether the device backend is reachable",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		endpoints := endpointsOf(cfg)
		p := device.NewProbe(endpoints, nil, cfg.Probe.Interval, cfg.Probe.Timeout)
		if !p.WaitReady(cmd.Context()) {
			return fmt.Errorf("device at %s not ready after %s", endpoints.BaseURL, cfg.Probe.Timeout)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "device at %s is ready\n", endpoints.BaseURL)
		return nil
	},
}
