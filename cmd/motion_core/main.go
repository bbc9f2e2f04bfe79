// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/relabs-tech/motion_computer/internal/app"
	"github.com/relabs-tech/motion_computer/internal/config"
	"github.com/relabs-tech/motion_computer/internal/gps"
)

var rootCmd = &cobra.Command{
	Use:   "motion_core",
	Short: "onboard motion-sensing data core",
	Long: `motion_core samples the inertial sensors and the GPS receiver, runs them
through the acquisition, filter, fusion and consumer stages and publishes the
fused motion state.`,
	SilenceUsage: true,
}

// loadConfig reads --config with --verbose and --log-level bound on top.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	v := config.NewViper()
	if f := cmd.Flags().Lookup("verbose"); f != nil {
		_ = v.BindPFlag("log.verbose", f)
	}
	if f := cmd.Flags().Lookup("log-level"); f != nil {
		_ = v.BindPFlag("log.level", f)
	}
	path, _ := cmd.Flags().GetString("config")
	return config.LoadWith(v, path)
}

func configFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("config", "c", "", "YAML configuration file (environment: MOTION_*)")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "run the pipeline until interrupted",
	Example: `  motion_core run --config motion_config.yaml
  MOTION_IMU_SOURCE=mock MOTION_GPS_SOURCE=none motion_core run -v`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		rt, err := config.NewRuntime(log.StandardLogger(), cfg.Log)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		// SIGUSR1 flips verbose logging without a restart.
		usr1 := make(chan os.Signal, 1)
		signal.Notify(usr1, syscall.SIGUSR1)
		go func() {
			for range usr1 {
				rt.SetVerbose(!rt.Verbose())
				log.Infof("verbose logging %v, level %s", rt.Verbose(), rt.Level())
			}
		}()

		return app.RunCore(ctx, cfg, rt)
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "inspect or create configuration files",
}

var configPrintCmd = &cobra.Command{
	Use:   "print",
	Short: "print the effective configuration as YAML",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		out, err := cfg.YAML()
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

var configInitCmd = &cobra.Command{
	Use:     "init",
	Short:   "write a configuration template with every default",
	Example: `  motion_core config init -o motion_config.yaml`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		output, _ := cmd.Flags().GetString("output")
		force, _ := cmd.Flags().GetBool("yes")

		cfg, err := config.Load("")
		if err != nil {
			return err
		}
		out, err := cfg.YAML()
		if err != nil {
			return err
		}
		if _, err := os.Stat(output); err == nil && !force {
			return fmt.Errorf("%s exists, use --yes to overwrite", output)
		}
		if err := os.WriteFile(output, out, 0o644); err != nil {
			return err
		}
		log.Infof("configuration written to %s", output)
		return nil
	},
}

var decodeCmd = &cobra.Command{
	Use:   "decode FILE",
	Short: "decode a captured GPS receiver stream",
	Long: `decode runs a raw capture of the receiver's serial output through the
same decoder the pipeline uses and prints one line per record. Use "-" to
read standard input.`,
	Example: `  motion_core decode --protocol ubx capture.ubx
  cat /dev/serial0 | motion_core decode --protocol nmea --json -`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		protocol, _ := cmd.Flags().GetString("protocol")
		asJSON, _ := cmd.Flags().GetBool("json")
		lenient, _ := cmd.Flags().GetBool("lenient")

		dec, err := gps.NewDecoder(gps.Protocol(protocol), gps.Options{VerifyChecksum: !lenient})
		if err != nil {
			return err
		}

		in := os.Stdin
		if args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}

		st, err := app.DecodeStream(in, dec, cmd.OutOrStdout(), asJSON)
		log.WithFields(log.Fields{
			"records":         st.Records,
			"checksum_errors": st.ChecksumErrors,
			"overflows":       st.Overflows,
			"ignored":         st.Ignored,
			"coerced":         st.CoercedCoordinates,
		}).Info("decode finished")
		return err
	},
}

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "measure queue and decoder throughput on this host",
	RunE: func(cmd *cobra.Command, _ []string) error {
		n, _ := cmd.Flags().GetInt("n")
		if n <= 0 {
			return errors.New("--n must be > 0")
		}
		app.WriteBench(cmd.OutOrStdout(), app.Bench(n))
		return nil
	},
}

func init() {
	configFlags(runCmd)
	runCmd.Flags().BoolP("verbose", "v", false, "log every sample (also toggled by SIGUSR1)")
	runCmd.Flags().String("log-level", "info", "log level: trace, debug, info, warn, error")
	rootCmd.AddCommand(runCmd)

	configFlags(configPrintCmd)
	configCmd.AddCommand(configPrintCmd)
	configInitCmd.Flags().StringP("output", "o", "motion_config.yaml", "output file")
	configInitCmd.Flags().BoolP("yes", "y", false, "overwrite an existing file")
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)

	decodeCmd.Flags().StringP("protocol", "p", string(gps.ProtocolUBX), "ubx or nmea")
	decodeCmd.Flags().Bool("json", false, "print records as JSON lines")
	decodeCmd.Flags().Bool("lenient", false, "accept NMEA sentences with a bad checksum")
	rootCmd.AddCommand(decodeCmd)

	benchCmd.Flags().Int("n", 1_000_000, "operations per workload")
	rootCmd.AddCommand(benchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
