/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/badu/originserv"
	"github.com/badu/originserv/internal/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	var verbose bool

	cmd := &cobra.Command{
		Use:   "originserv",
		Short: "A single-process, event-driven HTTP/1.1 origin server",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logrus.New()
			if verbose {
				log.SetLevel(logrus.DebugLevel)
			}

			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			srv, err := originserv.New(cfg, log)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			log.Info("originserv starting")
			return srv.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "config.yaml", "path to the server's YAML configuration")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "enable debug logging")

	return cmd
}
