// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/relabs-tech/motion_computer/internal/config"
	"github.com/relabs-tech/motion_computer/internal/pipeline"
)

// RunCore opens the devices, starts the pipeline and every enabled output,
// and blocks until ctx is done or something fails.
func RunCore(ctx context.Context, cfg *config.Config, rt *config.Runtime) error {
	c, err := pipeline.NewContext(cfg, rt)
	if err != nil {
		return err
	}
	entry := c.Log
	entry.WithField("session_id", c.Session.String()).Info("starting motion core")

	dev, closer, err := OpenDevices(cfg, entry)
	defer func() {
		if err := closer.Close(); err != nil {
			entry.WithError(err).Warn("closing devices")
		}
	}()
	if err != nil {
		return err
	}

	var sinks pipeline.Sinks
	if cfg.MQTT.Enabled {
		client, err := ConnectMQTT(cfg.MQTT, cfg.MQTT.ClientID)
		if err != nil {
			return err
		}
		defer client.Disconnect(250)
		entry.Infof("connected to MQTT broker at %s", cfg.MQTT.Broker)
		sinks = append(sinks, NewMQTTSink(client, cfg.MQTT, c.Session.String(), entry))
	}

	p, err := pipeline.New(c, dev, sinks)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.Run(gctx) })
	if cfg.Web.Enabled {
		web := NewWebServer(c)
		g.Go(func() error { return web.Run(gctx, cfg.Web.Addr) })
	}
	if cfg.Display.Enabled {
		g.Go(func() error {
			// A missing display never stops the pipeline.
			if err := RunDisplay(gctx, cfg.Display, c.Latest, entry); err != nil {
				entry.WithError(err).Error("display stopped")
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	entry.Info("motion core stopped")
	return nil
}
