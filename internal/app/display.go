package app

import (
	"context"
	"fmt"
	"image"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/motion_computer/internal/config"
	"github.com/relabs-tech/motion_computer/internal/motion"
	"github.com/relabs-tech/motion_computer/internal/pipeline"
)

const (
	displayWidth  = 128
	displayHeight = 64
	lineHeight    = 13
)

// RunDisplay draws the latest state on an SSD1306 OLED every cfg.Interval
// until ctx is done.
func RunDisplay(ctx context.Context, cfg config.DisplayConfig, latest *pipeline.Latest, entry *log.Entry) error {
	entry = entry.WithField("component", "display")

	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}
	bus, err := i2creg.Open(cfg.I2CBus)
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer bus.Close()

	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	entry.Infof("display initialized at 0x%02X", cfg.I2CAddr)

	if err := dev.Draw(dev.Bounds(), renderLines("Motion Core", "Looking for", "sats"), image.Point{}); err != nil {
		entry.WithError(err).Warn("error showing splash")
	}

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			dev.Halt()
			return nil
		case <-ticker.C:
			st, ok := latest.Load()
			if err := dev.Draw(dev.Bounds(), renderState(st, ok), image.Point{}); err != nil {
				entry.WithError(err).Warn("error updating display")
			}
		}
	}
}

// renderState lays out pose, acceleration and position in four lines.
func renderState(st motion.State, ok bool) *image1bit.VerticalLSB {
	if !ok {
		return renderLines("Motion", "Waiting...")
	}
	lines := []string{
		fmt.Sprintf("R:%6.1f P:%6.1f", st.Pose.Roll, st.Pose.Pitch),
		fmt.Sprintf("|a| %.2fg", st.TotalAccel),
	}
	if st.GPSValid {
		lines = append(lines,
			fmt.Sprintf("%s %.1fkn", hemisphere(st.Latitude, "N", "S"), st.SpeedKnots),
			hemisphere(st.Longitude, "E", "W"))
	} else {
		lines = append(lines, fmt.Sprintf("No fix (%d sats)", st.Satellites))
	}
	return renderLines(lines...)
}

func hemisphere(v float64, pos, neg string) string {
	if v < 0 {
		return fmt.Sprintf("%.4f%s", -v, neg)
	}
	return fmt.Sprintf("%.4f%s", v, pos)
}

func renderLines(lines ...string) *image1bit.VerticalLSB {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, displayWidth, displayHeight))
	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	for i, line := range lines {
		drawer.Dot = fixed.P(0, lineHeight*(i+1))
		drawer.DrawString(line)
	}
	return img
}
