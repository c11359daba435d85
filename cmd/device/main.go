// Command homelink-device simulates the home monitoring device. It answers
// the server's queries with made-up readings and can push events.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mbocsi/homelink/client"
	"github.com/mbocsi/homelink/config"
	"github.com/mbocsi/homelink/logging"
	"github.com/mbocsi/homelink/proto"
	"github.com/spf13/cobra"
)

const defaultImage = "https://via.placeholder.com/1040x676.png?text=home"

type simulator struct {
	url      string
	name     string
	interval time.Duration
	failTest bool
	image    string
	logLevel string
	discover bool
	stdin    bool
}

func main() {
	sim := &simulator{}

	rootCmd := &cobra.Command{
		Use:          "homelink-device",
		Short:        "Simulate the home monitoring device",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.Setup(config.LoggingConfig{Level: sim.logLevel, Format: "text", Output: "stderr"}, "sim")
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			var events io.Reader
			if sim.stdin {
				events = cmd.InOrStdin()
			}
			return sim.run(cmd.Context(), events)
		},
	}
	rootCmd.Flags().StringVar(&sim.url, "url", "ws://localhost:3000/socket", "device channel URL")
	rootCmd.Flags().BoolVar(&sim.discover, "discover", false, "find the server over mDNS instead of using --url")
	rootCmd.PersistentFlags().StringVar(&sim.logLevel, "log-level", "info", "debug, info, warn or error")
	rootCmd.Flags().StringVar(&sim.name, "name", "simulator", "device name used in logs")
	rootCmd.Flags().DurationVar(&sim.interval, "interval", 0, "push a status event this often (0 disables)")
	rootCmd.Flags().BoolVar(&sim.failTest, "fail-test", false, "report a failed self test")
	rootCmd.Flags().StringVar(&sim.image, "image", defaultImage, "image link sent with readings")
	rootCmd.Flags().BoolVar(&sim.stdin, "stdin", false,
		"push events typed on stdin, one \"EVENT [PAYLOAD]\" per line; status and fire default to a random reading")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// run serves the device channel until ctx is done. Lines read from events
// are pushed over the same session.
func (s *simulator) run(ctx context.Context, events io.Reader) error {
	c := client.NewClient(s.name, client.NewWebSocketTransport())

	c.HandleQuery(proto.QueryWatch, func(json.RawMessage) (any, error) {
		return s.reading(), nil
	})
	c.HandleQuery(proto.QueryCloseDoor, func(json.RawMessage) (any, error) {
		slog.Info("Closing doors and windows")
		return map[string]bool{"OK": true}, nil
	})
	c.HandleQuery(proto.QueryTest, func(json.RawMessage) (any, error) {
		return map[string]bool{"OK": !s.failTest}, nil
	})
	c.HandleCommand(proto.CommandCloseAlert, func(json.RawMessage) error {
		slog.Info("Alarm silenced")
		return nil
	})

	if s.interval > 0 {
		go func() {
			ticker := time.NewTicker(s.interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if err := c.Emit(proto.EventStatus, s.reading()); err != nil {
						slog.Warn("Could not push status", "error", err)
					}
				}
			}
		}()
	}

	if events != nil {
		go s.emitLines(c, events)
	}

	url, err := s.serverURL()
	if err != nil {
		return err
	}
	return c.Start(ctx, url)
}

func (s *simulator) serverURL() (string, error) {
	if !s.discover {
		return s.url, nil
	}
	service, err := client.Discover(5 * time.Second)
	if err != nil {
		return "", err
	}
	return service.URL(), nil
}

func (s *simulator) emitLines(c *client.Client, r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		event, payload, err := s.parseEmit(line)
		if err != nil {
			slog.Warn("Skipping event line", "error", err)
			continue
		}
		if err := c.Emit(event, payload); err != nil {
			slog.Warn("Could not push event", "event", event, "error", err)
			continue
		}
		slog.Info("Event sent", "event", event)
	}
}

// parseEmit splits "EVENT [PAYLOAD]". PAYLOAD is JSON; without it status and
// fire carry a random reading and other events are rejected.
func (s *simulator) parseEmit(line string) (string, any, error) {
	event, raw, _ := strings.Cut(strings.TrimSpace(line), " ")
	raw = strings.TrimSpace(raw)

	switch {
	case event == "":
		return "", nil, fmt.Errorf("missing event name")
	case raw != "":
		if !json.Valid([]byte(raw)) {
			return "", nil, fmt.Errorf("payload is not valid JSON: %s", raw)
		}
		return event, json.RawMessage(raw), nil
	case event == proto.EventStatus || event == proto.EventFire:
		return event, s.reading(), nil
	default:
		return "", nil, fmt.Errorf("event %q needs a payload", event)
	}
}

type reading struct {
	CO           json.Number `json:"CO"`
	GasLPG       json.Number `json:"GAS_LPG"`
	Smoke        json.Number `json:"SMOKE"`
	Link         string      `json:"link"`
	AnalysisLink string      `json:"analysis_link,omitempty"`
}

func (s *simulator) reading() reading {
	image := s.image
	if image == "" {
		image = defaultImage
	}
	return reading{
		CO:     level(5, 50),
		GasLPG: level(100, 400),
		Smoke:  level(10, 80),
		Link:   image,
	}
}

func level(lo, hi float64) json.Number {
	v := lo + rand.Float64()*(hi-lo)
	return json.Number(strconv.FormatFloat(v, 'f', 2, 64))
}
