package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/srg/bioble/internal/stream"
	"github.com/srg/bioble/pkg/config"
	"github.com/srg/bioble/pkg/headset"
	"golang.org/x/sync/errgroup"
)

// streamCmd represents the stream command
var streamCmd = &cobra.Command{
	Use:   "stream",
	Short: "Stream raw sample packets from a headset",
	Long: `Open a session with the headset, start streaming and print every sample
packet as it is polled from the queue.

Output formats:
  hex   <seq> <unix seconds> <payload as hex>
  json  one JSON object per line

The stream stops after --duration or --count, or on Ctrl+C. The session is
always stopped and closed before the command returns.`,
	Args: cobra.NoArgs,
	RunE: runStream,
}

var (
	streamDuration      time.Duration
	streamCount         int
	streamFormat        string
	streamMetricsAddr   string
	streamNoLegacyStop  bool
	streamKeepPairing   bool
)

// errInterrupted ends the stream on Ctrl+C; it is not reported as a failure.
var errInterrupted = errors.New("interrupted")

func init() {
	streamCmd.Flags().DurationVarP(&streamDuration, "duration", "d", 0, "Stream duration (0 until interrupted)")
	streamCmd.Flags().IntVarP(&streamCount, "count", "n", 0, "Stop after this many samples (0 for no limit)")
	streamCmd.Flags().StringVarP(&streamFormat, "format", "f", "hex", "Output format (hex, json)")
	streamCmd.Flags().StringVar(&streamMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9110)")
	streamCmd.Flags().BoolVar(&streamNoLegacyStop, "no-legacy-stop", false, "Do not send the legacy disconnect token when stopping")
	streamCmd.Flags().BoolVar(&streamKeepPairing, "keep-pairing", false, "Keep the OS pairing when the session closes")
}

// sampleRecord is the JSON line form of a sample.
type sampleRecord struct {
	Seq       uint64 `json:"seq"`
	Timestamp int64  `json:"timestamp"`
	Data      string `json:"data"`
}

func runStream(cmd *cobra.Command, _ []string) error {
	if streamDuration < 0 {
		return fmt.Errorf("stream duration must be >= 0")
	}
	if streamCount < 0 {
		return fmt.Errorf("sample count must be >= 0")
	}

	flags := cmd.Flags()
	sess, err := newSession(cmd, func(cfg *config.Config) {
		if flags.Changed("format") {
			cfg.OutputFormat = streamFormat
		}
		if flags.Changed("metrics-addr") {
			cfg.MetricsAddr = streamMetricsAddr
		}
		if streamNoLegacyStop {
			cfg.LegacyStopToken = false
		}
		if streamKeepPairing {
			cfg.KeepPairing = true
		}
	})
	if err != nil {
		return err
	}
	defer sess.Close()

	format := sess.cfg.OutputFormat
	if format == "table" {
		format = "hex"
	}
	if err := validateFormat(format, []string{"hex", "json"}); err != nil {
		return err
	}

	client, err := sess.newClient()
	if err != nil {
		return err
	}

	var (
		ln  net.Listener
		reg *prometheus.Registry
	)
	if sess.cfg.MetricsAddr != "" {
		ln, err = net.Listen("tcp", sess.cfg.MetricsAddr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", sess.cfg.MetricsAddr, err)
		}
		defer ln.Close()
		reg = prometheus.NewRegistry()
		RegisterCollector(sess.profile.Model, client.Metrics, reg)
	}

	progress := NewProgressPrinter(os.Stderr, "Connecting to "+sess.profile.Model, "Opening")
	progress.Start()
	defer progress.Stop()

	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()

	return client.Run(cmd.Context(), sess.cfg.Address, func(ctx context.Context, c *headset.Client) error {
		progress.Stop()

		if err := c.StartStream(ctx); err != nil {
			return err
		}

		runCtx, stopRun := context.WithCancel(ctx)
		defer stopRun()
		g, gctx := errgroup.WithContext(runCtx)

		g.Go(func() error {
			return watchSignals(gctx)
		})
		if ln != nil {
			g.Go(func() error {
				return serveMetrics(gctx, ln, reg, sess.logger)
			})
		}
		g.Go(func() error {
			defer stopRun()
			return pollSamples(gctx, c, out, format, sess.cfg.PollInterval, streamDuration, streamCount)
		})

		streamErr := g.Wait()
		if errors.Is(streamErr, errInterrupted) {
			streamErr = nil
		}

		stopErr := c.StopStream(context.WithoutCancel(ctx))
		printStatus(errOut, "stop", stopErr)

		m := c.Metrics()
		fmt.Fprintf(errOut, "samples: %d received, %d enqueued, %d malformed, %d overwritten, %d dequeued\n",
			m.Queue.Received, m.Queue.Enqueued, m.Queue.Malformed, m.Queue.Overwritten, m.Queue.Dequeued)

		if streamErr != nil {
			return streamErr
		}
		return stopErr
	})
}

// watchSignals returns errInterrupted on Ctrl+C and nil once ctx is done.
func watchSignals(ctx context.Context) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-sigCh:
		return errInterrupted
	case <-ctx.Done():
		return nil
	}
}

// pollSamples drains the client queue every interval until ctx is done, the
// duration elapses or limit samples were written.
func pollSamples(ctx context.Context, c *headset.Client, w io.Writer, format string, interval, duration time.Duration, limit int) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var deadline <-chan time.Time
	if duration > 0 {
		timer := time.NewTimer(duration)
		defer timer.Stop()
		deadline = timer.C
	}

	encoder := json.NewEncoder(w)
	written := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-deadline:
			return nil
		case <-ticker.C:
		}

		for sample := c.GetData(); !sample.Empty(); sample = c.GetData() {
			if err := writeSample(w, encoder, format, sample); err != nil {
				return err
			}
			written++
			if limit > 0 && written >= limit {
				return nil
			}
		}

		if c.Metrics().Lost {
			return ErrConnectionLost
		}
	}
}

func writeSample(w io.Writer, encoder *json.Encoder, format string, sample stream.Sample) error {
	if format == "json" {
		return encoder.Encode(sampleRecord{
			Seq:       sample.Seq,
			Timestamp: sample.Timestamp,
			Data:      hex.EncodeToString(sample.Data),
		})
	}
	_, err := fmt.Fprintf(w, "%d %d %s\n", sample.Seq, sample.Timestamp, hex.EncodeToString(sample.Data))
	return err
}
