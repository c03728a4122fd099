/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ssargent/binderdump/pkg/api"
	"github.com/ssargent/binderdump/pkg/capture"
	"github.com/ssargent/binderdump/pkg/config"
	"github.com/ssargent/binderdump/pkg/pcapng"
	"github.com/ssargent/binderdump/pkg/pipeline"
	"github.com/ssargent/binderdump/pkg/spool"
	"github.com/ssargent/binderdump/pkg/storage"
)

// captureCmd represents the capture command
var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Capture binder transactions to a pcapng file",
	Long: `Attach to the binder tracepoints, group the ioctls of every thread and
write them as pcapng packets. The capture stops on SIGINT or SIGTERM, or
after --idle-timeout without events.

With --replay the events are read from a spool written by an earlier
capture instead of the kernel.

Examples:
  binderdump capture
  binderdump capture -o /sdcard/binder.pcapng --spool /data/local/tmp/binder.spool
  binderdump capture --replay /data/local/tmp/binder.spool --idle-timeout 1s
  binderdump capture --metrics --metrics-port 9464`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		applyCaptureFlags(cmd, cfg)
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		replay, _ := cmd.Flags().GetString("replay")

		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		session, err := runCapture(ctx, cfg, replay, logger)
		if session != nil {
			cmd.Printf("Session %s: %s events, %s packets (%s) written to %s in %s\n",
				session.ID,
				humanize.Comma(int64(session.Events)),
				humanize.Comma(int64(session.Packets)),
				humanize.Bytes(session.Bytes),
				session.Output,
				session.Duration().Round(time.Millisecond),
			)
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(captureCmd)

	captureCmd.Flags().StringP("output", "o", "", "pcapng file to write (overrides capture.output)")
	captureCmd.Flags().String("replay", "", "Read events from this spool instead of the kernel")
	captureCmd.Flags().String("spool", "", "Also write raw events to this spool (overrides capture.spool_path)")
	captureCmd.Flags().Duration("idle-timeout", 0, "Stop after this long without events (overrides capture.aggregator_timeout)")
	captureCmd.Flags().Bool("metrics", false, "Serve /metrics and /health while capturing")
	captureCmd.Flags().Int("metrics-port", 0, "Port for the metrics server (overrides metrics.port)")
	captureCmd.Flags().Bool("verify-offsets", false, "Re-decode every packet and count offset tree failures")
}

// applyCaptureFlags overrides cfg with the flags given on the command line.
func applyCaptureFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("output") {
		cfg.Capture.Output, _ = flags.GetString("output")
	}
	if flags.Changed("spool") {
		cfg.Capture.SpoolPath, _ = flags.GetString("spool")
	}
	if flags.Changed("idle-timeout") {
		cfg.Capture.AggregatorTimeout, _ = flags.GetDuration("idle-timeout")
	}
	if flags.Changed("metrics") {
		cfg.Metrics.Enabled, _ = flags.GetBool("metrics")
	}
	if flags.Changed("metrics-port") {
		cfg.Metrics.Port, _ = flags.GetInt("metrics-port")
	}
	if flags.Changed("verify-offsets") {
		cfg.Capture.VerifyOffsets, _ = flags.GetBool("verify-offsets")
	}
}

// runCapture records a catalog session around one pipeline run. The
// returned session is nil only when the catalog could not be prepared.
func runCapture(ctx context.Context, cfg *config.Config, replay string, logger *zap.Logger) (_ *storage.Session, err error) {
	if container == nil {
		return nil, fmt.Errorf("dependency container not initialized")
	}

	catalog, err := container.GetCatalogFactory().Open(cfg.CatalogDir())
	if err != nil {
		return nil, err
	}
	defer func() {
		err = multierr.Append(err, catalog.Close())
	}()

	info, err := pcapng.NewCaptureInfo(ctx, container.GetProperties(), logger.Named("info"))
	if err != nil {
		return nil, err
	}

	session := &storage.Session{
		ID:            info.SessionID,
		StartedAt:     time.Now().UnixNano(),
		State:         storage.Running,
		Output:        cfg.Capture.Output,
		Replay:        replay != "",
		Model:         info.Model,
		OS:            info.OS,
		KernelVersion: info.KernelVersion,
		Timeshift:     int64(info.Timeshift),
	}
	if replay == "" {
		session.Spool = cfg.Capture.SpoolPath
	}
	if err := catalog.Create(session); err != nil {
		return nil, fmt.Errorf("failed to record session: %w", err)
	}
	logger = logger.With(zap.Stringer("session", session.ID))

	snap, runErr := runPipeline(ctx, cfg, info, replay, session, logger)
	session.Events = snap.Events
	session.Dropped = snap.Dropped
	session.Packets = snap.Packets
	session.Bytes = snap.Bytes
	session.Finish(time.Now(), runErr)
	if err := catalog.Update(session); err != nil {
		runErr = multierr.Append(runErr, fmt.Errorf("failed to update session: %w", err))
	}
	return session, runErr
}

func runPipeline(ctx context.Context, cfg *config.Config, info pcapng.CaptureInfo, replay string,
	session *storage.Session, logger *zap.Logger) (_ pipeline.Snapshot, err error) {
	src, err := openSource(cfg, replay, logger)
	if err != nil {
		return pipeline.Snapshot{}, err
	}
	// the pipeline closes src once it has started
	started := false
	defer func() {
		if !started {
			err = multierr.Append(err, src.Close())
		}
	}()

	if session.Spool != "" {
		w, werr := spool.NewWriter(spool.WriterConfig{
			FilePath:      session.Spool,
			FsyncInterval: cfg.Capture.SpoolFsyncInterval,
		})
		if werr != nil {
			return pipeline.Snapshot{}, fmt.Errorf("failed to open spool: %w", werr)
		}
		defer func() {
			err = multierr.Append(err, w.Close())
		}()
		src = capture.Tee(src, w, logger.Named("spool"))
	}

	resolver, err := container.GetResolverFactory().Resolver(cfg.Capture.ProcRoot)
	if err != nil {
		return pipeline.Snapshot{}, fmt.Errorf("failed to open %s: %w", cfg.Capture.ProcRoot, err)
	}
	cache, err := capture.NewProcessCache(resolver, cfg.Capture.ProcessCacheSize)
	if err != nil {
		return pipeline.Snapshot{}, err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Capture.Output), 0750); err != nil {
		return pipeline.Snapshot{}, fmt.Errorf("failed to create output directory: %w", err)
	}
	out, err := os.Create(cfg.Capture.Output)
	if err != nil {
		return pipeline.Snapshot{}, fmt.Errorf("failed to create output: %w", err)
	}
	defer func() {
		err = multierr.Append(err, out.Close())
	}()

	pcfg := pipeline.Config{
		Source:      src,
		Cache:       cache,
		Info:        info,
		Output:      out,
		ChannelSize: cfg.Capture.ChannelSize,
		IdleTimeout: cfg.Capture.AggregatorTimeout,
		Verify:      cfg.Capture.VerifyOffsets,
		Logger:      logger,
	}

	var server *api.Server
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		metrics := api.NewMetrics(reg)
		pcfg.Observer = metrics
		server = api.NewServer(api.ServerConfig{Bind: cfg.Metrics.Bind, Port: cfg.Metrics.Port},
			metrics, reg, sessionStatus(session), logger.Named("api"))
	}

	p, err := pipeline.New(pcfg)
	if err != nil {
		return pipeline.Snapshot{}, err
	}
	started = true

	if server != nil {
		serverCtx, stopServer := context.WithCancel(ctx)
		serverErr := make(chan error, 1)
		go func() { serverErr <- server.Run(serverCtx) }()
		defer func() {
			stopServer()
			if err := <-serverErr; err != nil {
				logger.Warn("metrics server failed", zap.Error(err))
			}
		}()
	}

	err = p.Run(ctx)
	return p.Stats(), err
}

func openSource(cfg *config.Config, replay string, logger *zap.Logger) (capture.Source, error) {
	factory := container.GetSourceFactory()
	if replay != "" {
		src, err := factory.Replay(replay, cfg.Capture.ChannelSize, logger.Named("replay"))
		if err != nil {
			return nil, fmt.Errorf("failed to open replay %s: %w", replay, err)
		}
		return src, nil
	}
	src, err := factory.Live(capture.EBPFConfig{
		ObjectPath:    cfg.Capture.BPFObject,
		RingBufferMap: cfg.Capture.RingBufferMap,
		ChannelSize:   cfg.Capture.ChannelSize,
		Logger:        logger.Named("ebpf"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to attach to binder tracepoints: %w", err)
	}
	return src, nil
}

// sessionStatus reports the running session. The server is stopped before
// the session is finished, so session is only read here.
func sessionStatus(session *storage.Session) api.StatusFunc {
	return func() (api.HealthStatus, error) {
		return api.HealthStatus{
			Status:    "capturing",
			SessionID: session.ID.String(),
			StartedAt: session.Started(),
			Uptime:    session.Duration().Round(time.Second).String(),
		}, nil
	}
}
