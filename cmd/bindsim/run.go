package main

import (
	"io"
	"os"
	"os/signal"

	"github.com/pkg/browser"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sarchlab/controllers/logging"
	"github.com/sarchlab/controllers/monitoring"
	"github.com/sarchlab/controllers/scene"
	"github.com/sarchlab/controllers/tracing"
)

type runOptions struct {
	traceCSV    string
	traceDB     string
	monitor     bool
	monitorPort int
	open        bool
	hold        bool
}

func newRunCmd() *cobra.Command {
	opts := runOptions{}

	runCmd := &cobra.Command{
		Use:   "run [scene.yaml]",
		Short: "Replay the scene's script and print the bind states",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			return runScene(cmd.OutOrStdout(), args[0], opts)
		},
	}

	flags := runCmd.Flags()
	flags.StringVar(&opts.traceCSV, "trace-csv", "",
		"write the lifecycle trace to this CSV file, without extension")
	flags.StringVar(&opts.traceDB, "trace-db", "",
		"write the lifecycle trace to this SQLite file, without extension")
	flags.BoolVar(&opts.monitor, "monitor", false,
		"serve the runtime state over HTTP")
	flags.IntVar(&opts.monitorPort, "monitor-port", 0,
		"port of the monitoring server, random if 0")
	flags.BoolVar(&opts.open, "open", false,
		"open the monitoring page in a browser")
	flags.BoolVar(&opts.hold, "hold", false,
		"keep serving after the script until interrupted")

	return runCmd
}

type closer interface {
	Close() error
}

func runScene(out io.Writer, path string, opts runOptions) error {
	s, err := loadScene(path)
	if err != nil {
		return err
	}

	var (
		writers []tracing.TraceWriter
		closers []closer
	)

	if opts.traceCSV != "" {
		w := tracing.NewCSVTraceWriter(opts.traceCSV)
		w.Init()
		writers = append(writers, w)
		closers = append(closers, w)
	}

	if opts.traceDB != "" {
		w := tracing.NewSQLiteTraceWriter(opts.traceDB)
		w.Init()
		writers = append(writers, w)
		closers = append(closers, w)
	}

	var monitor *monitoring.Monitor
	if opts.monitor || opts.open {
		mem := tracing.NewMemoryTraceWriter(1000)
		writers = append(writers, mem)

		monitor, err = startMonitor(s, mem, opts)
		if err != nil {
			return err
		}
	}

	tracer := tracing.NewTracer(s.Runtime, writers...)
	if len(writers) > 0 {
		tracer.TraceRuntime()
	}

	if err := replay(s, monitor); err != nil {
		return err
	}

	tracer.Flush()
	for _, c := range closers {
		if err := c.Close(); err != nil {
			return err
		}
	}

	if err := scene.PrintStates(out, s.States()); err != nil {
		return err
	}

	if monitor != nil && opts.hold {
		waitForInterrupt()
	}

	return nil
}

func startMonitor(
	s *scene.Scene,
	mem *tracing.MemoryTraceWriter,
	opts runOptions,
) (*monitoring.Monitor, error) {
	monitor := monitoring.NewMonitor(s.Runtime).
		WithPortNumber(opts.monitorPort).
		WithTrace(mem)

	url, err := monitor.StartServer()
	if err != nil {
		return nil, err
	}

	if opts.open {
		if err := browser.OpenURL(url); err != nil {
			logging.Log.WithError(err).Warn("cannot open the monitoring page")
		}
	}

	return monitor, nil
}

func replay(s *scene.Scene, monitor *monitoring.Monitor) error {
	var bar *monitoring.ProgressBar
	if monitor != nil {
		bar = monitor.CreateProgressBar("script", uint64(len(s.Script())))
		defer monitor.CompleteProgressBar(bar)
	}

	for i, step := range s.Script() {
		logging.Log.WithFields(logrus.Fields{
			"step":  i,
			"frame": s.Runtime.Frame(),
		}).Debug(step)

		if bar != nil {
			bar.IncrementInProgress(1)
		}

		var err error
		s.Runtime.Update(func() { err = s.Exec(step) })
		if err != nil {
			return err
		}

		if bar != nil {
			bar.MoveInProgressToFinished(1)
		}
	}

	return nil
}

func waitForInterrupt() {
	logging.Log.Info("script finished, press Ctrl-C to stop the monitoring server")

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	<-c
}
