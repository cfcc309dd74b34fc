package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"

	"github.com/hanpama/formstate/internal/eventbus"
	"github.com/hanpama/formstate/internal/form"
	"github.com/hanpama/formstate/internal/metrics"
	"github.com/hanpama/formstate/internal/otel"
	"github.com/hanpama/formstate/internal/reactive"
	"github.com/hanpama/formstate/internal/script"
	"github.com/hanpama/formstate/internal/snapshot"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

const rootUsage = `formstate — array field state synchronizer tools

USAGE:
  formstate <command> [flags]

COMMANDS:
  replay           Apply a YAML mutation script and print the resulting form state
  help             Show help for any command
`

const replayUsage = `replay FLAGS:
  -script <file>                  YAML script to replay, "-" for stdin (required)
  -out <file>                     Write the JSON snapshot to file (default: stdout)
  -store                          Print persisted array values instead of the snapshot
  -reactive.max-rounds N          Reaction settle round limit (default: 100)
  -log.level <level>              debug, info, warn or error (default: info)
  -metrics                        Print Prometheus metrics to stderr when done
  -otel.endpoint <addr>           OTLP collector endpoint
  -otel.service <name>            OpenTelemetry service name (default: formstate)
`

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		log.Fatal(err)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	global := flag.NewFlagSet("formstate", flag.ContinueOnError)
	global.SetOutput(new(bytes.Buffer)) // silence automatic output
	if err := global.Parse(args); err != nil {
		fmt.Fprint(stderr, rootUsage)
		return err
	}
	remaining := global.Args()
	if len(remaining) == 0 {
		fmt.Fprint(stderr, rootUsage)
		return fmt.Errorf("missing command")
	}

	cmd := remaining[0]
	cmdArgs := remaining[1:]
	switch cmd {
	case "replay":
		return cmdReplay(cmdArgs, stdin, stdout, stderr)
	case "help":
		return cmdHelp(cmdArgs, stdout)
	default:
		fmt.Fprint(stderr, rootUsage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func cmdHelp(args []string, stdout io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stdout, rootUsage)
		return nil
	}
	switch args[0] {
	case "replay":
		fmt.Fprint(stdout, replayUsage)
	default:
		return fmt.Errorf("unknown help topic %q", args[0])
	}
	return nil
}

func cmdReplay(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	scriptFile := ""
	outFile := ""
	printStore := false
	maxRounds := 100
	logLevel := "info"
	dumpMetrics := false
	otelEndpoint := ""
	otelService := "formstate"

	fs := flag.NewFlagSet("replay", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&scriptFile, "script", scriptFile, "YAML script to replay")
	fs.StringVar(&outFile, "out", outFile, "Write the JSON snapshot to file")
	fs.BoolVar(&printStore, "store", printStore, "Print persisted array values")
	fs.IntVar(&maxRounds, "reactive.max-rounds", maxRounds, "Reaction settle round limit")
	fs.StringVar(&logLevel, "log.level", logLevel, "Log level")
	fs.BoolVar(&dumpMetrics, "metrics", dumpMetrics, "Print Prometheus metrics when done")
	fs.StringVar(&otelEndpoint, "otel.endpoint", otelEndpoint, "OTLP collector endpoint")
	fs.StringVar(&otelService, "otel.service", otelService, "OpenTelemetry service name")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(stderr, replayUsage)
		return err
	}
	if scriptFile == "" {
		fmt.Fprint(stderr, replayUsage)
		return fmt.Errorf("-script is required")
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		return fmt.Errorf("-log.level: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	var src io.Reader = stdin
	if scriptFile != "-" {
		f, err := os.Open(scriptFile)
		if err != nil {
			return err
		}
		defer f.Close()
		src = f
	}
	s, err := script.Load(src)
	if err != nil {
		return fmt.Errorf("load script: %w", err)
	}

	eventbus.Use(eventbus.New())
	defer eventbus.Use(nil)
	shutdown, err := otel.Setup(otelEndpoint, otelService)
	if err != nil {
		return fmt.Errorf("otel setup: %w", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	reg := prometheus.NewRegistry()
	if dumpMetrics {
		_, detach, err := metrics.Register(reg)
		if err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
		defer detach()
	}

	obs := reactive.New(reactive.WithLogger(logger), reactive.WithMaxRounds(maxRounds))
	tree := form.New(form.WithObserver(obs), form.WithLogger(logger))
	store := snapshot.NewStore(logger)
	r := &script.Runner{Tree: tree, Sink: store, Logger: logger}
	if err := r.Run(context.Background(), s); err != nil {
		return err
	}

	var out []byte
	if printStore {
		out, err = store.MarshalJSON()
	} else {
		out, err = snapshot.Marshal(tree)
	}
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	out = append(out, '\n')
	if outFile == "" {
		_, err = stdout.Write(out)
	} else {
		err = os.WriteFile(outFile, out, 0644)
	}
	if err != nil {
		return err
	}

	if dumpMetrics {
		return writeMetrics(stderr, reg)
	}
	return nil
}

func writeMetrics(w io.Writer, g prometheus.Gatherer) error {
	mfs, err := g.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range mfs {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
