package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/acidprime/garden/pkg/clusteradapter"
	"github.com/acidprime/garden/pkg/follower"
)

// consumerEntry is the caller-supplied consumer-facing shape the follower
// never looks inside — here just enough to print one JSON line per entry.
type consumerEntry struct {
	Timestamp string `json:"timestamp"`
	Container string `json:"container"`
	Level     string `json:"level"`
	Message   string `json:"message"`
}

// stdoutConsumer writes one JSON line per entry to stdout.
type stdoutConsumer struct {
	enc *json.Encoder
}

func (s stdoutConsumer) Write(entry consumerEntry) error {
	return s.enc.Encode(entry)
}

func main() {
	var (
		kubeConfigPath string
		namespace      string
		podName        string
		tailLines      int64
		since          string
		logger         = zerolog.New(os.Stderr).With().Timestamp().Logger()
	)

	flag.StringVar(&kubeConfigPath, "kubeconfigPath", "", "path to the kubeconfig file (empty uses in-cluster config)")
	flag.StringVar(&namespace, "namespace", "default", "namespace to follow pods in")
	flag.StringVar(&podName, "pod", "", "pod name to follow")
	flag.Int64Var(&tailLines, "tail", 0, "initial tail lines on fresh attach (0 = unset)")
	flag.StringVar(&since, "since", "", `since duration, e.g. "10s", "5m", "2d" (empty = unset)`)
	flag.Parse()

	if podName == "" {
		logger.Error().Msg("-pod is required")
		os.Exit(1)
	}

	var adapter *clusteradapter.Adapter
	var err error
	if kubeConfigPath != "" {
		adapter, err = clusteradapter.FromKubeConfig(kubeConfigPath, logger)
	} else {
		adapter, err = clusteradapter.FromInCluster(logger)
	}
	if err != nil {
		logger.Error().Err(err).Msg("building cluster adapter failed")
		os.Exit(1)
	}

	converter := func(ts time.Time, message, containerName, level string) consumerEntry {
		return consumerEntry{
			Timestamp: ts.Format(time.RFC3339),
			Container: containerName,
			Level:     level,
			Message:   message,
		}
	}
	consumer := stdoutConsumer{enc: json.NewEncoder(os.Stdout)}

	opts := follower.Options{
		Namespace: namespace,
		Resources: []follower.Resource{{Kind: follower.ResourceKindPod, Name: podName, Namespace: namespace}},
		Since:     since,
	}
	if tailLines > 0 {
		opts.Tail = &tailLines
	}

	f := follower.New[consumerEntry](adapter, converter, consumer, opts, follower.WithLogger[consumerEntry](logger))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-signals
		logger.Debug().Msg("follower interrupted")
		f.Stop()
		cancel()
	}()

	logger.Debug().Str("pod", podName).Str("namespace", namespace).Msg("following logs")
	<-f.Start(ctx)
}
