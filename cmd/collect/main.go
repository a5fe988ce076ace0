package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/acidprime/garden/pkg/clusteradapter"
	"github.com/acidprime/garden/pkg/follower"
)

type entry struct {
	Timestamp string `json:"timestamp"`
	Container string `json:"container"`
	Level     string `json:"level"`
	Message   string `json:"message"`
}

type stdoutConsumer struct{ enc *json.Encoder }

func (s stdoutConsumer) Write(e entry) error { return s.enc.Encode(e) }

func main() {
	var (
		kubeConfigPath string
		namespace      string
		podName        string
		since          string
		logger         = zerolog.New(os.Stderr).With().Timestamp().Logger()
	)

	flag.StringVar(&kubeConfigPath, "kubeconfigPath", "", "path to the kubeconfig file (empty uses in-cluster config)")
	flag.StringVar(&namespace, "namespace", "default", "namespace to collect from")
	flag.StringVar(&podName, "pod", "", "pod name to collect from")
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

	converter := func(ts time.Time, message, containerName, level string) entry {
		return entry{Timestamp: ts.Format(time.RFC3339), Container: containerName, Level: level, Message: message}
	}
	consumer := stdoutConsumer{enc: json.NewEncoder(os.Stdout)}

	collector := follower.NewCollector[entry](adapter, converter, consumer, follower.FilterConfig{}, follower.WithLogger[entry](logger))

	if err := collector.Collect(context.Background(), follower.OneShotOptions{
		Namespace: namespace,
		Resources: []follower.Resource{{Kind: follower.ResourceKindPod, Name: podName, Namespace: namespace}},
		Since:     since,
	}); err != nil {
		logger.Error().Err(err).Msg("collect failed")
		os.Exit(1)
	}
}
