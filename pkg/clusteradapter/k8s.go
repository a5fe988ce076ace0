// Package clusteradapter is the concrete, client-go-backed implementation
// of internal/logpipeline.ClusterAdapter. It is the only part of this
// repository that talks to a real cluster API; the spec treats it as an
// external collaborator, but a complete repository around the core needs a
// real implementation, grounded on the teacher's own client-go usage
// (internal/operation.go's extractConfig/informer wiring) and on the
// call shape shared by other_examples/castai-kvisor__pod_logreader.go,
// other_examples/crossplane-crossplane__podlog.go,
// other_examples/iver-wharf-wharf-cmd__logsreader.go, and
// other_examples/JNickson-cluster-telemetry-service__logs.go.
package clusteradapter

import (
	"context"
	"fmt"
	"net"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/rs/zerolog"

	"github.com/acidprime/garden/internal/logpipeline"
)

// Adapter implements logpipeline.ClusterAdapter against a real cluster.
type Adapter struct {
	client kubernetes.Interface
	logger zerolog.Logger
}

// New wraps an already-constructed client-go clientset. Use FromKubeConfig
// or FromInCluster to build the clientset the way the teacher's
// extractConfig did.
func New(client kubernetes.Interface, logger zerolog.Logger) *Adapter {
	return &Adapter{client: client, logger: logger.With().Str("component", "clusteradapter").Logger()}
}

// FromKubeConfig builds an Adapter from a kubeconfig file path, the
// out-of-cluster case (spec's "external collaborator" is swapped in here).
func FromKubeConfig(path string, logger zerolog.Logger) (*Adapter, error) {
	cfg, err := clientcmd.BuildConfigFromFlags("", path)
	if err != nil {
		return nil, fmt.Errorf("clientcmd.BuildConfigFromFlags: %w", err)
	}
	return fromRESTConfig(cfg, logger)
}

// FromInCluster builds an Adapter using the in-cluster service account,
// mirroring the teacher's extractConfig fallback.
func FromInCluster(logger zerolog.Logger) (*Adapter, error) {
	cfg, err := rest.InClusterConfig()
	if err != nil {
		return nil, fmt.Errorf("rest.InClusterConfig: %w", err)
	}
	return fromRESTConfig(cfg, logger)
}

func fromRESTConfig(cfg *rest.Config, logger zerolog.Logger) (*Adapter, error) {
	if cfg.Dial == nil {
		cfg.Dial = keepaliveDialer
	}
	clientset, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("kubernetes.NewForConfig: %w", err)
	}
	return New(clientset, logger), nil
}

// keepaliveDialer configures the TCP-level keepalive spec §4.1.f asks for
// on every connection client-go opens for us. It is the real socket-level
// half of the socket policy; the app-level idle-timeout half lives in
// logpipeline.IdleWatcher, since client-go's Stream(ctx) hands back an
// io.ReadCloser rather than the net.Conn a read deadline would need.
func keepaliveDialer(ctx context.Context, network, address string) (net.Conn, error) {
	dialer := &net.Dialer{KeepAlive: logpipeline.DefaultKeepAlive}
	return dialer.DialContext(ctx, network, address)
}

// EnumerateContainers implements logpipeline.ClusterAdapter.
func (a *Adapter) EnumerateContainers(ctx context.Context, namespace string, resources []logpipeline.Resource) ([]logpipeline.ContainerRef, error) {
	var refs []logpipeline.ContainerRef
	for _, res := range resources {
		pods, err := a.podsFor(ctx, namespace, res)
		if err != nil {
			return nil, fmt.Errorf("expanding resource %s/%s: %w", res.Kind, res.Name, err)
		}
		for _, pod := range pods {
			for _, status := range pod.Status.ContainerStatuses {
				ref := logpipeline.ContainerRef{
					PodName:       pod.Name,
					ContainerName: status.Name,
					Namespace:     pod.Namespace,
				}
				if ref.IsInfrastructure() {
					continue
				}
				refs = append(refs, ref)
			}
		}
	}
	return refs, nil
}

func (a *Adapter) podsFor(ctx context.Context, namespace string, res logpipeline.Resource) ([]corev1.Pod, error) {
	switch res.Kind {
	case logpipeline.ResourceKindPod:
		pod, err := a.client.CoreV1().Pods(namespace).Get(ctx, res.Name, metav1.GetOptions{})
		if err != nil {
			return nil, err
		}
		return []corev1.Pod{*pod}, nil

	case logpipeline.ResourceKindDeployment:
		dep, err := a.client.AppsV1().Deployments(namespace).Get(ctx, res.Name, metav1.GetOptions{})
		if err != nil {
			return nil, err
		}
		return a.listBySelector(ctx, namespace, dep.Spec.Selector)

	case logpipeline.ResourceKindDaemonSet:
		ds, err := a.client.AppsV1().DaemonSets(namespace).Get(ctx, res.Name, metav1.GetOptions{})
		if err != nil {
			return nil, err
		}
		return a.listBySelector(ctx, namespace, ds.Spec.Selector)

	case logpipeline.ResourceKindStatefulSet:
		ss, err := a.client.AppsV1().StatefulSets(namespace).Get(ctx, res.Name, metav1.GetOptions{})
		if err != nil {
			return nil, err
		}
		return a.listBySelector(ctx, namespace, ss.Spec.Selector)

	default:
		return nil, fmt.Errorf("unsupported resource kind %q", res.Kind)
	}
}

func (a *Adapter) listBySelector(ctx context.Context, namespace string, selector *metav1.LabelSelector) ([]corev1.Pod, error) {
	sel, err := metav1.LabelSelectorAsSelector(selector)
	if err != nil {
		return nil, err
	}
	list, err := a.client.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{LabelSelector: sel.String()})
	if err != nil {
		return nil, err
	}
	return list.Items, nil
}
