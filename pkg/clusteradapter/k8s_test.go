package clusteradapter

import (
	"context"
	"testing"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acidprime/garden/internal/logpipeline"
)

func podWithContainers(name, namespace string, labels map[string]string, containers ...string) *corev1.Pod {
	statuses := make([]corev1.ContainerStatus, len(containers))
	for i, c := range containers {
		statuses[i] = corev1.ContainerStatus{Name: c}
	}
	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: namespace, Labels: labels},
		Status:     corev1.PodStatus{ContainerStatuses: statuses},
	}
}

func TestAdapter_EnumerateContainers_Pod(t *testing.T) {
	pod := podWithContainers("web-1", "ns", nil, "app", logpipeline.InfrastructureContainerPrefix+"sidecar")
	clientset := fake.NewSimpleClientset(pod)
	adapter := New(clientset, zerolog.Nop())

	refs, err := adapter.EnumerateContainers(context.Background(), "ns", []logpipeline.Resource{
		{Kind: logpipeline.ResourceKindPod, Name: "web-1", Namespace: "ns"},
	})
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "app", refs[0].ContainerName)
}

func TestAdapter_EnumerateContainers_DeploymentExpandsToPods(t *testing.T) {
	selector := map[string]string{"app": "web"}
	dep := &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{Name: "web", Namespace: "ns"},
		Spec:       appsv1.DeploymentSpec{Selector: &metav1.LabelSelector{MatchLabels: selector}},
	}
	pod1 := podWithContainers("web-1", "ns", selector, "app")
	pod2 := podWithContainers("web-2", "ns", selector, "app")
	unrelated := podWithContainers("other-1", "ns", map[string]string{"app": "other"}, "app")

	clientset := fake.NewSimpleClientset(dep, pod1, pod2, unrelated)
	adapter := New(clientset, zerolog.Nop())

	refs, err := adapter.EnumerateContainers(context.Background(), "ns", []logpipeline.Resource{
		{Kind: logpipeline.ResourceKindDeployment, Name: "web", Namespace: "ns"},
	})
	require.NoError(t, err)
	require.Len(t, refs, 2)

	pods := map[string]bool{}
	for _, r := range refs {
		pods[r.PodName] = true
	}
	assert.True(t, pods["web-1"])
	assert.True(t, pods["web-2"])
	assert.False(t, pods["other-1"])
}

func TestAdapter_EnumerateContainers_ExcludesInfrastructureContainers(t *testing.T) {
	pod := podWithContainers("web-1", "ns", nil, logpipeline.InfrastructureContainerPrefix+"proxy")
	clientset := fake.NewSimpleClientset(pod)
	adapter := New(clientset, zerolog.Nop())

	refs, err := adapter.EnumerateContainers(context.Background(), "ns", []logpipeline.Resource{
		{Kind: logpipeline.ResourceKindPod, Name: "web-1", Namespace: "ns"},
	})
	require.NoError(t, err)
	assert.Empty(t, refs)
}

func TestAdapter_EnumerateContainers_UnsupportedKind(t *testing.T) {
	clientset := fake.NewSimpleClientset()
	adapter := New(clientset, zerolog.Nop())

	_, err := adapter.EnumerateContainers(context.Background(), "ns", []logpipeline.Resource{
		{Kind: "Job", Name: "x", Namespace: "ns"},
	})
	assert.Error(t, err)
}
