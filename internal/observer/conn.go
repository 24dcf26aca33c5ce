package observer

import (
	"fmt"

	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"

	v1alpha1 "capstan/pkg/apis/capstan/v1alpha1"
)

// RESTConfig resolves a destination's connection settings. An explicit
// kubeconfig path wins; otherwise controller-runtime's usual resolution
// order applies (KUBECONFIG, in-cluster service account, ~/.kube/config).
// An explicit server URL overrides the host either way.
func RESTConfig(dest v1alpha1.DestinationSpec) (*rest.Config, error) {
	var (
		cfg *rest.Config
		err error
	)
	if dest.Kubeconfig != "" {
		loader := &clientcmd.ClientConfigLoadingRules{ExplicitPath: dest.Kubeconfig}
		cfg, err = clientcmd.NewNonInteractiveDeferredLoadingClientConfig(loader, &clientcmd.ConfigOverrides{}).ClientConfig()
	} else {
		cfg, err = ctrl.GetConfig()
	}
	if err != nil {
		return nil, fmt.Errorf("resolve destination config: %w", err)
	}
	if dest.Server != "" {
		cfg.Host = dest.Server
	}
	return cfg, nil
}

// Connect builds the cluster client for a destination. The observer and
// the apply path of one destination share the returned client.
func Connect(dest v1alpha1.DestinationSpec, scheme *runtime.Scheme) (client.Client, *rest.Config, error) {
	cfg, err := RESTConfig(dest)
	if err != nil {
		return nil, nil, err
	}
	cli, err := client.New(cfg, client.Options{Scheme: scheme})
	if err != nil {
		return nil, nil, fmt.Errorf("build cluster client: %w", err)
	}
	return cli, cfg, nil
}
