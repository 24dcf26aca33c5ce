// Package v1alpha1 contains API Schema definitions for the capstan
// v1alpha1 API group.
//
// The group defines a single resource, Application: a binding between a
// versioned manifest source (git repository or local directory) and a
// destination cluster, together with the sync policy that governs how
// capstan converges the cluster toward the source.
//
// Application definitions are consumed identically from two stores: as
// custom resources in a cluster (this package registered in the scheme)
// or as plain YAML files in a watched directory. The same schema applies
// to both; only the storage backend differs.
//
// # API Group: capstan.io/v1alpha1
//
// Example:
//
//	apiVersion: capstan.io/v1alpha1
//	kind: Application
//	metadata:
//	  name: hello-web
//	spec:
//	  source:
//	    repoURL: https://github.com/example/hello-gitops.git
//	    path: manifests
//	    targetRevision: main
//	  destination:
//	    namespace: hello
//	  syncPolicy:
//	    automated:
//	      prune: true
//	      selfHeal: true
//	    interval: 3m
//
// +kubebuilder:object:generate=true
// +groupName=capstan.io
package v1alpha1
