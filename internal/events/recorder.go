package events

import (
	"context"
	"fmt"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"capstan/internal/config"
	"capstan/pkg/apis/capstan/v1alpha1"
	"capstan/pkg/logging"
	pkgstrings "capstan/pkg/strings"
)

// createTimeout bounds a single Event write against the cluster.
const createTimeout = 10 * time.Second

// Recorder records reconciliation lifecycle events for Applications.
// Recording is best effort: failures are logged, never propagated, so a
// broken events pipeline cannot stall a sync.
type Recorder interface {
	// Record emits one event for the given Application. The Name field of
	// data is populated from the Application before rendering.
	Record(app *v1alpha1.Application, reason EventReason, data EventData)
}

// NewRecorder creates the Recorder matching the registry mode: Kubernetes
// Events in kubernetes mode, structured logs in filesystem mode.
func NewRecorder(cfg config.RegistryConfig) (Recorder, error) {
	switch cfg.Mode {
	case config.RegistryModeKubernetes:
		restConfig, err := ctrl.GetConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to load kubeconfig for event recording: %w", err)
		}
		return newKubeRecorder(restConfig)
	case config.RegistryModeFilesystem, "":
		return newLogRecorder(), nil
	default:
		return nil, fmt.Errorf("unknown registry mode %q", cfg.Mode)
	}
}

// logRecorder writes events to the structured log. It is the filesystem
// mode backend where no Events API exists.
type logRecorder struct {
	templates *MessageTemplateEngine
}

func newLogRecorder() *logRecorder {
	return &logRecorder{templates: NewMessageTemplateEngine()}
}

// Record logs the rendered event at a level matching its severity.
func (r *logRecorder) Record(app *v1alpha1.Application, reason EventReason, data EventData) {
	data.Name = app.Name
	message := r.templates.Render(reason, data)

	switch getEventType(reason) {
	case EventTypeWarning:
		logging.Warn("Events", "Event for %s: %s - %s", app.Name, string(reason), message)
	default:
		logging.Info("Events", "Event for %s: %s - %s", app.Name, string(reason), message)
	}
}

// eventWriter is the slice of client.Client the kubeRecorder needs.
type eventWriter interface {
	Create(ctx context.Context, obj client.Object, opts ...client.CreateOption) error
}

// kubeRecorder creates Kubernetes Event objects against the Applications
// they concern, visible through kubectl get events / kubectl describe.
type kubeRecorder struct {
	writer    eventWriter
	templates *MessageTemplateEngine
}

func newKubeRecorder(restConfig *rest.Config) (*kubeRecorder, error) {
	scheme := runtime.NewScheme()
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))

	c, err := client.New(restConfig, client.Options{Scheme: scheme})
	if err != nil {
		return nil, fmt.Errorf("failed to create event client: %w", err)
	}

	return &kubeRecorder{
		writer:    c,
		templates: NewMessageTemplateEngine(),
	}, nil
}

// Record creates a Kubernetes Event for the given Application.
func (r *kubeRecorder) Record(app *v1alpha1.Application, reason EventReason, data EventData) {
	data.Name = app.Name
	message := pkgstrings.TruncateMessage(r.templates.Render(reason, data), pkgstrings.EventMessageMaxLen)
	eventType := getEventType(reason)

	logging.Debug("Events", "Recording event for %s: reason=%s, type=%s, message=%s",
		app.Name, string(reason), string(eventType), message)

	gvk := v1alpha1.GroupVersion.WithKind("Application")
	event := &corev1.Event{
		ObjectMeta: metav1.ObjectMeta{
			GenerateName: app.Name + "-",
			Namespace:    eventNamespace(app),
		},
		InvolvedObject: corev1.ObjectReference{
			APIVersion: gvk.GroupVersion().String(),
			Kind:       gvk.Kind,
			Name:       app.Name,
			Namespace:  app.Namespace,
			UID:        app.GetUID(),
		},
		Reason:         string(reason),
		Message:        message,
		Type:           string(eventType),
		Source:         corev1.EventSource{Component: "capstan"},
		FirstTimestamp: metav1.NewTime(time.Now()),
		LastTimestamp:  metav1.NewTime(time.Now()),
		Count:          1,
	}

	ctx, cancel := context.WithTimeout(context.Background(), createTimeout)
	defer cancel()

	if err := r.writer.Create(ctx, event); err != nil {
		logging.Error("Events", err, "Failed to record %s event for application %s",
			string(reason), app.Name)
	}
}

// eventNamespace picks the namespace the Event object lands in. Events
// must be namespaced even when the Application definition is not.
func eventNamespace(app *v1alpha1.Application) string {
	if app.Namespace != "" {
		return app.Namespace
	}
	return metav1.NamespaceDefault
}
