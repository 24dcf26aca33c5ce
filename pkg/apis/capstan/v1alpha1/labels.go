package v1alpha1

// TrackingLabel marks every resource capstan applies with the name of
// the Application that owns it. Ownership gates observation and prune
// decisions: resources without the label are invisible to the engine
// and are never deleted by it.
const TrackingLabel = "capstan.io/application"
