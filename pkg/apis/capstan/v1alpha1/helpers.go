package v1alpha1

import (
	"fmt"
	"time"
)

// ValidateSpec checks an Application definition for configuration
// defects that no amount of reconciling can fix.
func (a *Application) ValidateSpec() error {
	if a.Name == "" {
		return fmt.Errorf("application name must not be empty")
	}
	if a.Spec.Source.RepoURL == "" {
		return fmt.Errorf("application %s: spec.source.repoURL must not be empty", a.Name)
	}
	if a.Spec.SyncPolicy == nil {
		return nil
	}
	if retry := a.Spec.SyncPolicy.Retry; retry != nil {
		if retry.Limit < 0 {
			return fmt.Errorf("application %s: spec.syncPolicy.retry.limit must not be negative", a.Name)
		}
		if b := retry.Backoff; b != nil {
			if b.Factor < 0 {
				return fmt.Errorf("application %s: spec.syncPolicy.retry.backoff.factor must not be negative", a.Name)
			}
			if b.Duration != nil && b.Duration.Duration < 0 {
				return fmt.Errorf("application %s: spec.syncPolicy.retry.backoff.duration must not be negative", a.Name)
			}
			if b.MaxDuration != nil && b.MaxDuration.Duration < 0 {
				return fmt.Errorf("application %s: spec.syncPolicy.retry.backoff.maxDuration must not be negative", a.Name)
			}
		}
	}
	if iv := a.Spec.SyncPolicy.Interval; iv != nil && iv.Duration < 0 {
		return fmt.Errorf("application %s: spec.syncPolicy.interval must not be negative", a.Name)
	}
	return nil
}

// IsAutomated reports whether the Application syncs without manual
// triggers.
func (a *Application) IsAutomated() bool {
	return a.Spec.SyncPolicy != nil && a.Spec.SyncPolicy.Automated != nil
}

// PruneEnabled reports whether owned resources absent from the desired
// set may be deleted.
func (a *Application) PruneEnabled() bool {
	return a.IsAutomated() && a.Spec.SyncPolicy.Automated.Prune
}

// SelfHealEnabled reports whether out-of-band drift triggers an
// immediate reconciliation.
func (a *Application) SelfHealEnabled() bool {
	return a.IsAutomated() && a.Spec.SyncPolicy.Automated.SelfHeal
}

// ResyncInterval returns the per-Application resync interval, falling
// back to def when the policy does not override it.
func (a *Application) ResyncInterval(def time.Duration) time.Duration {
	if a.Spec.SyncPolicy != nil && a.Spec.SyncPolicy.Interval != nil && a.Spec.SyncPolicy.Interval.Duration > 0 {
		return a.Spec.SyncPolicy.Interval.Duration
	}
	return def
}

// RetryLimit returns the per-Application cap on consecutive transient
// failures; zero means unlimited.
func (a *Application) RetryLimit(def int) int {
	if a.Spec.SyncPolicy != nil && a.Spec.SyncPolicy.Retry != nil {
		return a.Spec.SyncPolicy.Retry.Limit
	}
	return def
}

// RevisionPinned reports whether TargetRevision names an exact content
// address (full git SHA or directory tree hash) instead of a symbolic
// pointer like a branch or tag.
func (s *SourceSpec) RevisionPinned() bool {
	r := s.TargetRevision
	if len(r) != 40 && len(r) != 64 {
		return false
	}
	for _, c := range r {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return true
}
