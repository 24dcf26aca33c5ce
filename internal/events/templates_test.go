package events

import (
	"strings"
	"testing"
	"time"
)

func TestRender_SyncStartedWithTrigger(t *testing.T) {
	engine := NewMessageTemplateEngine()

	message := engine.Render(ReasonSyncStarted, EventData{
		Name:     "web",
		Revision: "3f2a1bc",
		Trigger:  "manual",
	})

	expected := "Sync of web started at revision 3f2a1bc (trigger: manual)"
	if message != expected {
		t.Errorf("Expected message %q, got %q", expected, message)
	}
}

func TestRender_ConditionalBlockDropsWhenEmpty(t *testing.T) {
	engine := NewMessageTemplateEngine()

	message := engine.Render(ReasonSyncStarted, EventData{
		Name:     "web",
		Revision: "3f2a1bc",
	})

	expected := "Sync of web started at revision 3f2a1bc"
	if message != expected {
		t.Errorf("Expected message %q, got %q", expected, message)
	}
}

func TestRender_SyncSucceededWithCountsAndDuration(t *testing.T) {
	engine := NewMessageTemplateEngine()

	message := engine.Render(ReasonSyncSucceeded, EventData{
		Name:     "web",
		Revision: "3f2a1bc",
		Changes:  3,
		Duration: 2 * time.Second,
	})

	expected := "Sync of web to revision 3f2a1bc succeeded with 3 resource changes in 2s"
	if message != expected {
		t.Errorf("Expected message %q, got %q", expected, message)
	}
}

func TestRender_SyncSucceededWithoutChanges(t *testing.T) {
	engine := NewMessageTemplateEngine()

	message := engine.Render(ReasonSyncSucceeded, EventData{
		Name:     "web",
		Revision: "3f2a1bc",
	})

	expected := "Sync of web to revision 3f2a1bc succeeded"
	if message != expected {
		t.Errorf("Expected message %q, got %q", expected, message)
	}
}

func TestRender_SyncFailedIncludesError(t *testing.T) {
	engine := NewMessageTemplateEngine()

	message := engine.Render(ReasonSyncFailed, EventData{
		Name:  "web",
		Error: "connection refused",
	})

	expected := "Sync of web failed: connection refused"
	if message != expected {
		t.Errorf("Expected message %q, got %q", expected, message)
	}
}

func TestRender_PrunedResource(t *testing.T) {
	engine := NewMessageTemplateEngine()

	message := engine.Render(ReasonResourcePruned, EventData{
		Name:     "web",
		Revision: "3f2a1bc",
		Resource: "apps/Deployment default/legacy",
	})

	expected := "Pruned apps/Deployment default/legacy no longer present in revision 3f2a1bc"
	if message != expected {
		t.Errorf("Expected message %q, got %q", expected, message)
	}
}

func TestRender_UnknownReasonFallsBack(t *testing.T) {
	engine := NewMessageTemplateEngine()

	message := engine.Render(EventReason("SomethingNovel"), EventData{Name: "web"})

	if !strings.Contains(message, "SomethingNovel") || !strings.Contains(message, "web") {
		t.Errorf("Fallback message should mention reason and application, got %q", message)
	}
}

func TestSetTemplate_OverridesDefault(t *testing.T) {
	engine := NewMessageTemplateEngine()
	engine.SetTemplate(ReasonSyncStarted, "custom for {{.Name}}")

	message := engine.Render(ReasonSyncStarted, EventData{Name: "web"})
	if message != "custom for web" {
		t.Errorf("Expected overridden template to render, got %q", message)
	}

	template, exists := engine.GetTemplate(ReasonSyncStarted)
	if !exists || template != "custom for {{.Name}}" {
		t.Errorf("Expected GetTemplate to return the override, got %q (exists=%v)", template, exists)
	}
}

func TestGetEventType(t *testing.T) {
	tests := []struct {
		reason   EventReason
		expected EventType
	}{
		{ReasonSyncStarted, EventTypeNormal},
		{ReasonSyncSucceeded, EventTypeNormal},
		{ReasonSyncFailed, EventTypeWarning},
		{ReasonSyncRetrying, EventTypeWarning},
		{ReasonDriftDetected, EventTypeWarning},
		{ReasonResourcePruned, EventTypeNormal},
		{ReasonHealthDegraded, EventTypeWarning},
		{ReasonApplicationRegistered, EventTypeNormal},
		{ReasonApplicationRemoved, EventTypeNormal},
	}

	for _, tt := range tests {
		if got := getEventType(tt.reason); got != tt.expected {
			t.Errorf("getEventType(%s) = %s, expected %s", tt.reason, got, tt.expected)
		}
	}
}
