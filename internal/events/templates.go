package events

import (
	"fmt"
	"strings"
)

// MessageTemplateEngine provides dynamic message generation for events.
type MessageTemplateEngine struct {
	templates map[EventReason]string
}

// NewMessageTemplateEngine creates a new message template engine with default templates.
func NewMessageTemplateEngine() *MessageTemplateEngine {
	engine := &MessageTemplateEngine{
		templates: make(map[EventReason]string),
	}
	engine.loadDefaultTemplates()
	return engine
}

// loadDefaultTemplates initializes the default message templates for all event reasons.
func (e *MessageTemplateEngine) loadDefaultTemplates() {
	// Sync lifecycle templates
	e.templates[ReasonSyncStarted] = "Sync of {{.Name}} started at revision {{.Revision}}{{if .Trigger}} (trigger: {{.Trigger}}){{end}}"
	e.templates[ReasonSyncSucceeded] = "Sync of {{.Name}} to revision {{.Revision}} succeeded{{if .Changes}} with {{.Changes}} resource changes{{end}}{{if .Duration}} in {{.Duration}}{{end}}"
	e.templates[ReasonSyncFailed] = "Sync of {{.Name}} failed{{if .Error}}: {{.Error}}{{end}}"
	e.templates[ReasonSyncRetrying] = "Sync of {{.Name}} will be retried{{if .Error}} after error: {{.Error}}{{end}}"

	// Drift and prune templates
	e.templates[ReasonDriftDetected] = "Drift detected for {{.Name}}{{if .Resource}} on {{.Resource}}{{end}}"
	e.templates[ReasonResourcePruned] = "Pruned {{.Resource}} no longer present in revision {{.Revision}}"

	// Health templates
	e.templates[ReasonHealthDegraded] = "Application {{.Name}} became degraded{{if .Error}}: {{.Error}}{{end}}"

	// Registration templates
	e.templates[ReasonApplicationRegistered] = "Application {{.Name}} registered"
	e.templates[ReasonApplicationUpdated] = "Application {{.Name}} definition updated"
	e.templates[ReasonApplicationRemoved] = "Application {{.Name}} removed from the registry"
}

// Render generates a message for the given event reason and data.
func (e *MessageTemplateEngine) Render(reason EventReason, data EventData) string {
	template, exists := e.templates[reason]
	if !exists {
		// Fallback for unknown event reasons
		return fmt.Sprintf("Event: %s for application %s", string(reason), data.Name)
	}

	return e.renderTemplate(template, data)
}

// SetTemplate allows customizing the message template for a specific event reason.
func (e *MessageTemplateEngine) SetTemplate(reason EventReason, template string) {
	e.templates[reason] = template
}

// GetTemplate returns the template for a specific event reason.
func (e *MessageTemplateEngine) GetTemplate(reason EventReason) (string, bool) {
	template, exists := e.templates[reason]
	return template, exists
}

// renderTemplate performs simple template rendering with EventData.
// This is a simplified template system that supports basic variable substitution.
func (e *MessageTemplateEngine) renderTemplate(template string, data EventData) string {
	result := template

	// Replace basic variables
	result = strings.ReplaceAll(result, "{{.Name}}", data.Name)
	result = strings.ReplaceAll(result, "{{.Revision}}", data.Revision)
	result = strings.ReplaceAll(result, "{{.Trigger}}", data.Trigger)
	result = strings.ReplaceAll(result, "{{.Resource}}", data.Resource)
	result = strings.ReplaceAll(result, "{{.Error}}", data.Error)

	// Handle duration formatting
	if strings.Contains(result, "{{.Duration}}") {
		if data.Duration > 0 {
			result = strings.ReplaceAll(result, "{{.Duration}}", data.Duration.String())
		} else {
			result = strings.ReplaceAll(result, "{{.Duration}}", "")
		}
	}

	// Handle change counts
	if strings.Contains(result, "{{.Changes}}") {
		if data.Changes > 0 {
			result = strings.ReplaceAll(result, "{{.Changes}}", fmt.Sprintf("%d", data.Changes))
		} else {
			result = strings.ReplaceAll(result, "{{.Changes}}", "")
		}
	}

	// Handle conditional blocks
	result = e.renderConditionals(result, data)

	return result
}

// renderConditionals handles simple conditional rendering in templates.
// Supports: {{if .FieldName}}content{{end}}
func (e *MessageTemplateEngine) renderConditionals(template string, data EventData) string {
	result := template

	// Handle {{if .Trigger}}...{{end}}
	result = e.renderConditional(result, "{{if .Trigger}}", "{{end}}", data.Trigger != "")

	// Handle {{if .Resource}}...{{end}}
	result = e.renderConditional(result, "{{if .Resource}}", "{{end}}", data.Resource != "")

	// Handle {{if .Error}}...{{end}}
	result = e.renderConditional(result, "{{if .Error}}", "{{end}}", data.Error != "")

	// Handle {{if .Duration}}...{{end}}
	result = e.renderConditional(result, "{{if .Duration}}", "{{end}}", data.Duration > 0)

	// Handle {{if .Changes}}...{{end}}
	result = e.renderConditional(result, "{{if .Changes}}", "{{end}}", data.Changes > 0)

	return result
}

// renderConditional handles a single conditional block.
func (e *MessageTemplateEngine) renderConditional(template, startMarker, endMarker string, condition bool) string {
	startIndex := strings.Index(template, startMarker)
	if startIndex == -1 {
		return template
	}

	endIndex := strings.Index(template[startIndex:], endMarker)
	if endIndex == -1 {
		return template
	}

	endIndex += startIndex // Convert to absolute index

	if condition {
		// Keep the content between markers, remove the markers
		before := template[:startIndex]
		content := template[startIndex+len(startMarker) : endIndex]
		after := template[endIndex+len(endMarker):]
		return before + content + after
	} else {
		// Remove the entire conditional block
		before := template[:startIndex]
		after := template[endIndex+len(endMarker):]
		return before + after
	}
}
