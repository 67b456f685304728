package notification

import "strings"

// Template is a notification text pair with {{var}} placeholders.
type Template struct {
	Title   string
	Message string
}

// templates maps event types to their client-facing text.
var templates = map[string]Template{
	EventOrderCreated: {
		Title:   "Order {{orderCode}} received",
		Message: "Your order {{orderCode}} was created and is awaiting payment.",
	},
	EventOrderPaid: {
		Title:   "Order {{orderCode}} paid",
		Message: "Payment for order {{orderCode}} was received. We will start preparing your meals soon.",
	},
	EventOrderPreparing: {
		Title:   "Order {{orderCode}} in preparation",
		Message: "Your meals for order {{orderCode}} are being prepared.",
	},
	EventOrderReady: {
		Title:   "Order {{orderCode}} ready for pickup",
		Message: "Your order {{orderCode}} is ready. Show your pickup code at the counter.",
	},
	EventOrderCompleted: {
		Title:   "Order {{orderCode}} completed",
		Message: "Order {{orderCode}} was picked up. Enjoy your meals!",
	},
	EventOrderCancelled: {
		Title:   "Order {{orderCode}} cancelled",
		Message: "Your order {{orderCode}} has been cancelled.",
	},
}

// Render produces the title and message for an event type, substituting
// template variables. The second return is false for unknown event types.
func Render(eventType string, vars map[string]string) (Template, bool) {
	tmpl, ok := templates[eventType]
	if !ok {
		return Template{}, false
	}
	return Template{
		Title:   replaceVars(tmpl.Title, vars),
		Message: replaceVars(tmpl.Message, vars),
	}, true
}

func replaceVars(text string, vars map[string]string) string {
	for key, value := range vars {
		text = strings.ReplaceAll(text, "{{"+key+"}}", value)
	}
	return text
}
