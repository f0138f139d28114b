package chatbot

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"SupportChat/internal/backend"
	"SupportChat/internal/session"
)

var suggestedQuestions = []string{
	"What is the warranty policy?",
	"Which laptop is good for office work?",
	"What promotions are running this month?",
	"Find me a cheap Samsung phone",
	"How is my order doing?",
	"How do I return a product?",
}

// SuggestedQuestions returns the starter prompts offered on an empty conversation
func SuggestedQuestions() []string {
	return append([]string(nil), suggestedQuestions...)
}

var (
	userLabel      = color.New(color.FgBlue, color.Bold)
	assistantLabel = color.New(color.FgGreen, color.Bold)
	failureText    = color.New(color.FgRed)
	productName    = color.New(color.FgCyan, color.Bold)
	priceText      = color.New(color.FgYellow)
	faint          = color.New(color.FgHiBlack)
)

// renderMessage writes one transcript message with its products and actions
func renderMessage(w io.Writer, msg session.Message) {
	if msg.Role == session.RoleUser {
		userLabel.Fprint(w, "You: ")
		fmt.Fprintln(w, msg.Content)
		return
	}

	assistantLabel.Fprint(w, "Assistant: ")
	if strings.HasPrefix(msg.Content, "Error: ") {
		failureText.Fprintln(w, msg.Content)
	} else {
		fmt.Fprintln(w, msg.Content)
	}

	if msg.ToolUsed != "" {
		faint.Fprintf(w, "  (via %s)\n", msg.ToolUsed)
	}
	renderProducts(w, msg.Products)
	renderActions(w, msg.Actions)
	fmt.Fprintln(w)
}

func renderProducts(w io.Writer, products []backend.Product) {
	for _, p := range products {
		fmt.Fprint(w, "  * ")
		productName.Fprint(w, p.Name)
		fmt.Fprint(w, "  ")
		priceText.Fprint(w, backend.FormatPrice(p.Price))

		if p.OriginalPrice > p.Price {
			faint.Fprintf(w, "  was %s", backend.FormatPrice(p.OriginalPrice))
		}
		if d := p.Discount(); d > 0 {
			faint.Fprintf(w, " (-%d%%)", d)
		}
		if !p.InStock {
			failureText.Fprint(w, "  out of stock")
		}
		fmt.Fprintln(w)
	}
}

func renderActions(w io.Writer, actions []backend.Action) {
	if len(actions) == 0 {
		return
	}
	faint.Fprintln(w, "  Actions (use /do N):")
	for i, a := range actions {
		fmt.Fprintf(w, "  [%d] %s\n", i+1, a.Label)
	}
}

func renderSuggestions(w io.Writer) {
	faint.Fprintln(w, "Try asking (use /ask N):")
	for i, q := range suggestedQuestions {
		fmt.Fprintf(w, "  [%d] %s\n", i+1, q)
	}
	fmt.Fprintln(w)
}

func renderConversation(w io.Writer, c backend.Conversation) {
	title := c.Title
	if title == "" {
		title = "(untitled)"
	}
	fmt.Fprintf(w, "  %-6s %s", c.ID, title)
	if !c.UpdatedAt.IsZero() {
		faint.Fprintf(w, "  %s", c.UpdatedAt.Local().Format("2006-01-02 15:04"))
	}
	fmt.Fprintln(w)
}
