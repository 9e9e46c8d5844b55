package notifier

import (
	"fmt"
	"html"
	"strings"

	"github.com/duesjobs/duesjobs/internal/model"
	"github.com/duesjobs/duesjobs/internal/telegram"
)

// telegramMaxItems caps the bullet list in a Telegram digest.
const telegramMaxItems = 10

func emailSubject(n int) string {
	return fmt.Sprintf("Your Daily Job Summary - %d New Jobs", n)
}

func locationOrRemote(j model.Job) string {
	if loc := j.LocationText(); loc != "" {
		return loc
	}
	return "Remote"
}

func emailHTML(jobs []model.Job) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n<meta charset=\"utf-8\">\n</head>\n<body>\n")
	b.WriteString("<h1>Daily Job Summary</h1>\n")
	fmt.Fprintf(&b, "<p>We found %d new jobs matching your preferences:</p>\n<ul>\n", len(jobs))
	for _, j := range jobs {
		fmt.Fprintf(&b, "<li><a href=\"%s\"><b>%s</b></a> at %s (%s)</li>\n",
			html.EscapeString(j.ApplyURL),
			html.EscapeString(j.Title),
			html.EscapeString(j.Company),
			html.EscapeString(locationOrRemote(j)))
	}
	b.WriteString("</ul>\n<p><small>Sent by Dues Jobs</small></p>\n</body>\n</html>\n")
	return b.String()
}

func emailText(jobs []model.Job) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Daily Job Summary\n\nFound %d new jobs:\n", len(jobs))
	for _, j := range jobs {
		fmt.Fprintf(&b, "- %s at %s (%s)\n", j.Title, j.Company, j.ApplyURL)
	}
	return b.String()
}

func telegramText(jobs []model.Job) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📢 *Daily Job Summary*\nFound %d new jobs:\n\n", len(jobs))
	shown := min(len(jobs), telegramMaxItems)
	for i, j := range jobs[:shown] {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "• [%s](%s) at %s",
			telegram.EscapeMarkdown(j.Title), telegram.EscapeLinkURL(j.ApplyURL), telegram.EscapeMarkdown(j.Company))
	}
	if rest := len(jobs) - shown; rest > 0 {
		fmt.Fprintf(&b, "\n\n...and %d more.", rest)
	}
	return b.String()
}
