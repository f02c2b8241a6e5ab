package web

import (
	"time"

	"github.com/a-h/templ"

	"github.com/TecharoHQ/formguard/lib/localization"
)

// Comment is one rendered comment.
type Comment struct {
	ID       string
	Author   string
	Body     string
	PostedAt time.Time
}

// Form is the state of the comment form. Token is the value of the hidden
// token field; Error, when set, is shown above the form.
type Form struct {
	Action    string
	Author    string
	Body      string
	Token     string
	Error     string
	MaxLength int
}

// Thread is everything the thread page shows.
type Thread struct {
	ID       string
	Comments []Comment
	Form     Form
}

func Base(title string, body templ.Component, localizer *localization.SimpleLocalizer) templ.Component {
	return base(title, body, localizer)
}

// ThreadPage renders the comments of a thread followed by the comment form.
func ThreadPage(thread Thread, localizer *localization.SimpleLocalizer) templ.Component {
	return threadPage(thread, localizer)
}

// CommentForm renders the comment form with its token and honeypot fields.
func CommentForm(f Form, localizer *localization.SimpleLocalizer) templ.Component {
	return commentForm(f, localizer)
}

// TokenField renders the hidden input carrying the submission token.
func TokenField(name, value string) templ.Component {
	return tokenField(name, value)
}

// Honeypot renders a text input hidden from humans. It accepts no input, so
// anything submitted in it was filled in by a bot.
func Honeypot(name, label string) templ.Component {
	return honeypot(name, label)
}

func ErrorPage(msg string) templ.Component {
	return errorPage(msg)
}

func authorName(c Comment, localizer *localization.SimpleLocalizer) string {
	if c.Author == "" {
		return localizer.T("anonymous")
	}
	return c.Author
}
