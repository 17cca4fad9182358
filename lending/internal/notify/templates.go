package notify

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"
)

func loanRequestEmail(borrowerName, itemTitle, appURL string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w,
			`<h1>New Loan Request</h1>`+
				`<p><strong>%s</strong> wants to borrow <strong>%s</strong>.</p>`+
				`<p>Please review the request in your <a href="%s/admin/requests">Admin Dashboard</a>.</p>`,
			templ.EscapeString(borrowerName),
			templ.EscapeString(itemTitle),
			templ.EscapeString(appURL),
		)
		return err
	})
}

func loanStatusEmail(itemTitle, decision, appURL string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w,
			`<h1>Loan Request Update</h1>`+
				`<p>Your request to borrow <strong>%s</strong> has been <strong>%s</strong>.</p>`+
				`<p>Check your <a href="%s/loans">My Loans</a> page for more details.</p>`,
			templ.EscapeString(itemTitle),
			templ.EscapeString(decision),
			templ.EscapeString(appURL),
		)
		return err
	})
}

func render(ctx context.Context, tpl templ.Component) (string, error) {
	var sb strings.Builder
	if err := tpl.Render(ctx, &sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}
