package mailer

import (
	"context"
	"errors"
	"fmt"

	"github.com/mundotango/mundo-tango-api/pkg/helpers"
	tpl "github.com/mundotango/mundo-tango-api/pkg/mailer/templates"
)

var ErrEmptyJob = errors.New("email job needs a template or a subject with a body")

// Sender delivers one rendered message.
type Sender interface {
	Send(ctx context.Context, to, subject, text, html string) error
}

// Deliver renders job if it names a template and hands it to s. Jobs that
// cannot be rendered or addressed fail permanently; send errors do not.
func Deliver(ctx context.Context, s Sender, job EmailJob) error {
	if job.To == "" {
		return helpers.Permanent(errors.New("email job: missing recipient"))
	}
	subject, text, html := job.Subject, job.Text, job.HTML
	if job.Template != "" {
		var err error
		subject, text, html, err = tpl.Render(job.Template, job.Data)
		if err != nil {
			return helpers.Permanent(fmt.Errorf("render %s: %w", job.Template, err))
		}
	}
	if subject == "" || (text == "" && html == "") {
		return helpers.Permanent(ErrEmptyJob)
	}
	return s.Send(ctx, job.To, subject, text, html)
}
