package messaging

import (
	"bytes"
	htmltemplate "html/template"
	"text/template"
)

// VerificationEmail is the data rendered into a verification request e-mail.
type VerificationEmail struct {
	To            string
	CandidateName string
	Company       string
	Position      string
	StartDate     string
	EndDate       string
	Link          string
	ExpiresOn     string
}

const subjectTemplate = `Employment verification request for {{.CandidateName}}`

const textTemplate = `Hello,

{{.CandidateName}} listed the following role at {{.Company}}:

  {{.Position}} ({{.StartDate}} - {{.EndDate}})

Please confirm or deny this employment by opening the link below. You will be
asked to prove you are a unique person; no account is needed.

{{.Link}}

This link is valid until {{.ExpiresOn}}.
`

const htmlTemplate = `<!DOCTYPE html>
<html>
<body style="font-family: sans-serif; color: #222;">
  <p>Hello,</p>
  <p><strong>{{.CandidateName}}</strong> listed the following role at <strong>{{.Company}}</strong>:</p>
  <p>{{.Position}} ({{.StartDate}} &ndash; {{.EndDate}})</p>
  <p>Please confirm or deny this employment:</p>
  <p><a href="{{.Link}}" style="background:#2563eb;color:#fff;padding:10px 16px;border-radius:6px;text-decoration:none;">Verify employment</a></p>
  <p style="font-size: 12px; color: #666;">This link is valid until {{.ExpiresOn}}.</p>
</body>
</html>
`

var (
	subjectTmpl = template.Must(template.New("subject").Parse(subjectTemplate))
	textTmpl    = template.Must(template.New("text").Parse(textTemplate))
	htmlTmpl    = htmltemplate.Must(htmltemplate.New("html").Parse(htmlTemplate))
)

// RenderVerificationRequest builds the e-mail sent to an employer contact.
func RenderVerificationRequest(data VerificationEmail) (Message, error) {
	if data.CandidateName == "" {
		data.CandidateName = "A candidate"
	}
	var subject, text, html bytes.Buffer
	if err := subjectTmpl.Execute(&subject, data); err != nil {
		return Message{}, err
	}
	if err := textTmpl.Execute(&text, data); err != nil {
		return Message{}, err
	}
	if err := htmlTmpl.Execute(&html, data); err != nil {
		return Message{}, err
	}
	return Message{To: data.To, Subject: subject.String(), HTML: html.String(), Text: text.String()}, nil
}
