package mailer

import (
	"fmt"
	"html"
)

// PasswordReset builds the reset email carrying the one-time link
func PasswordReset(to, name, link string) Message {
	return Message{
		To:      to,
		Subject: "Password Reset Request",
		HTML: fmt.Sprintf(`<h2>Hello %s</h2>
<p>Please use the url below to reset your password.</p>
<p>This reset link is valid for only 30 minutes.</p>
<a href="%s" clicktracking="off">%s</a>
<p>Regards...</p>`, html.EscapeString(name), link, link),
	}
}

// ServiceDetails tells a client which service form was added to their profile
func ServiceDetails(to, serviceName, description string) Message {
	return Message{
		To:      to,
		Subject: "Details for Service: " + serviceName,
		HTML: fmt.Sprintf(`<h3>Service Name: %s</h3>
<p><strong>Description:</strong> %s</p>`, html.EscapeString(serviceName), html.EscapeString(description)),
	}
}

// ServiceFormInvitation asks a client to fill out a service form
func ServiceFormInvitation(to, serviceName, formURL string) Message {
	return Message{
		To:      to,
		Subject: "Service Form for " + serviceName,
		HTML: fmt.Sprintf(`<h1>Service Form Invitation</h1>
<p>Dear Client,</p>
<p>Please fill out the service form for: <strong>%s</strong>.</p>
<a href="%s" target="_blank">Fill Service Form</a>`, html.EscapeString(serviceName), formURL),
	}
}

// Welcome greets a walk-in client after an administrator registers them
func Welcome(to, serviceName, loginURL string) Message {
	return Message{
		To:      to,
		Subject: "Service Form for " + serviceName,
		HTML: fmt.Sprintf(`<h1>Welcome to Our Service</h1>
<p>Dear Client,</p>
<p>Your request for <strong>%s</strong> has been registered.</p>
<p>Please sign in and set your password from your <a href="%s" target="_blank">profile</a> to follow the status of your request.</p>`,
			html.EscapeString(serviceName), loginURL),
	}
}
