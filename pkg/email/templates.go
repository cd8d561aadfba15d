package email

import (
	"fmt"
	"html"
)

// CredentialEmailData is what a newly provisioned patient needs to sign in.
type CredentialEmailData struct {
	Name     string
	Email    string
	Login    string
	Password string
	AppName  string
	BaseURL  string
}

// BuildCredentialEmail delivers an issued password out of band.
func BuildCredentialEmail(data CredentialEmailData) Message {
	appName := orDefault(data.AppName, "Clinic")
	name := orDefault(data.Name, "there")

	subject := fmt.Sprintf("Your %s patient account", appName)

	textBody := fmt.Sprintf(`Hi %s,

An account has been created for you at %s.

Sign in: %s
Login: %s
Temporary password: %s

Please change the password after your first sign-in.

The %s Team`,
		name, appName, data.BaseURL, data.Login, data.Password, appName)

	htmlBody := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
</head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
    <h2 style="color: #0f766e;">Hi %s,</h2>
    <p>An account has been created for you at %s.</p>
    <table style="background-color: #f3f4f6; padding: 10px 15px; border-radius: 4px;">
        <tr><td>Login</td><td style="font-family: monospace;">%s</td></tr>
        <tr><td>Temporary password</td><td style="font-family: monospace;">%s</td></tr>
    </table>
    <p style="text-align: center; margin: 30px 0;">
        <a href="%s" style="background-color: #0f766e; color: white; padding: 12px 24px; text-decoration: none; border-radius: 6px; display: inline-block;">Sign in</a>
    </p>
    <p style="color: #6b7280; font-size: 14px;">Please change the password after your first sign-in.</p>
</body>
</html>`,
		html.EscapeString(name), html.EscapeString(appName), html.EscapeString(data.Login),
		html.EscapeString(data.Password), html.EscapeString(data.BaseURL))

	return Message{
		To:       []string{data.Email},
		Kind:     KindCredential,
		Subject:  subject,
		TextBody: textBody,
		HTMLBody: htmlBody,
	}
}

// InviteEmailData describes a pending patient invited to finish registration.
type InviteEmailData struct {
	Name      string
	Email     string
	InviteURL string
	ExpiresIn string
	AppName   string
}

func BuildInviteEmail(data InviteEmailData) Message {
	appName := orDefault(data.AppName, "Clinic")
	name := orDefault(data.Name, "there")
	expires := orDefault(data.ExpiresIn, "72 hours")

	subject := fmt.Sprintf("You're invited to %s", appName)

	textBody := fmt.Sprintf(`Hi %s,

Your clinic has registered you as a patient at %s.

Choose a password to activate your account:
%s

This invitation expires in %s.

The %s Team`,
		name, appName, data.InviteURL, expires, appName)

	htmlBody := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
</head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
    <h2 style="color: #0f766e;">Hi %s,</h2>
    <p>Your clinic has registered you as a patient at %s.</p>
    <p style="text-align: center; margin: 30px 0;">
        <a href="%s" style="background-color: #16a34a; color: white; padding: 14px 28px; text-decoration: none; border-radius: 6px; display: inline-block; font-size: 16px;">Activate account</a>
    </p>
    <p style="color: #6b7280; font-size: 14px;"><em>This invitation expires in %s.</em></p>
</body>
</html>`,
		html.EscapeString(name), html.EscapeString(appName), html.EscapeString(data.InviteURL), html.EscapeString(expires))

	return Message{
		To:       []string{data.Email},
		Kind:     KindInvite,
		Subject:  subject,
		TextBody: textBody,
		HTMLBody: htmlBody,
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
