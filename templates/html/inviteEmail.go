package templates

import (
	"fmt"
	"html"
	"time"
)

// RenderInviteEmail generates the HTML for a course invite. Every value is
// escaped before it is placed in the page.
func RenderInviteEmail(courseName, link string, expiresAt time.Time) string {
	safeCourse := html.EscapeString(courseName)
	safeLink := html.EscapeString(link)
	expires := expiresAt.UTC().Format("January 2, 2006 15:04 MST")

	return fmt.Sprintf(`<!DOCTYPE html PUBLIC "-//W3C//DTD XHTML 1.0 Strict//EN" "http://www.w3.org/TR/xhtml1/DTD/xhtml1-strict.dtd">
<html xmlns="http://www.w3.org/1999/xhtml">
<head>
  <meta http-equiv="Content-Type" content="text/html; charset=utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1, minimum-scale=1, maximum-scale=1">
  <title>Join %s</title>
  <style type="text/css">
    body { font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; margin: 0; padding: 0; background-color: #f4f5f7; }
    .container { max-width: 600px; margin: 0 auto; background-color: #ffffff; }
    .header { background: linear-gradient(135deg, #2563eb 0%%, #7c3aed 100%%); padding: 40px 30px; text-align: center; }
    .header h1 { color: #fff; margin: 0; font-size: 24px; font-weight: 700; }
    .content { padding: 40px 30px; color: #1f2937; line-height: 1.6; font-size: 15px; }
    .button { display: inline-block; padding: 12px 28px; background-color: #2563eb; color: #fff; border-radius: 6px; text-decoration: none; font-weight: 600; }
    .footer { padding: 30px; text-align: center; color: #6b7280; font-size: 12px; border-top: 1px solid #e5e7eb; }
  </style>
</head>
<body>
  <div class="container">
    <div class="header">
      <h1>You're invited to %s</h1>
    </div>
    <div class="content">
      <p>Your instructor has invited you to join <strong>%s</strong>.</p>
      <p><a class="button" href="%s">Join the course</a></p>
      <p>If the button does not work, paste this link into your browser:<br>%s</p>
      <p>The link expires on %s.</p>
    </div>
    <div class="footer">
      <p>You received this e-mail because an instructor entered your address.</p>
    </div>
  </div>
</body>
</html>`, safeCourse, safeCourse, safeCourse, safeLink, safeLink, expires)
}
