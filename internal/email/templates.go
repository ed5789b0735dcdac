package email

// Template placeholders are substituted by exact string match; see Composer.
// {{AVATAR_CID}} is filled with the content ID of the inline image part.

// DefaultHTMLTemplate is the HTML body for an avatar delivery email
const DefaultHTMLTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Your Superhero Avatar is Ready!</title>
</head>
<body style="margin:0;padding:20px;font-family:Arial,Helvetica,sans-serif;background-color:#f4f4f4;">
<table width="100%" cellpadding="0" cellspacing="0" style="background-color:#f4f4f4;">
<tr><td align="center">
<table width="600" cellpadding="0" cellspacing="0" style="background-color:#ffffff;border-radius:10px;overflow:hidden;box-shadow:0 4px 6px rgba(0,0,0,0.1);">
  <tr><td style="background:linear-gradient(90deg,#FF6B35 0%,#F7931E 100%);color:#ffffff;padding:30px;text-align:center;">
    <h1 style="margin:0;font-size:28px;">Your Superhero Avatar is Ready!</h1>
  </td></tr>
  <tr><td style="padding:30px;">
    <p style="font-size:18px;color:#333333;">Hi {{NAME}}!</p>
    <p style="font-size:16px;color:#666666;line-height:1.6;">
      Your amazing {{SUPERHERO}}-inspired avatar with {{COLOR}} theme and your favorite {{CAR}} is ready!
    </p>
    <div style="text-align:center;margin:30px 0;">
      <img src="cid:{{AVATAR_CID}}" alt="Your Superhero Avatar" style="max-width:100%;height:auto;border-radius:10px;box-shadow:0 4px 8px rgba(0,0,0,0.2);">
    </div>
    <p style="font-size:16px;color:#666666;line-height:1.6;">
      Your avatar is attached to this email. Feel free to download it and share your superhero transformation with friends!
    </p>
    <p style="font-size:14px;color:#999999;text-align:center;margin-top:30px;">
      Created at the Herogram booth &mdash; this is an automated message, please do not reply.
    </p>
  </td></tr>
</table>
</td></tr>
</table>
</body>
</html>`

// DefaultTextTemplate is the plain-text fallback body
const DefaultTextTemplate = `Hi {{NAME}}!

Your Superhero Avatar is Ready!

Your amazing {{SUPERHERO}}-inspired avatar with {{COLOR}} theme and your favorite {{CAR}} is ready!

Your avatar image is attached to this email. Feel free to download it and share your superhero transformation with friends!

- The Herogram Superhero Creator`

// DefaultSubjectTemplate is the subject line template
const DefaultSubjectTemplate = "Your {{SUPERHERO}} Avatar is Ready!"
