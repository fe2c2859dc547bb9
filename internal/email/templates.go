package email

import "text/template"

var ownerCreatedTmpl = template.Must(template.New("owner_created").Parse(`{{.Venue}}: new reservation

Booking ID: {{.ID}}

Guest name: {{.Name}}
Phone:      {{.Phone}}
Email:      {{.Email}}
Date:       {{.Date}}
Time:       {{.Time}}
Party size: {{.PartySize}} {{if eq .PartySize 1}}person{{else}}people{{end}}
{{- if .Note}}
Note:       {{.Note}}
{{- end}}

Cancel this booking: {{.CancelURL}}
`))

var guestCreatedTmpl = template.Must(template.New("guest_created").Parse(`Hi {{.Name}},

Your table at {{.Venue}} is confirmed.

Booking ID: {{.ID}}
Date:       {{.Date}}
Time:       {{.Time}}
Party size: {{.PartySize}}

We hold your table for 90 minutes from the booking time.

Can't make it? Cancel here: {{.CancelURL}}
`))

var ownerCancelledTmpl = template.Must(template.New("owner_cancelled").Parse(`{{.Venue}}: reservation cancelled

Booking ID: {{.ID}}
Guest:      {{.Name}}
Phone:      {{.Phone}}
Email:      {{.Email}}
Date:       {{.Date}}
Time:       {{.Time}}
Party size: {{.PartySize}}
`))

var contactTmpl = template.Must(template.New("contact").Parse(`New contact form message

From:    {{.Name}} <{{.Email}}>
Subject: {{.Subject}}

{{.Message}}
`))
