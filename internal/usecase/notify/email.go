package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	domnotif "github.com/kailas-cloud/lostmatch/internal/domain/notification"
)

var emailTemplate = template.Must(template.New("match").Funcs(template.FuncMap{
	"inc": func(i int) int { return i + 1 },
	"pct": domnotif.Percent,
}).Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Potential Matches Found</title></head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
<div style="max-width: 600px; margin: 0 auto; padding: 20px;">
<h1>Great News!</h1>
<p>Hello {{.Name}},</p>
<p>Our matching system has identified {{.Count}} potential {{.Noun}} for your {{.Type}} report. Here are the details:</p>
{{range $i, $m := .Matches}}<div style="background: #fff; margin: 10px 0; padding: 15px; border-left: 4px solid #4CAF50;">
<h3>Match #{{inc $i}}</h3>
<p><strong>Similarity:</strong> {{pct $m.Similarity}}%</p>
<p><strong>Confidence:</strong> {{pct $m.Confidence}}%</p>
<p><strong>Type:</strong> {{$m.Kind}} report</p>
<p><strong>Matches found:</strong> {{$m.MatchPoints}} feature points</p>
</div>
{{end}}<p>The best match shows a <strong>{{.Top}}% similarity</strong> with your report.</p>
<p><a href="{{.Link}}">View All Matches</a></p>
<p>You're receiving this because you enabled match alerts in your notification preferences.
To unsubscribe, <a href="{{.SettingsLink}}">update your preferences</a>.</p>
</div>
</body>
</html>
`))

type emailView struct {
	Name         string
	Count        int
	Noun         string
	Type         string
	Matches      []domnotif.MatchSummary
	Top          int
	Link         string
	SettingsLink string
}

// renderEmail builds the match email for e addressed to name at to.
func renderEmail(e domnotif.Event, to, name, publicURL string) (domnotif.Email, error) {
	base := strings.TrimRight(publicURL, "/")
	if name == "" {
		name = "there"
	}
	view := emailView{
		Name:         name,
		Count:        e.MatchCount(),
		Noun:         domnotif.Plural(e.MatchCount()),
		Type:         string(e.ReportType),
		Matches:      e.Matches,
		Top:          domnotif.Percent(e.TopSimilarity()),
		Link:         base + e.Link(),
		SettingsLink: base + "/settings",
	}
	var buf bytes.Buffer
	if err := emailTemplate.Execute(&buf, view); err != nil {
		return domnotif.Email{}, fmt.Errorf("render match email: %w", err)
	}
	return domnotif.Email{To: to, Subject: e.EmailSubject(), HTML: buf.String()}, nil
}
