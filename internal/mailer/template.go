package mailer

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/url"
	"strings"
	"time"

	"github.com/hitoshi/inkpost/internal/activation"
	"github.com/hitoshi/inkpost/internal/model"
)

// ActivationSubject は確認メールの件名。
const ActivationSubject = "Activate Your Account"

//go:embed templates/*.html
var templatesFS embed.FS

var activationTmpl = template.Must(template.ParseFS(templatesFS, "templates/activation_email.html"))

// ActivationEmailData は確認メールのテンプレート変数。
type ActivationEmailData struct {
	Username string
	Protocol string
	Domain   string
	UID      string
	Token    string
	Link     string
	ValidFor string
}

// NewActivationEmailData はユーザーとトークンからテンプレート変数を組み立てる。
// baseURLはスキームを含むサービスの公開URL。
func NewActivationEmailData(baseURL string, user *model.User, token *model.ActivationToken, ttl time.Duration) (ActivationEmailData, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ActivationEmailData{}, fmt.Errorf("invalid base URL %q", baseURL)
	}
	return ActivationEmailData{
		Username: user.Username,
		Protocol: u.Scheme,
		Domain:   u.Host + strings.TrimRight(u.Path, "/"),
		UID:      activation.EncodeUserID(user.ID),
		Token:    token.Token,
		Link:     activation.BuildURL(baseURL, user.ID, token.Token),
		ValidFor: humanizeDuration(ttl),
	}, nil
}

// RenderActivationEmail は確認メールのHTML本文を生成する。
func RenderActivationEmail(data ActivationEmailData) (string, error) {
	var buf bytes.Buffer
	if err := activationTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render activation email: %w", err)
	}
	return buf.String(), nil
}

// humanizeDuration は時間単位・分単位で割り切れる期間を読みやすい形にする。
func humanizeDuration(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		return plural(int(d/time.Hour), "hour")
	case d >= time.Minute && d%time.Minute == 0:
		return plural(int(d/time.Minute), "minute")
	default:
		return d.String()
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
