package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"gopkg.in/gomail.v2"

	"notai_engine/internal/config"
	"notai_engine/internal/logbus"
	"notai_engine/internal/model"
)

type EmailNotifier struct {
	cfg config.EmailConfig
	bus *logbus.Bus

	send func(msg *gomail.Message) error
}

// NewEmailNotifier 在邮件未启用时返回 nil。
func NewEmailNotifier(cfg config.EmailConfig, bus *logbus.Bus) *EmailNotifier {
	if !cfg.Enabled {
		return nil
	}
	n := &EmailNotifier{cfg: cfg, bus: bus}
	n.send = n.dialAndSend
	return n
}

func (n *EmailNotifier) NotifyBatchFinished(ctx context.Context, summary model.BatchSummary) {
	if n == nil {
		return
	}
	if err := n.sendSummary(ctx, summary); err != nil {
		n.log("warn", "邮件发送失败", map[string]any{"error": err.Error(), "batchId": summary.BatchID})
		return
	}
	n.log("info", "通知邮件已发送", map[string]any{
		"batchId": summary.BatchID,
		"count":   len(summary.Reports),
		"to":      strings.Join(n.cfg.To, ","),
	})
}

func (n *EmailNotifier) sendSummary(ctx context.Context, summary model.BatchSummary) error {
	if err := validateEmailConfig(n.cfg); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(summary.Reports) == 0 {
		return errors.New("no reports")
	}

	htmlBody, textBody, err := buildSummaryEmailBody(summary)
	if err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", msg.FormatAddress(sender(n.cfg), "notai farmer"))
	msg.SetHeader("To", n.cfg.To...)
	msg.SetHeader("Subject", buildSummarySubject(summary))
	msg.SetBody("text/plain", textBody)
	msg.AddAlternative("text/html", htmlBody)
	return n.send(msg)
}

func (n *EmailNotifier) dialAndSend(msg *gomail.Message) error {
	d := gomail.NewDialer(n.cfg.Host, n.cfg.Port, n.cfg.Username, n.cfg.Password)
	d.SSL = n.cfg.Port == 465
	return d.DialAndSend(msg)
}

func (n *EmailNotifier) log(level, msg string, fields map[string]any) {
	if n.bus != nil {
		n.bus.Log(level, msg, fields)
	}
}

func sender(cfg config.EmailConfig) string {
	if s := strings.TrimSpace(cfg.From); s != "" {
		return s
	}
	return strings.TrimSpace(cfg.Username)
}

func validateEmailConfig(cfg config.EmailConfig) error {
	if strings.TrimSpace(cfg.Host) == "" {
		return errors.New("smtp host is required")
	}
	if _, err := mail.ParseAddress(sender(cfg)); err != nil {
		return errors.New("invalid sender address")
	}
	if len(cfg.To) == 0 {
		return errors.New("recipient is required")
	}
	for _, to := range cfg.To {
		if _, err := mail.ParseAddress(to); err != nil {
			return fmt.Errorf("invalid recipient %q", to)
		}
	}
	return nil
}

func buildSummarySubject(summary model.BatchSummary) string {
	loggedIn, missions, taps := summary.Totals()
	return fmt.Sprintf("notai 运行汇总（%d/%d 账号，%d 任务，%d 点击）", loggedIn, len(summary.Reports), missions, taps)
}

var emailSummaryHTMLTpl = template.Must(template.New("email-summary").Parse(`
<!doctype html>
<html lang="zh-CN">
  <head>
    <meta charset="utf-8" />
    <title>运行汇总</title>
  </head>
  <body style="margin:0;padding:0;background:#f6f8fb;font-family:-apple-system,'Segoe UI',Roboto,Arial,'PingFang SC','Microsoft YaHei',sans-serif;">
    <div style="max-width:760px;margin:0 auto;padding:24px;">
      <div style="background:#ffffff;border:1px solid #e6e8ef;border-radius:14px;overflow:hidden;">
        <div style="padding:18px 22px;background:linear-gradient(135deg,#0ea5e9,#6366f1);color:#ffffff;">
          <div style="font-size:16px;font-weight:700;">运行汇总</div>
          <div style="margin-top:6px;font-size:12px;opacity:.95;">批次 {{ .BatchID }}</div>
        </div>
        <div style="padding:22px;">
          <div style="font-size:14px;color:#111827;">
            共 <strong>{{ .Total }}</strong> 个账号，时间范围：{{ .Start }} ~ {{ .End }}
          </div>
          <table role="presentation" cellspacing="0" cellpadding="0" border="0" style="margin-top:12px;width:100%;border-collapse:collapse;">
            <thead>
              <tr style="background:#fafbff;">
                <th style="padding:10px 12px;text-align:left;font-size:12px;color:#6b7280;">账号</th>
                <th style="padding:10px 12px;text-align:left;font-size:12px;color:#6b7280;">等级</th>
                <th style="padding:10px 12px;text-align:left;font-size:12px;color:#6b7280;">伤害/上限</th>
                <th style="padding:10px 12px;text-align:left;font-size:12px;color:#6b7280;">任务</th>
                <th style="padding:10px 12px;text-align:left;font-size:12px;color:#6b7280;">点击</th>
                <th style="padding:10px 12px;text-align:left;font-size:12px;color:#6b7280;">结果</th>
              </tr>
            </thead>
            <tbody>
              {{ range .Rows }}
              <tr>
                <td style="padding:10px 12px;font-size:12px;color:#111827;border-top:1px solid #eef0f6;">{{ .Account }}</td>
                <td style="padding:10px 12px;font-size:12px;color:#111827;border-top:1px solid #eef0f6;">{{ .Levels }}</td>
                <td style="padding:10px 12px;font-size:12px;color:#111827;border-top:1px solid #eef0f6;">{{ .Upgrades }}</td>
                <td style="padding:10px 12px;font-size:12px;color:#111827;border-top:1px solid #eef0f6;">{{ .Missions }}</td>
                <td style="padding:10px 12px;font-size:12px;color:#111827;border-top:1px solid #eef0f6;">{{ .Taps }}</td>
                <td style="padding:10px 12px;font-size:12px;color:#111827;border-top:1px solid #eef0f6;">{{ .Result }}</td>
              </tr>
              {{ end }}
            </tbody>
          </table>
          <div style="margin-top:14px;color:#9ca3af;font-size:12px;">此邮件由系统自动发送</div>
        </div>
      </div>
    </div>
  </body>
</html>
`))

type summaryRow struct {
	Account  string
	Levels   string
	Upgrades string
	Missions string
	Taps     string
	Result   string
}

func buildSummaryEmailBody(summary model.BatchSummary) (htmlBody string, textBody string, err error) {
	if len(summary.Reports) == 0 {
		return "", "", errors.New("no reports")
	}

	rows := make([]summaryRow, 0, len(summary.Reports))
	for _, r := range summary.Reports {
		rows = append(rows, summaryRow{
			Account:  safeText(r.Progress.Username, r.TokenHint),
			Levels:   levelText(r.Progress),
			Upgrades: fmt.Sprintf("%d/%d", r.Progress.DamageUpgrades, r.Progress.LimitUpgrades),
			Missions: strconv.Itoa(r.Progress.MissionsCompleted),
			Taps:     strconv.Itoa(r.Progress.TapsPerformed),
			Result:   resultText(r),
		})
	}

	data := struct {
		BatchID string
		Total   int
		Start   string
		End     string
		Rows    []summaryRow
	}{
		BatchID: summary.BatchID,
		Total:   len(summary.Reports),
		Start:   formatMs(summary.StartedMs),
		End:     formatMs(summary.FinishedMs),
		Rows:    rows,
	}

	var buf bytes.Buffer
	if err := emailSummaryHTMLTpl.Execute(&buf, data); err != nil {
		return "", "", err
	}

	text := new(strings.Builder)
	text.WriteString("运行汇总\n")
	fmt.Fprintf(text, "批次 %s，共 %d 个账号，时间范围：%s ~ %s\n", data.BatchID, data.Total, data.Start, data.End)
	for _, row := range rows {
		fmt.Fprintf(text, "- %s | 等级 %s | 升级 %s | 任务 %s | 点击 %s | %s\n",
			row.Account, row.Levels, row.Upgrades, row.Missions, row.Taps, row.Result)
	}
	return buf.String(), text.String(), nil
}

func levelText(p model.Progress) string {
	if p.InitialLevel == nil || p.FinalLevel == nil {
		return "-"
	}
	return fmt.Sprintf("%d -> %d", *p.InitialLevel, *p.FinalLevel)
}

func resultText(r model.RunReport) string {
	switch {
	case !r.LoggedIn:
		return "登录失败"
	case r.Error != "":
		return "出错: " + r.Error
	case r.TapOutcome != "":
		return r.TapOutcome
	default:
		return "完成"
	}
}

func formatMs(ms int64) string {
	if ms <= 0 {
		return "-"
	}
	return time.UnixMilli(ms).Format("2006-01-02 15:04:05")
}

func safeText(prefer, fallback string) string {
	prefer = strings.TrimSpace(prefer)
	if prefer != "" {
		return prefer
	}
	return strings.TrimSpace(fallback)
}
