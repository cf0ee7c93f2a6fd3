package overdue

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"go.uber.org/zap"

	"library-backend/internal/platform/config"
)

// Notifier は延滞の通知先。失敗はそのまま呼び出し元へ返す。
type Notifier interface {
	Send(ctx context.Context, message string, recipients []string) error
}

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPNotifier は1通のメールを全員に送る。宛先はエンベロープのみでヘッダには出さない。
type SMTPNotifier struct {
	cfg      config.MailConfig
	sendMail sendMailFunc
	now      func() time.Time
}

func NewSMTPNotifier(cfg config.MailConfig) *SMTPNotifier {
	return &SMTPNotifier{cfg: cfg, sendMail: smtp.SendMail, now: time.Now}
}

func (n *SMTPNotifier) Send(ctx context.Context, message string, recipients []string) error {
	if len(recipients) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)
	var auth smtp.Auth
	if n.cfg.Username != "" {
		auth = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
	}
	if err := n.sendMail(addr, auth, n.cfg.From, recipients, n.build(message)); err != nil {
		return fmt.Errorf("smtp send to %s: %w", addr, err)
	}
	return nil
}

func (n *SMTPNotifier) build(body string) []byte {
	var b strings.Builder
	b.WriteString("From: " + headerValue(n.cfg.From) + "\r\n")
	b.WriteString("To: undisclosed-recipients:;\r\n")
	b.WriteString("Subject: " + headerValue(n.cfg.Subject) + "\r\n")
	b.WriteString("Date: " + n.now().Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(strings.ReplaceAll(body, "\r\n", "\n"), "\n", "\r\n"))
	b.WriteString("\r\n")
	return []byte(b.String())
}

// ヘッダインジェクション対策
func headerValue(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}

// LogNotifier はメール送信が無効なときに使う。
type LogNotifier struct {
	log *zap.SugaredLogger
}

func NewLogNotifier(log *zap.SugaredLogger) *LogNotifier { return &LogNotifier{log: log} }

func (n *LogNotifier) Send(_ context.Context, message string, recipients []string) error {
	n.log.Infow("overdue notice (mail disabled)", "recipients", recipients, "message", message)
	return nil
}
