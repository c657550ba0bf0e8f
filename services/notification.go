package services

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"skolu-backend/config"
	"skolu-backend/engine"
	"skolu-backend/logger"
	"skolu-backend/models"
)

// NotificationService delivers email via SendGrid and push via FCM. Both
// transports are optional: with no API key or credentials file the service
// degrades to logging only.
type NotificationService struct {
	mail *sendgrid.Client
	fcm  *messaging.Client
}

func NewNotificationService(ctx context.Context) *NotificationService {
	ns := &NotificationService{}

	if config.AppConfig.SendGridAPIKey != "" {
		ns.mail = sendgrid.NewSendClient(config.AppConfig.SendGridAPIKey)
	} else {
		logger.Log.Warn("sendgrid api key not set, email notifications disabled")
	}

	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(config.AppConfig.FirebaseCredPath))
	if err != nil {
		logger.Log.Warn("firebase init failed, push notifications disabled", zap.Error(err))
		return ns
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		logger.Log.Warn("firebase messaging init failed, push notifications disabled", zap.Error(err))
		return ns
	}
	ns.fcm = client
	return ns
}

func (ns *NotificationService) sendPush(ctx context.Context, fcmToken, title, body string, data map[string]string) {
	if ns.fcm == nil || fcmToken == "" {
		return
	}

	msg := &messaging.Message{
		Token: fcmToken,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
	}

	if _, err := ns.fcm.Send(ctx, msg); err != nil {
		logger.Log.Warn("push notification failed", zap.Error(err))
		return
	}
	logger.Log.Debug("push notification sent", zap.String("title", title))
}

func (ns *NotificationService) sendEmail(toEmail, toName, subject, htmlBody string) {
	if ns.mail == nil || toEmail == "" {
		return
	}

	from := mail.NewEmail(config.AppConfig.AppName, config.AppConfig.SendGridFrom)
	to := mail.NewEmail(toName, toEmail)
	message := mail.NewSingleEmail(from, subject, to, "", htmlBody)

	resp, err := ns.mail.Send(message)
	if err != nil {
		logger.Log.Warn("email send failed", zap.String("to", toEmail), zap.Error(err))
		return
	}
	if resp.StatusCode >= 300 {
		logger.Log.Warn("sendgrid rejected email", zap.Int("status", resp.StatusCode))
		return
	}
	logger.Log.Debug("email sent", zap.String("to", toEmail))
}

// ============================================================
// NOTIFICATION EVENTS
// ============================================================

// NotifyExpenseAdded mails and pushes to every split participant except the
// payer. Amounts shown are in the group's base currency.
func (ns *NotificationService) NotifyExpenseAdded(ctx context.Context, expense models.Expense, splits []models.ExpenseSplit, payer models.User, participants []models.User, group models.Group) {
	byID := make(map[string]models.User, len(participants))
	for _, u := range participants {
		byID[u.ID.String()] = u
	}

	for _, split := range splits {
		if split.UserID == expense.PaidBy {
			continue
		}
		user, ok := byID[split.UserID.String()]
		if !ok {
			continue
		}

		owed := engine.FromMinor(split.OwedAmount)
		title := fmt.Sprintf("%s added an expense", payer.Name)
		body := fmt.Sprintf("You owe %s %s for \"%s\" in %s",
			engine.BaseCurrency, owed, expense.Description, group.Name)

		ns.sendPush(ctx, user.FCMToken, title, body, map[string]string{
			"type":       "expense_added",
			"expense_id": expense.ID.String(),
			"group_id":   expense.GroupID.String(),
		})

		htmlBody := buildExpenseEmailHTML(payer.Name, user.Name, expense.Description,
			engine.FromMinor(expense.BaseAmount), owed, string(engine.BaseCurrency), group.Name)
		ns.sendEmail(user.Email, user.Name,
			fmt.Sprintf("%s added \"%s\" in %s", payer.Name, expense.Description, group.Name), htmlBody)
	}
}

// NotifySettlement tells the payee a payment was recorded.
func (ns *NotificationService) NotifySettlement(ctx context.Context, settlement models.Settlement, payer, payee models.User, group models.Group) {
	amount := engine.FromMinor(settlement.BaseAmount)
	title := fmt.Sprintf("%s paid you", payer.Name)
	body := fmt.Sprintf("%s paid you %s %s in %s", payer.Name, engine.BaseCurrency, amount, group.Name)

	ns.sendPush(ctx, payee.FCMToken, title, body, map[string]string{
		"type":     "settlement",
		"group_id": settlement.GroupID.String(),
	})

	htmlBody := buildSettlementEmailHTML(payer.Name, payee.Name, amount, group.Name)
	ns.sendEmail(payee.Email, payee.Name,
		fmt.Sprintf("%s settled up with you in %s", payer.Name, group.Name), htmlBody)
}

// NotifyMemberAdded welcomes a newly added member.
func (ns *NotificationService) NotifyMemberAdded(ctx context.Context, group models.Group, adder, newMember models.User) {
	title := fmt.Sprintf("You were added to \"%s\"", group.Name)
	body := fmt.Sprintf("%s added you to the group \"%s\"", adder.Name, group.Name)

	ns.sendPush(ctx, newMember.FCMToken, title, body, map[string]string{
		"type":     "member_added",
		"group_id": group.ID.String(),
	})

	htmlBody := buildMemberAddedEmailHTML(adder.Name, newMember.Name, group.Name)
	ns.sendEmail(newMember.Email, newMember.Name, title, htmlBody)
}

// NotifyInvitation emails a non-registered invitee.
func (ns *NotificationService) NotifyInvitation(email, inviterName, groupName string) {
	subject := fmt.Sprintf("%s invited you to join \"%s\" on %s", inviterName, groupName, config.AppConfig.AppName)
	htmlBody := buildInvitationEmailHTML(inviterName, groupName)
	ns.sendEmail(email, "", subject, htmlBody)
}

// ============================================================
// EMAIL TEMPLATES
// ============================================================

func buildExpenseEmailHTML(payerName, userName, description string, totalAmount, owedAmount decimal.Decimal, currency, groupName string) string {
	tmpl := `
<!DOCTYPE html>
<html>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px; background-color: #f5f5f5;">
	<div style="background: white; border-radius: 12px; padding: 32px; box-shadow: 0 2px 8px rgba(0,0,0,0.1);">
		<h2 style="color: #2563eb; margin-top: 0;">New Expense Added</h2>
		<p>Hi <strong>{{.UserName}}</strong>,</p>
		<p><strong>{{.PayerName}}</strong> added a new expense in <strong>{{.GroupName}}</strong>:</p>
		<div style="background: #f8f9fa; border-radius: 8px; padding: 16px; margin: 16px 0;">
			<p style="margin: 4px 0; font-size: 18px;"><strong>{{.Description}}</strong></p>
			<p style="margin: 4px 0; color: #666;">Total: {{.Currency}} {{.TotalAmount}}</p>
			<p style="margin: 4px 0; color: #e53e3e; font-size: 18px;"><strong>Your share: {{.Currency}} {{.OwedAmount}}</strong></p>
		</div>
		<p style="color: #999; font-size: 12px; margin-top: 24px;">— {{.AppName}}</p>
	</div>
</body>
</html>`

	t, _ := template.New("expense").Parse(tmpl)
	var buf bytes.Buffer
	t.Execute(&buf, map[string]interface{}{
		"PayerName":   payerName,
		"UserName":    userName,
		"Description": description,
		"TotalAmount": totalAmount.StringFixed(2),
		"OwedAmount":  owedAmount.StringFixed(2),
		"Currency":    currency,
		"GroupName":   groupName,
		"AppName":     config.AppConfig.AppName,
	})
	return buf.String()
}

func buildSettlementEmailHTML(payerName, payeeName string, amount decimal.Decimal, groupName string) string {
	return fmt.Sprintf(`
<!DOCTYPE html>
<html>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px; background-color: #f5f5f5;">
	<div style="background: white; border-radius: 12px; padding: 32px; box-shadow: 0 2px 8px rgba(0,0,0,0.1);">
		<h2 style="color: #2563eb; margin-top: 0;">Payment Recorded</h2>
		<p>Hi <strong>%s</strong>,</p>
		<p><strong>%s</strong> recorded a payment of <strong>%s %s</strong> to you in <strong>%s</strong>.</p>
		<p>Check the app to see your updated balances.</p>
		<p style="color: #999; font-size: 12px; margin-top: 24px;">— %s</p>
	</div>
</body>
</html>`, payeeName, payerName, engine.BaseCurrency, amount.StringFixed(2), groupName, config.AppConfig.AppName)
}

func buildMemberAddedEmailHTML(adderName, memberName, groupName string) string {
	return fmt.Sprintf(`
<!DOCTYPE html>
<html>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px; background-color: #f5f5f5;">
	<div style="background: white; border-radius: 12px; padding: 32px; box-shadow: 0 2px 8px rgba(0,0,0,0.1);">
		<h2 style="color: #2563eb; margin-top: 0;">You've been added to a group</h2>
		<p>Hi <strong>%s</strong>,</p>
		<p><strong>%s</strong> added you to the group <strong>"%s"</strong>.</p>
		<p>Open the app to start splitting expenses with your group.</p>
		<p style="color: #999; font-size: 12px; margin-top: 24px;">— %s</p>
	</div>
</body>
</html>`, memberName, adderName, groupName, config.AppConfig.AppName)
}

func buildInvitationEmailHTML(inviterName, groupName string) string {
	return fmt.Sprintf(`
<!DOCTYPE html>
<html>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px; background-color: #f5f5f5;">
	<div style="background: white; border-radius: 12px; padding: 32px; box-shadow: 0 2px 8px rgba(0,0,0,0.1);">
		<h2 style="color: #2563eb; margin-top: 0;">You're invited</h2>
		<p><strong>%s</strong> invited you to join <strong>"%s"</strong> on %s.</p>
		<p>%s makes it easy to split expenses with friends, flatmates, and groups.</p>
		<div style="margin: 24px 0;">
			<a href="%s" style="background: #2563eb; color: white; padding: 12px 32px; border-radius: 8px; text-decoration: none; font-weight: bold;">Join Now</a>
		</div>
		<p style="color: #999; font-size: 12px; margin-top: 24px;">— %s</p>
	</div>
</body>
</html>`, inviterName, groupName, config.AppConfig.AppName, config.AppConfig.AppName, config.AppConfig.AppURL, config.AppConfig.AppName)
}
