package services

import (
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/example/soleshop/internal/models"
)

const lineNotifyEndpoint = "https://notify-api.line.me/api/notify"

// LINEService pushes ops notifications to the store's LINE Notify
// channel. Everything is best-effort: failures are logged by callers and
// never block a state change.
type LINEService struct {
	token string
}

// NewLINEService creates a LINEService. An empty token disables sending.
func NewLINEService(token string) *LINEService {
	return &LINEService{token: token}
}

// Send posts one message to the configured channel.
func (s *LINEService) Send(text string) error {
	if s.token == "" {
		log.Println("[LINE] notify token not configured")
		return nil
	}

	form := url.Values{"message": {text}}
	req, err := http.NewRequest(http.MethodPost, lineNotifyEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Printf("[LINE] failed to send message: %v", err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("[LINE] unexpected status: %d", resp.StatusCode)
		return fmt.Errorf("line notify returned status %d", resp.StatusCode)
	}
	return nil
}

// FormatPrice formats an amount with thousand separators and currency.
func FormatPrice(amount float64, currency string) string {
	if currency == "" {
		currency = "NT$"
	}
	intAmount := int64(amount)
	str := fmt.Sprintf("%d", intAmount)

	var result strings.Builder
	length := len(str)
	for i, digit := range str {
		if i > 0 && (length-i)%3 == 0 {
			result.WriteString(",")
		}
		result.WriteRune(digit)
	}
	return currency + result.String()
}

// NotifyReturnCreated announces a new return request.
func (s *LINEService) NotifyReturnCreated(req models.ReturnRequest) error {
	var items strings.Builder
	for i, item := range req.Items {
		items.WriteString(fmt.Sprintf("%d. %s (%s) x%d = %s\n",
			i+1, item.ProductName, item.Size, item.Quantity, FormatPrice(item.Subtotal, "")))
	}

	message := fmt.Sprintf(`🔁 新退貨申請
編號: %s
類型: %s
原因: %s
商品:
%s退款金額: %s`,
		req.ReturnNumber,
		req.Type,
		req.Reason,
		items.String(),
		FormatPrice(req.RefundAmount, ""),
	)
	return s.Send(strings.TrimSpace(message))
}

// NotifyReturnTransition announces an admin status change on a return.
func (s *LINEService) NotifyReturnTransition(req models.ReturnRequest) error {
	message := fmt.Sprintf(`🔁 退貨狀態更新
編號: %s
狀態: %s
退款狀態: %s
退款金額: %s`,
		req.ReturnNumber,
		req.Status,
		req.RefundStatus,
		FormatPrice(req.RefundAmount, ""),
	)
	return s.Send(strings.TrimSpace(message))
}

// NotifyCreditIssued announces a freshly minted store credit.
func (s *LINEService) NotifyCreditIssued(credit models.StoreCredit, orderNumber string) error {
	message := fmt.Sprintf(`💰 購物金發放
來源: %s
訂單: %s
金額: %s
效期至: %s`,
		credit.Source,
		orderNumber,
		FormatPrice(credit.Amount, ""),
		credit.ValidUntil.Format("2006-01-02"),
	)
	return s.Send(strings.TrimSpace(message))
}
