package services

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"gorm.io/gorm"

	"github.com/example/soleshop/internal/models"
)

// NewebPay notify errors.
var (
	ErrBadCheckValue = errors.New("newebpay trade sha mismatch")
	ErrBadTradeInfo  = errors.New("newebpay trade info malformed")
)

// NewebPayService verifies gateway notifications and records the
// reported payment status on the order. The checkout/charge flow itself
// lives with the gateway; this service only reads what it reports.
type NewebPayService struct {
	db      *gorm.DB
	hashKey string
	hashIV  string
}

// NewNewebPayService constructs NewebPayService.
func NewNewebPayService(db *gorm.DB, hashKey, hashIV string) *NewebPayService {
	return &NewebPayService{db: db, hashKey: hashKey, hashIV: hashIV}
}

// TradeResult is the decoded payment outcome for one order.
type TradeResult struct {
	Status          string
	MerchantOrderNo string
	TradeNo         string
	Amount          string
}

// HandleNotify validates the TradeSha check value, decodes TradeInfo and
// stores the reported payment status on the order.
func (s *NewebPayService) HandleNotify(ctx context.Context, tradeInfo, tradeSha string) (*TradeResult, error) {
	if !s.checkValueValid(tradeInfo, tradeSha) {
		return nil, ErrBadCheckValue
	}

	result, err := s.decodeTradeInfo(tradeInfo)
	if err != nil {
		return nil, err
	}

	status := models.PaymentStatusFailed
	if result.Status == "SUCCESS" {
		status = models.PaymentStatusPaid
	}

	res := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("order_number = ?", result.MerchantOrderNo).
		Updates(map[string]any{
			"payment_status":   status,
			"gateway_trade_no": result.TradeNo,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return result, nil
}

// checkValueValid recomputes SHA256(HashKey=..&TradeInfo..&HashIV=..)
// per the NewebPay spec and compares it with the posted TradeSha.
func (s *NewebPayService) checkValueValid(tradeInfo, tradeSha string) bool {
	plain := fmt.Sprintf("HashKey=%s&%s&HashIV=%s", s.hashKey, tradeInfo, s.hashIV)
	sum := sha256.Sum256([]byte(plain))
	return strings.EqualFold(hex.EncodeToString(sum[:]), tradeSha)
}

// decodeTradeInfo AES-256-CBC decrypts the hex TradeInfo blob and parses
// the query-string payload inside.
func (s *NewebPayService) decodeTradeInfo(tradeInfo string) (*TradeResult, error) {
	raw, err := hex.DecodeString(tradeInfo)
	if err != nil {
		return nil, ErrBadTradeInfo
	}

	block, err := aes.NewCipher([]byte(s.hashKey))
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 || len(raw)%aes.BlockSize != 0 {
		return nil, ErrBadTradeInfo
	}

	plain := make([]byte, len(raw))
	cipher.NewCBCDecrypter(block, []byte(s.hashIV)).CryptBlocks(plain, raw)
	plain = stripPKCS7(plain)

	values, err := url.ParseQuery(string(plain))
	if err != nil {
		return nil, ErrBadTradeInfo
	}
	if values.Get("MerchantOrderNo") == "" {
		return nil, ErrBadTradeInfo
	}

	return &TradeResult{
		Status:          values.Get("Status"),
		MerchantOrderNo: values.Get("MerchantOrderNo"),
		TradeNo:         values.Get("TradeNo"),
		Amount:          values.Get("Amt"),
	}, nil
}

func stripPKCS7(data []byte) []byte {
	if len(data) == 0 {
		return data
	}
	pad := int(data[len(data)-1])
	if pad == 0 || pad > aes.BlockSize || pad > len(data) {
		return data
	}
	return data[:len(data)-pad]
}
