package payment

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Code is a Daraja result code. The API sends it as a number in callbacks
// and as a string in query responses.
type Code string

func (c *Code) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*c = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*c = Code(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*c = Code(n.String())
	return nil
}

func (c Code) Int() (int, error) {
	return strconv.Atoi(string(c))
}

// CallbackEnvelope is the raw body Daraja posts to CallBackURL.
type CallbackEnvelope struct {
	Body struct {
		StkCallback STKCallback `json:"stkCallback"`
	} `json:"Body"`
}

type STKCallback struct {
	MerchantRequestID string            `json:"MerchantRequestID"`
	CheckoutRequestID string            `json:"CheckoutRequestID"`
	ResultCode        Code              `json:"ResultCode"`
	ResultDesc        string            `json:"ResultDesc"`
	CallbackMetadata  *CallbackMetadata `json:"CallbackMetadata,omitempty"`
}

type CallbackMetadata struct {
	Item []CallbackItem `json:"Item"`
}

type CallbackItem struct {
	Name  string          `json:"Name"`
	Value json.RawMessage `json:"Value,omitempty"`
}

// STKResult is either STKSuccess or STKFailure.
type STKResult interface {
	RequestID() string
	stkResult()
}

type STKSuccess struct {
	MerchantRequestID string
	CheckoutRequestID string
	Amount            float64
	Receipt           string
	TransactionDate   time.Time
	PhoneNumber       string
}

type STKFailure struct {
	MerchantRequestID string
	CheckoutRequestID string
	Code              int
	Description       string
}

func (s STKSuccess) RequestID() string { return s.MerchantRequestID }
func (STKSuccess) stkResult()          {}

func (f STKFailure) RequestID() string { return f.MerchantRequestID }
func (STKFailure) stkResult()          {}

// ParseCallback validates a callback body once and returns a typed result.
// A success result must carry Amount, MpesaReceiptNumber, TransactionDate and
// PhoneNumber.
func ParseCallback(body []byte) (STKResult, error) {
	var env CallbackEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCallback, err)
	}
	cb := env.Body.StkCallback
	if cb.MerchantRequestID == "" {
		return nil, fmt.Errorf("%w: missing MerchantRequestID", ErrInvalidCallback)
	}
	code, err := cb.ResultCode.Int()
	if err != nil {
		return nil, fmt.Errorf("%w: bad ResultCode %q", ErrInvalidCallback, cb.ResultCode)
	}
	if code != 0 {
		return STKFailure{
			MerchantRequestID: cb.MerchantRequestID,
			CheckoutRequestID: cb.CheckoutRequestID,
			Code:              code,
			Description:       cb.ResultDesc,
		}, nil
	}

	items := map[string]string{}
	if cb.CallbackMetadata != nil {
		for _, it := range cb.CallbackMetadata.Item {
			items[it.Name] = rawString(it.Value)
		}
	}
	for _, name := range []string{"Amount", "MpesaReceiptNumber", "TransactionDate", "PhoneNumber"} {
		if items[name] == "" {
			return nil, fmt.Errorf("%w: missing %s", ErrInvalidCallback, name)
		}
	}
	amount, err := strconv.ParseFloat(items["Amount"], 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad Amount %q", ErrInvalidCallback, items["Amount"])
	}
	txDate, err := time.ParseInLocation(timestampLayout, items["TransactionDate"], eat)
	if err != nil {
		return nil, fmt.Errorf("%w: bad TransactionDate %q", ErrInvalidCallback, items["TransactionDate"])
	}
	return STKSuccess{
		MerchantRequestID: cb.MerchantRequestID,
		CheckoutRequestID: cb.CheckoutRequestID,
		Amount:            amount,
		Receipt:           items["MpesaReceiptNumber"],
		TransactionDate:   txDate,
		PhoneNumber:       items["PhoneNumber"],
	}, nil
}

// rawString returns a JSON scalar as text: strings unquoted, numbers verbatim.
func rawString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return s
	}
	return string(raw)
}
