package commerce

import (
	"bytes"
	"encoding/json"
	"time"
)

// Resource carries the fields every API object shares.
type Resource struct {
	ID           string     `json:"id"`
	Resource     string     `json:"resource,omitempty"`
	ResourcePath string     `json:"resource_path,omitempty"`
	CreatedAt    *time.Time `json:"created_at,omitempty"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
}

// ResourceRef points at another object, e.g. the user of a notification.
type ResourceRef struct {
	ID           string `json:"id"`
	Resource     string `json:"resource,omitempty"`
	ResourcePath string `json:"resource_path,omitempty"`
}

type Money struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

// CurrencyRef decodes both the bare currency code and the expanded
// {"code": ..., "name": ...} object.
type CurrencyRef struct {
	Code string `json:"code"`
	Name string `json:"name,omitempty"`
}

func (c *CurrencyRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*c = CurrencyRef{}
		return nil
	}
	if data[0] == '"' {
		var code string
		if err := json.Unmarshal(data, &code); err != nil {
			return err
		}
		*c = CurrencyRef{Code: code}
		return nil
	}
	type plain CurrencyRef
	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*c = CurrencyRef(decoded)
	return nil
}

type Account struct {
	Resource
	Name          string      `json:"name"`
	Primary       bool        `json:"primary"`
	Type          string      `json:"type"`
	Currency      CurrencyRef `json:"currency"`
	Balance       Money       `json:"balance"`
	NativeBalance *Money      `json:"native_balance,omitempty"`
}

type CreateAccountRequest struct {
	Name string `json:"name"`
}

type Country struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type User struct {
	Resource
	Name            string   `json:"name"`
	Username        string   `json:"username,omitempty"`
	ProfileLocation string   `json:"profile_location,omitempty"`
	ProfileBio      string   `json:"profile_bio,omitempty"`
	ProfileURL      string   `json:"profile_url,omitempty"`
	AvatarURL       string   `json:"avatar_url,omitempty"`
	TimeZone        string   `json:"time_zone,omitempty"`
	NativeCurrency  string   `json:"native_currency,omitempty"`
	BitcoinUnit     string   `json:"bitcoin_unit,omitempty"`
	Country         *Country `json:"country,omitempty"`
	Email           string   `json:"email,omitempty"`
}

type Notification struct {
	Resource
	Type             string          `json:"type"`
	Data             json.RawMessage `json:"data,omitempty"`
	AdditionalData   json.RawMessage `json:"additional_data,omitempty"`
	User             *ResourceRef    `json:"user,omitempty"`
	Account          *ResourceRef    `json:"account,omitempty"`
	DeliveryAttempts int             `json:"delivery_attempts"`
	DeliveredAt      *time.Time      `json:"delivered_at,omitempty"`
}

type PaymentMethod struct {
	Resource
	Type          string `json:"type"`
	Name          string `json:"name"`
	Currency      string `json:"currency"`
	PrimaryBuy    bool   `json:"primary_buy"`
	PrimarySell   bool   `json:"primary_sell"`
	AllowBuy      bool   `json:"allow_buy"`
	AllowSell     bool   `json:"allow_sell"`
	AllowDeposit  bool   `json:"allow_deposit"`
	AllowWithdraw bool   `json:"allow_withdraw"`
	InstantBuy    bool   `json:"instant_buy"`
	InstantSell   bool   `json:"instant_sell"`
}

type Order struct {
	Resource
	Code           string            `json:"code"`
	Status         string            `json:"status"`
	Type           string            `json:"type"`
	Name           string            `json:"name"`
	Description    string            `json:"description,omitempty"`
	Amount         Money             `json:"amount"`
	ReceiptURL     string            `json:"receipt_url,omitempty"`
	BitcoinAddress string            `json:"bitcoin_address,omitempty"`
	BitcoinAmount  *Money            `json:"bitcoin_amount,omitempty"`
	BitcoinURI     string            `json:"bitcoin_uri,omitempty"`
	PaidAt         *time.Time        `json:"paid_at,omitempty"`
	MispaidAt      *time.Time        `json:"mispaid_at,omitempty"`
	ExpiresAt      *time.Time        `json:"expires_at,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	CustomerInfo   json.RawMessage   `json:"customer_info,omitempty"`
}

type CreateOrderRequest struct {
	Amount      string            `json:"amount"`
	Currency    string            `json:"currency"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type Checkout struct {
	Resource
	EmbedCode              string            `json:"embed_code"`
	Type                   string            `json:"type"`
	Style                  string            `json:"style,omitempty"`
	Name                   string            `json:"name"`
	Description            string            `json:"description,omitempty"`
	Amount                 Money             `json:"amount"`
	CustomerDefinedAmount  bool              `json:"customer_defined_amount"`
	AmountPresets          []string          `json:"amount_presets,omitempty"`
	SuccessURL             string            `json:"success_url,omitempty"`
	CancelURL              string            `json:"cancel_url,omitempty"`
	NotificationsURL       string            `json:"notifications_url,omitempty"`
	AutoRedirect           bool              `json:"auto_redirect"`
	CollectShippingAddress bool              `json:"collect_shipping_address"`
	CollectEmail           bool              `json:"collect_email"`
	CollectPhoneNumber     bool              `json:"collect_phone_number"`
	CollectCountry         bool              `json:"collect_country"`
	Metadata               map[string]string `json:"metadata,omitempty"`
}

type CreateCheckoutRequest struct {
	Amount                 string            `json:"amount"`
	Currency               string            `json:"currency"`
	Name                   string            `json:"name"`
	Description            string            `json:"description,omitempty"`
	Type                   string            `json:"type,omitempty"`
	Style                  string            `json:"style,omitempty"`
	CustomerDefinedAmount  bool              `json:"customer_defined_amount,omitempty"`
	AmountPresets          []string          `json:"amount_presets,omitempty"`
	SuccessURL             string            `json:"success_url,omitempty"`
	CancelURL              string            `json:"cancel_url,omitempty"`
	NotificationsURL       string            `json:"notifications_url,omitempty"`
	AutoRedirect           bool              `json:"auto_redirect,omitempty"`
	CollectShippingAddress bool              `json:"collect_shipping_address,omitempty"`
	CollectEmail           bool              `json:"collect_email,omitempty"`
	Metadata               map[string]string `json:"metadata,omitempty"`
}

type Address struct {
	Line1      string `json:"line1,omitempty"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
}

type Merchant struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	WebsiteURL   string   `json:"website_url,omitempty"`
	Address      *Address `json:"address,omitempty"`
	AvatarURL    string   `json:"avatar_url,omitempty"`
	LogoURL      string   `json:"logo_url,omitempty"`
	CoverImage   string   `json:"cover_image_url,omitempty"`
	SupportEmail string   `json:"support_email,omitempty"`
}

type Price struct {
	Base     string `json:"base,omitempty"`
	Currency string `json:"currency"`
	Amount   string `json:"amount"`
}

type HistoricPrice struct {
	Price string    `json:"price"`
	Time  time.Time `json:"time"`
}

type HistoricPrices struct {
	Currency string          `json:"currency"`
	Prices   []HistoricPrice `json:"prices"`
}

type Currency struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	MinSize string `json:"min_size"`
}

type ExchangeRates struct {
	Currency string            `json:"currency"`
	Rates    map[string]string `json:"rates"`
}

type ServerTime struct {
	ISO   time.Time `json:"iso"`
	Epoch int64     `json:"epoch"`
}
