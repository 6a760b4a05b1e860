package http

// ErrorResponse is the uniform error envelope.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type PBAPaymentRequest struct {
	Amount            string `json:"amount"`
	Currency          string `json:"currency"`
	AccountNumber     string `json:"account_number"`
	CustomerReference string `json:"customer_reference"`
	OrganisationName  string `json:"organisation_name"`
}

type PaymentOutcomeDTO struct {
	PaymentReference string `json:"payment_reference"`
	GroupReference   string `json:"group_reference"`
	Status           string `json:"status"`
	Amount           string `json:"amount"`
	ErrorCode        string `json:"error_code,omitempty"`
	ErrorMessage     string `json:"error_message,omitempty"`
	CreatedAt        string `json:"created_at"`
}

type PBAPaymentResponse struct {
	Status   string            `json:"status"`
	Replayed bool              `json:"replayed"`
	Data     PaymentOutcomeDTO `json:"data"`
}

type CardPaymentRequest struct {
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
	ReturnURL string `json:"return_url"`
	Language  string `json:"language"`
}

type PaymentDTO struct {
	PaymentReference  string `json:"payment_reference"`
	GroupReference    string `json:"group_reference"`
	Amount            string `json:"amount"`
	Currency          string `json:"currency"`
	Channel           string `json:"channel"`
	Method            string `json:"method"`
	Provider          string `json:"provider"`
	ExternalReference string `json:"external_reference,omitempty"`
	CCDCaseNumber     string `json:"ccd_case_number,omitempty"`
	Status            string `json:"status"`
	ErrorCode         string `json:"error_code,omitempty"`
	ErrorMessage      string `json:"error_message,omitempty"`
	CreatedAt         string `json:"created_at"`
	UpdatedAt         string `json:"updated_at"`
}

type CardPaymentResponse struct {
	Status  string     `json:"status"`
	NextURL string     `json:"next_url"`
	Data    PaymentDTO `json:"data"`
}

type PaymentResponse struct {
	Status string     `json:"status"`
	Data   PaymentDTO `json:"data"`
}

type RefreshPaymentResponse struct {
	Status     string            `json:"status"`
	Data       PaymentOutcomeDTO `json:"data"`
	Apportions []ApportionDTO    `json:"apportions"`
}

type ApportionDTO struct {
	ApportionID     string `json:"apportion_id"`
	PaymentID       string `json:"payment_id"`
	FeeID           string `json:"fee_id"`
	ApportionAmount string `json:"apportion_amount"`
	ApportionType   string `json:"apportion_type"`
	CCDCaseNumber   string `json:"ccd_case_number,omitempty"`
	CreatedAt       string `json:"created_at"`
}

type ApportionListResponse struct {
	Status string         `json:"status"`
	Data   []ApportionDTO `json:"data"`
}
