package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type FeeRequest struct {
	Code             string `json:"code"`
	Version          string `json:"version"`
	Volume           int    `json:"volume,omitempty"`
	FeeAmount        string `json:"fee_amount"`
	CalculatedAmount string `json:"calculated_amount,omitempty"`
	CCDCaseNumber    string `json:"ccd_case_number,omitempty"`
	CaseReference    string `json:"case_reference,omitempty"`
}

type CreateGroupRequest struct {
	CCDCaseNumber string       `json:"ccd_case_number,omitempty"`
	CaseReference string       `json:"case_reference,omitempty"`
	CaseType      string       `json:"case_type,omitempty"`
	CallbackURL   string       `json:"callback_url,omitempty"`
	Fees          []FeeRequest `json:"fees"`
}

type FeeDTO struct {
	FeeID            string `json:"fee_id"`
	Code             string `json:"code"`
	Version          string `json:"version"`
	Volume           int    `json:"volume"`
	CalculatedAmount string `json:"calculated_amount"`
	NetAmount        string `json:"net_amount"`
	AmountDue        string `json:"amount_due"`
	AllocatedAmount  string `json:"allocated_amount"`
	CCDCaseNumber    string `json:"ccd_case_number,omitempty"`
	CaseReference    string `json:"case_reference,omitempty"`
}

type GroupDTO struct {
	GroupReference string   `json:"group_reference"`
	CCDCaseNumber  string   `json:"ccd_case_number,omitempty"`
	CaseReference  string   `json:"case_reference,omitempty"`
	ServiceCode    string   `json:"service_code,omitempty"`
	CallbackURL    string   `json:"callback_url,omitempty"`
	Fees           []FeeDTO `json:"fees"`
}

type GroupResponse struct {
	Status string   `json:"status"`
	Data   GroupDTO `json:"data"`
}

type FeeResponse struct {
	Status string `json:"status"`
	Data   FeeDTO `json:"data"`
}

type CreateRemissionRequest struct {
	FeeID           string `json:"fee_id,omitempty"`
	FeeCode         string `json:"fee_code,omitempty"`
	HwfReference    string `json:"hwf_reference,omitempty"`
	HwfAmount       string `json:"hwf_amount"`
	BeneficiaryName string `json:"beneficiary_name,omitempty"`
	Retrospective   bool   `json:"retrospective,omitempty"`
}

type RemissionDTO struct {
	RemissionReference string `json:"remission_reference"`
	GroupReference     string `json:"group_reference"`
	FeeID              string `json:"fee_id"`
	FeeCode            string `json:"fee_code"`
	HwfReference       string `json:"hwf_reference,omitempty"`
	HwfAmount          string `json:"hwf_amount"`
	Retrospective      bool   `json:"retrospective"`
}

type RemissionResponse struct {
	Status string       `json:"status"`
	Data   RemissionDTO `json:"data"`
	Fee    FeeDTO       `json:"fee"`
}
