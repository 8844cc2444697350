package queue

const (
	TypePayslipIngest = "payslip:ingest"
	TypeNotifyDeliver = "notify:deliver"
)

// PayslipIngestPayload carries one OCR result into the matching stage.
type PayslipIngestPayload struct {
	ItemID  string `json:"item_id"`
	BatchID string `json:"batch_id"`
}

// Notification event names delivered to the employee-notification webhook.
const (
	EventPublished = "payslip.published"
	EventRevoked   = "payslip.revoked"
)

type NotifyDeliverPayload struct {
	Event      string `json:"event"`
	EmployeeID string `json:"employee_id"`
	ItemID     string `json:"item_id"`
}
