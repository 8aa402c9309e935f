package receipt

import "time"

// Receipt represents a stored purchase receipt with optional warranty
// metadata.
//
// ReceiptDate and WarrantyExpDate are YYYY-MM-DD strings rather than
// time.Time: values extracted from OCR text cross the boundary without
// calendar validation, so out-of-range components must survive storage
// unchanged.
type Receipt struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	StoreName       string    `json:"store_name"`
	Amount          int       `json:"amount"` // Amount in cents
	ReceiptDate     string    `json:"receipt_date"`
	UploadDate      time.Time `json:"upload_date"`
	Category        string    `json:"category,omitempty"`
	WarrantyItem    string    `json:"warranty_item,omitempty"`
	WarrantyExpDate string    `json:"warranty_exp_date,omitempty"`
	Filename        string    `json:"filename,omitempty"`
	ContentType     string    `json:"content_type,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
