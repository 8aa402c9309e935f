package receipt

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rwm-labs/receipt-manager/internal/pipeline"
)

// Runner is the extraction pipeline as seen by the service. The concrete
// implementation is *pipeline.Pipeline; tests substitute a stub.
type Runner interface {
	Run(ctx context.Context, data []byte, contentType string) (pipeline.Result, error)
}

// IDGenerator generates unique IDs for receipts
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (g *uuidGenerator) Generate() string {
	return uuid.NewString()
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// ScanResult carries what the pipeline recovered from an uploaded photo. The
// caller shows it to the user for confirmation; nothing is persisted until
// the user submits the create request.
type ScanResult struct {
	OCRText string
	Amount  string // "45.00" or empty when absent
	Date    string // "07/04/2024" or empty when absent
	Status  pipeline.Status
}

// ReceiptInput is a manual-entry or post-scan confirmation payload. Dates
// arrive in MM/DD/YYYY form, Amount as a decimal string.
type ReceiptInput struct {
	StoreName       string
	Amount          string
	ReceiptDate     string
	Category        string
	WarrantyItem    string
	WarrantyExpDate string
	Filename        string
	FileData        []byte
	ContentType     string
}

// Service handles receipt operations.
type Service struct {
	db          DB
	runner      Runner
	storage     Storage
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a Service with default ID generator and time source.
func NewService(db DB, runner Runner, storage Storage) *Service {
	return NewServiceWithDeps(db, runner, storage, &uuidGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a Service with custom dependencies for testing.
func NewServiceWithDeps(db DB, runner Runner, storage Storage, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		runner:      runner,
		storage:     storage,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// ScanReceipt runs the extraction pipeline over an uploaded photo.
//
// Pipeline failures (undecodable upload, OCR engine errors) surface as
// errors; absent fields are not errors, the user confirms them manually.
func (s *Service) ScanReceipt(ctx context.Context, filename string, data []byte, contentType string) (*ScanResult, error) {
	result, err := s.runner.Run(ctx, data, contentType)
	if err != nil {
		slog.Error("Failed to scan receipt",
			"filename", filename,
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		return nil, err
	}

	return &ScanResult{
		OCRText: result.OCRText,
		Amount:  result.Fields.Amount,
		Date:    result.Fields.Date,
		Status:  result.Status,
	}, nil
}

// CreateReceipt persists a new receipt from manual entry or a confirmed
// scan. When file data is attached the original is kept in storage.
func (s *Service) CreateReceipt(userID string, in ReceiptInput) (*Receipt, error) {
	if userID == "" {
		return nil, fmt.Errorf("user is required")
	}
	if strings.TrimSpace(in.StoreName) == "" {
		return nil, fmt.Errorf("store name is required")
	}

	amountCents, err := parseAmount(in.Amount)
	if err != nil {
		return nil, err
	}

	receiptDate, err := ToStorageDate(in.ReceiptDate)
	if err != nil {
		return nil, err
	}

	warrantyExp := ""
	if in.WarrantyExpDate != "" {
		warrantyExp, err = ToStorageDate(in.WarrantyExpDate)
		if err != nil {
			return nil, fmt.Errorf("warranty expiration: %w", err)
		}
	}

	id := s.idGenerator.Generate()
	now := s.timeSource.Now()

	savedPath := ""
	if len(in.FileData) > 0 {
		savedPath, err = s.storage.Save(fmt.Sprintf("%s_%s", id, sanitizeFilename(in.Filename)), in.FileData)
		if err != nil {
			return nil, fmt.Errorf("saving file: %w", err)
		}
	}

	receipt := &Receipt{
		ID:              id,
		UserID:          userID,
		StoreName:       strings.TrimSpace(in.StoreName),
		Amount:          amountCents,
		ReceiptDate:     receiptDate,
		UploadDate:      now,
		Category:        strings.TrimSpace(in.Category),
		WarrantyItem:    strings.TrimSpace(in.WarrantyItem),
		WarrantyExpDate: warrantyExp,
		Filename:        savedPath,
		ContentType:     in.ContentType,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.db.SaveReceipt(receipt); err != nil {
		if savedPath != "" {
			s.storage.Delete(savedPath)
		}
		return nil, fmt.Errorf("saving receipt to database: %w", err)
	}

	return receipt, nil
}

// UpdateReceipt applies new field values to an existing receipt. The stored
// original file, if any, is untouched.
func (s *Service) UpdateReceipt(userID, id string, in ReceiptInput) (*Receipt, error) {
	receipt, err := s.getOwned(userID, id)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(in.StoreName) == "" {
		return nil, fmt.Errorf("store name is required")
	}

	amountCents, err := parseAmount(in.Amount)
	if err != nil {
		return nil, err
	}

	receiptDate, err := ToStorageDate(in.ReceiptDate)
	if err != nil {
		return nil, err
	}

	warrantyExp := ""
	if in.WarrantyExpDate != "" {
		warrantyExp, err = ToStorageDate(in.WarrantyExpDate)
		if err != nil {
			return nil, fmt.Errorf("warranty expiration: %w", err)
		}
	}

	receipt.StoreName = strings.TrimSpace(in.StoreName)
	receipt.Amount = amountCents
	receipt.ReceiptDate = receiptDate
	receipt.Category = strings.TrimSpace(in.Category)
	receipt.WarrantyItem = strings.TrimSpace(in.WarrantyItem)
	receipt.WarrantyExpDate = warrantyExp
	receipt.UpdatedAt = s.timeSource.Now()

	if err := s.db.SaveReceipt(receipt); err != nil {
		return nil, fmt.Errorf("updating receipt: %w", err)
	}
	return receipt, nil
}

// GetReceipt retrieves one of the user's receipts by ID.
func (s *Service) GetReceipt(userID, id string) (*Receipt, error) {
	return s.getOwned(userID, id)
}

// ListReceipts returns all of the user's receipts.
func (s *Service) ListReceipts(userID string) ([]*Receipt, error) {
	receipts, err := s.db.ListReceipts(userID)
	if err != nil {
		return nil, fmt.Errorf("listing receipts: %w", err)
	}
	return receipts, nil
}

// DeleteReceipt removes a receipt and its stored file.
func (s *Service) DeleteReceipt(userID, id string) error {
	receipt, err := s.getOwned(userID, id)
	if err != nil {
		return err
	}

	if receipt.Filename != "" {
		if err := s.storage.Delete(receipt.Filename); err != nil {
			slog.Warn("Failed to delete file", "filename", receipt.Filename, "error", err)
		}
	}

	if err := s.db.DeleteReceipt(id); err != nil {
		return fmt.Errorf("deleting receipt from database: %w", err)
	}
	return nil
}

// GetReceiptFile returns the original uploaded file for a receipt.
func (s *Service) GetReceiptFile(userID, id string) ([]byte, string, error) {
	receipt, err := s.getOwned(userID, id)
	if err != nil {
		return nil, "", err
	}
	if receipt.Filename == "" {
		return nil, "", fmt.Errorf("receipt %s has no stored file", id)
	}

	data, err := s.storage.Get(receipt.Filename)
	if err != nil {
		return nil, "", fmt.Errorf("getting receipt file: %w", err)
	}
	return data, receipt.ContentType, nil
}

// ExpiringWarranties returns the user's receipts whose warranty expires
// between now and now+within. Receipts without a parseable warranty date are
// skipped.
func (s *Service) ExpiringWarranties(userID string, within time.Duration) ([]*Receipt, error) {
	receipts, err := s.db.ListReceipts(userID)
	if err != nil {
		return nil, fmt.Errorf("listing receipts: %w", err)
	}

	now := s.timeSource.Now()
	deadline := now.Add(within)

	expiring := make([]*Receipt, 0)
	for _, r := range receipts {
		if r.WarrantyExpDate == "" {
			continue
		}
		exp, err := time.Parse("2006-01-02", r.WarrantyExpDate)
		if err != nil {
			continue
		}
		if exp.Before(now.Truncate(24*time.Hour)) || exp.After(deadline) {
			continue
		}
		expiring = append(expiring, r)
	}
	return expiring, nil
}

func (s *Service) getOwned(userID, id string) (*Receipt, error) {
	receipt, err := s.db.GetReceipt(id)
	if err != nil {
		return nil, fmt.Errorf("getting receipt: %w", err)
	}
	if receipt.UserID != userID {
		return nil, fmt.Errorf("receipt not found: %s", id)
	}
	return receipt, nil
}

// parseAmount converts a decimal amount string to cents.
func parseAmount(s string) (int, error) {
	d, err := decimal.NewFromString(strings.TrimPrefix(strings.TrimSpace(s), "$"))
	if err != nil {
		return 0, fmt.Errorf("amount %q is not a number", s)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("amount must not be negative")
	}
	return int(d.Mul(decimal.New(100, 0)).IntPart()), nil
}

// AmountString formats cents as a two-decimal string.
func AmountString(cents int) string {
	return decimal.New(int64(cents), -2).StringFixed(2)
}

var (
	filenameJunk   = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	filenameSpaces = regexp.MustCompile(`\s+`)
)

// sanitizeFilename cleans up phone-generated filenames before they hit disk.
func sanitizeFilename(filename string) string {
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)

	base = filenameJunk.ReplaceAllString(base, "")
	base = filenameSpaces.ReplaceAllString(base, " ")
	base = strings.TrimSpace(base)

	const maxLen = 50
	if len(base) > maxLen {
		base = base[:maxLen]
	}
	if base == "" {
		base = "receipt"
	}
	return base + ext
}
