package receipt

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/rwm-labs/receipt-manager/internal/pipeline"
)

const maxUploadSize = int64(50 << 20) // high-resolution phone photos

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// corsError writes an error response with CORS headers set
func corsError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	http.Error(w, message, code)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// scanEnvelope is the response of the scan endpoint. merchant is always null
// for now: the extractor recovers amount and date only, and the client
// prompts for the store name.
type scanEnvelope struct {
	Success    bool       `json:"success"`
	OCRText    string     `json:"ocrText"`
	ParsedData parsedData `json:"parsedData"`
	Message    string     `json:"message"`
}

type parsedData struct {
	Merchant *string `json:"merchant"`
	Amount   *string `json:"amount"`
	Date     *string `json:"date"`
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// receiptRequest is the create/update payload. Dates are MM/DD/YYYY, the
// amount is a decimal string.
type receiptRequest struct {
	StoreName       string `json:"store_name"`
	Amount          string `json:"amount"`
	ReceiptDate     string `json:"receipt_date"`
	Category        string `json:"category"`
	WarrantyItem    string `json:"warranty_item"`
	WarrantyExpDate string `json:"warranty_exp_date"`
}

// receiptResponse mirrors Receipt with boundary formatting: amount as a
// two-decimal string and dates back in MM/DD/YYYY form.
type receiptResponse struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	StoreName       string    `json:"store_name"`
	Amount          string    `json:"amount"`
	ReceiptDate     string    `json:"receipt_date"`
	UploadDate      time.Time `json:"upload_date"`
	Category        string    `json:"category,omitempty"`
	WarrantyItem    string    `json:"warranty_item,omitempty"`
	WarrantyExpDate string    `json:"warranty_exp_date,omitempty"`
	HasFile         bool      `json:"has_file"`
}

func toResponse(r *Receipt) receiptResponse {
	return receiptResponse{
		ID:              r.ID,
		UserID:          r.UserID,
		StoreName:       r.StoreName,
		Amount:          AmountString(r.Amount),
		ReceiptDate:     FromStorageDate(r.ReceiptDate),
		UploadDate:      r.UploadDate,
		Category:        r.Category,
		WarrantyItem:    r.WarrantyItem,
		WarrantyExpDate: FromStorageDate(r.WarrantyExpDate),
		HasFile:         r.Filename != "",
	}
}

// readUpload pulls the image out of a multipart form and settles its content
// type, sniffing the bytes when the client's header is missing or generic.
func readUpload(r *http.Request) (filename string, data []byte, contentType string, err error) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		return "", nil, "", fmt.Errorf("parsing form: %w", err)
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		return "", nil, "", fmt.Errorf("no file provided: %w", err)
	}
	defer f.Close()

	if header.Size > maxUploadSize {
		return "", nil, "", fmt.Errorf("file is too large, maximum size is 50MB")
	}

	data, err = io.ReadAll(f)
	if err != nil {
		return "", nil, "", fmt.Errorf("reading file: %w", err)
	}

	contentType = strings.ToLower(strings.TrimSpace(header.Header.Get("Content-Type")))
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = mimetype.Detect(data).String()
	}

	return header.Filename, data, contentType, nil
}

// handleScanReceipt accepts a photographed receipt and returns the extracted
// fields for the client to confirm. Nothing is persisted here.
func (s *Server) handleScanReceipt(w http.ResponseWriter, r *http.Request, userID string) {
	filename, data, contentType, err := readUpload(r)
	if err != nil {
		slog.Error("Error reading scan upload", "error", err)
		writeJSON(w, http.StatusBadRequest, scanEnvelope{
			Success: false,
			Message: err.Error(),
		})
		return
	}

	scan, err := s.service.ScanReceipt(r.Context(), filename, data, contentType)
	if err != nil {
		status := http.StatusBadGateway
		message := "Recognition failed, please retry or enter the details manually"
		var decodeErr *pipeline.DecodeError
		if errors.As(err, &decodeErr) {
			status = http.StatusBadRequest
			message = "The uploaded file could not be read as an image"
		}
		writeJSON(w, status, scanEnvelope{
			Success: false,
			Message: message,
		})
		return
	}

	writeJSON(w, http.StatusOK, scanEnvelope{
		Success: true,
		OCRText: scan.OCRText,
		ParsedData: parsedData{
			Merchant: nil,
			Amount:   optional(scan.Amount),
			Date:     optional(scan.Date),
		},
		Message: scanMessage(scan),
	})
}

// scanMessage tells the user which fields still need manual confirmation.
func scanMessage(scan *ScanResult) string {
	switch {
	case scan.Amount == "" && scan.Date == "":
		return "Could not detect amount or date, please enter them manually"
	case scan.Amount == "":
		return "Could not detect amount, please confirm manually"
	case scan.Date == "":
		return "Could not detect date, please confirm manually"
	default:
		return "Receipt scanned successfully"
	}
}

// handleCreateReceipt persists a receipt. The client may send JSON (manual
// entry) or a multipart form carrying the metadata plus the original photo.
func (s *Server) handleCreateReceipt(w http.ResponseWriter, r *http.Request, userID string) {
	in, err := decodeReceiptInput(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	receipt, err := s.service.CreateReceipt(userID, in)
	if err != nil {
		slog.Error("Error creating receipt", "error", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusCreated, toResponse(receipt))
}

func decodeReceiptInput(r *http.Request) (ReceiptInput, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			return ReceiptInput{}, fmt.Errorf("parsing form: %w", err)
		}
		in := ReceiptInput{
			StoreName:       r.FormValue("store_name"),
			Amount:          r.FormValue("amount"),
			ReceiptDate:     r.FormValue("receipt_date"),
			Category:        r.FormValue("category"),
			WarrantyItem:    r.FormValue("warranty_item"),
			WarrantyExpDate: r.FormValue("warranty_exp_date"),
		}
		if f, header, err := r.FormFile("file"); err == nil {
			defer f.Close()
			data, readErr := io.ReadAll(f)
			if readErr != nil {
				return ReceiptInput{}, fmt.Errorf("reading file: %w", readErr)
			}
			in.Filename = header.Filename
			in.FileData = data
			in.ContentType = header.Header.Get("Content-Type")
			if in.ContentType == "" {
				in.ContentType = mimetype.Detect(data).String()
			}
		}
		return in, nil
	}

	var req receiptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return ReceiptInput{}, fmt.Errorf("invalid request body: %w", err)
	}
	return ReceiptInput{
		StoreName:       req.StoreName,
		Amount:          req.Amount,
		ReceiptDate:     req.ReceiptDate,
		Category:        req.Category,
		WarrantyItem:    req.WarrantyItem,
		WarrantyExpDate: req.WarrantyExpDate,
	}, nil
}

// handleListReceipts returns all of the user's receipts.
func (s *Server) handleListReceipts(w http.ResponseWriter, r *http.Request, userID string) {
	receipts, err := s.service.ListReceipts(userID)
	if err != nil {
		slog.Error("Error listing receipts", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	responses := make([]receiptResponse, 0, len(receipts))
	for _, rcpt := range receipts {
		responses = append(responses, toResponse(rcpt))
	}
	writeJSON(w, http.StatusOK, responses)
}

// handleGetReceipt returns a single receipt.
func (s *Server) handleGetReceipt(w http.ResponseWriter, r *http.Request, userID string) {
	receipt, err := s.service.GetReceipt(userID, r.PathValue("id"))
	if err != nil {
		corsError(w, "Receipt not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(receipt))
}

// handleUpdateReceipt applies new field values to a receipt.
func (s *Server) handleUpdateReceipt(w http.ResponseWriter, r *http.Request, userID string) {
	var req receiptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	receipt, err := s.service.UpdateReceipt(userID, r.PathValue("id"), ReceiptInput{
		StoreName:       req.StoreName,
		Amount:          req.Amount,
		ReceiptDate:     req.ReceiptDate,
		Category:        req.Category,
		WarrantyItem:    req.WarrantyItem,
		WarrantyExpDate: req.WarrantyExpDate,
	})
	if err != nil {
		slog.Error("Error updating receipt", "id", r.PathValue("id"), "error", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, toResponse(receipt))
}

// handleDeleteReceipt deletes a receipt.
func (s *Server) handleDeleteReceipt(w http.ResponseWriter, r *http.Request, userID string) {
	if err := s.service.DeleteReceipt(userID, r.PathValue("id")); err != nil {
		corsError(w, "Receipt not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGetReceiptFile returns the original uploaded file for a receipt.
func (s *Server) handleGetReceiptFile(w http.ResponseWriter, r *http.Request, userID string) {
	data, contentType, err := s.service.GetReceiptFile(userID, r.PathValue("id"))
	if err != nil {
		corsError(w, "File not found", http.StatusNotFound)
		return
	}

	setCORSHeaders(w)
	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// handleExpiringWarranties lists receipts whose warranty expires within
// ?days=N (default 30).
func (s *Server) handleExpiringWarranties(w http.ResponseWriter, r *http.Request, userID string) {
	days := 30
	if v := r.URL.Query().Get("days"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "days must be a non-negative integer"})
			return
		}
		days = parsed
	}

	receipts, err := s.service.ExpiringWarranties(userID, time.Duration(days)*24*time.Hour)
	if err != nil {
		slog.Error("Error listing warranties", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	responses := make([]receiptResponse, 0, len(receipts))
	for _, rcpt := range receipts {
		responses = append(responses, toResponse(rcpt))
	}
	writeJSON(w, http.StatusOK, responses)
}
