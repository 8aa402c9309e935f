package receipt

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rwm-labs/receipt-manager/internal/pipeline"
)

func multipartUpload(field, filename string, data []byte) (*bytes.Buffer, string) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile(field, filename)
	Expect(err).NotTo(HaveOccurred())
	_, err = part.Write(data)
	Expect(err).NotTo(HaveOccurred())
	Expect(writer.Close()).To(Succeed())
	return body, writer.FormDataContentType()
}

var _ = Describe("Server", func() {
	var (
		db      *mockDB
		storage *mockStorage
		runner  *mockRunner
		server  *Server
		rec     *httptest.ResponseRecorder
		req     *http.Request
	)

	BeforeEach(func() {
		db = newMockDB()
		storage = newMockStorage()
		runner = &mockRunner{}
		now := time.Date(2024, 7, 10, 12, 0, 0, 0, time.UTC)
		service := NewServiceWithDeps(db, runner, storage, &fixedIDGenerator{}, &fixedTimeSource{now: now})
		server = NewServerWithMux(service, BasicAuth{Username: "alice", Password: "secret"}, http.NewServeMux())
		rec = httptest.NewRecorder()
	})

	serve := func() {
		req.SetBasicAuth("alice", "secret")
		server.ServeHTTP(rec, req)
	}

	Describe("authentication", func() {
		It("should reject requests without credentials", func() {
			req = httptest.NewRequest("GET", "/api/receipts", nil)
			server.ServeHTTP(rec, req)
			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
		})

		It("should reject wrong credentials", func() {
			req = httptest.NewRequest("GET", "/api/receipts", nil)
			req.SetBasicAuth("alice", "wrong")
			server.ServeHTTP(rec, req)
			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
		})
	})

	Describe("POST /api/receipts/scan", func() {
		var envelope struct {
			Success    bool   `json:"success"`
			OCRText    string `json:"ocrText"`
			ParsedData struct {
				Merchant *string `json:"merchant"`
				Amount   *string `json:"amount"`
				Date     *string `json:"date"`
			} `json:"parsedData"`
			Message string `json:"message"`
		}

		JustBeforeEach(func() {
			body, contentType := multipartUpload("file", "photo.jpg", []byte("jpeg-bytes"))
			req = httptest.NewRequest("POST", "/api/receipts/scan", body)
			req.Header.Set("Content-Type", contentType)
			serve()
			Expect(json.NewDecoder(rec.Body).Decode(&envelope)).To(Succeed())
		})

		When("both fields are extracted", func() {
			BeforeEach(func() {
				runner.result = pipeline.Result{
					OCRText: "Total: $10.80 on 07/04/2024",
					Fields:  pipeline.Fields{Amount: "10.80", Date: "07/04/2024"},
					Status:  pipeline.StatusSuccess,
				}
			})

			It("should respond 200", func() {
				Expect(rec.Code).To(Equal(http.StatusOK))
			})

			It("should return the envelope with both fields", func() {
				Expect(envelope.Success).To(BeTrue())
				Expect(envelope.OCRText).To(Equal("Total: $10.80 on 07/04/2024"))
				Expect(envelope.ParsedData.Amount).To(HaveValue(Equal("10.80")))
				Expect(envelope.ParsedData.Date).To(HaveValue(Equal("07/04/2024")))
			})

			It("should always report merchant as null", func() {
				Expect(envelope.ParsedData.Merchant).To(BeNil())
			})

			It("should not persist anything", func() {
				Expect(db.receipts).To(BeEmpty())
			})
		})

		When("no fields are extracted", func() {
			BeforeEach(func() {
				runner.result = pipeline.Result{
					OCRText: "TRG3T ST0RE $99.99",
					Fields:  pipeline.Fields{},
					Status:  pipeline.StatusPartialFailure,
				}
			})

			It("should still respond 200 with null fields", func() {
				Expect(rec.Code).To(Equal(http.StatusOK))
				Expect(envelope.Success).To(BeTrue())
				Expect(envelope.ParsedData.Amount).To(BeNil())
				Expect(envelope.ParsedData.Date).To(BeNil())
			})

			It("should ask the user to enter the fields manually", func() {
				Expect(envelope.Message).To(ContainSubstring("manually"))
			})
		})

		When("the upload cannot be decoded", func() {
			BeforeEach(func() {
				runner.err = &pipeline.DecodeError{Err: errors.New("unknown format")}
			})

			It("should respond 400 with a failed envelope", func() {
				Expect(rec.Code).To(Equal(http.StatusBadRequest))
				Expect(envelope.Success).To(BeFalse())
			})
		})

		When("the OCR engine fails", func() {
			BeforeEach(func() {
				runner.err = &pipeline.EngineError{Err: errors.New("timeout")}
			})

			It("should respond 502 with a failed envelope", func() {
				Expect(rec.Code).To(Equal(http.StatusBadGateway))
				Expect(envelope.Success).To(BeFalse())
			})
		})
	})

	Describe("POST /api/receipts", func() {
		JustBeforeEach(func() {
			payload := `{"store_name":"Hardware Depot","amount":"45.00","receipt_date":"07/04/2024","category":"Tools","warranty_item":"Cordless drill","warranty_exp_date":"07/04/2026"}`
			req = httptest.NewRequest("POST", "/api/receipts", strings.NewReader(payload))
			req.Header.Set("Content-Type", "application/json")
			serve()
		})

		It("should respond 201", func() {
			Expect(rec.Code).To(Equal(http.StatusCreated))
		})

		It("should return boundary-formatted values", func() {
			var resp receiptResponse
			Expect(json.NewDecoder(rec.Body).Decode(&resp)).To(Succeed())
			Expect(resp.Amount).To(Equal("45.00"))
			Expect(resp.ReceiptDate).To(Equal("07/04/2024"))
			Expect(resp.WarrantyExpDate).To(Equal("07/04/2026"))
			Expect(resp.UserID).To(Equal("alice"))
		})

		It("should persist in storage form", func() {
			Expect(db.receipts["id-1"].ReceiptDate).To(Equal("2024-07-04"))
			Expect(db.receipts["id-1"].Amount).To(Equal(4500))
		})
	})

	Describe("POST /api/receipts with a multipart form", func() {
		JustBeforeEach(func() {
			body := &bytes.Buffer{}
			writer := multipart.NewWriter(body)
			Expect(writer.WriteField("store_name", "Hardware Depot")).To(Succeed())
			Expect(writer.WriteField("amount", "45.00")).To(Succeed())
			Expect(writer.WriteField("receipt_date", "07/04/2024")).To(Succeed())
			part, err := writer.CreateFormFile("file", "photo.jpg")
			Expect(err).NotTo(HaveOccurred())
			_, err = part.Write([]byte("jpeg-bytes"))
			Expect(err).NotTo(HaveOccurred())
			Expect(writer.Close()).To(Succeed())

			req = httptest.NewRequest("POST", "/api/receipts", body)
			req.Header.Set("Content-Type", writer.FormDataContentType())
			serve()
		})

		It("should respond 201", func() {
			Expect(rec.Code).To(Equal(http.StatusCreated))
		})

		It("should keep the original photo in storage", func() {
			Expect(storage.files).To(HaveKey("id-1_photo.jpg"))
			Expect(db.receipts["id-1"].Filename).To(Equal("id-1_photo.jpg"))
		})
	})

	Describe("POST /api/receipts with invalid payload", func() {
		It("should respond 400", func() {
			req = httptest.NewRequest("POST", "/api/receipts", strings.NewReader(`{"store_name":"X","amount":"oops","receipt_date":"07/04/2024"}`))
			req.Header.Set("Content-Type", "application/json")
			serve()
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("receipt retrieval", func() {
		BeforeEach(func() {
			db.receipts["r1"] = &Receipt{
				ID:          "r1",
				UserID:      "alice",
				StoreName:   "Hardware Depot",
				Amount:      4500,
				ReceiptDate: "2024-07-04",
				Filename:    "r1_photo.jpg",
				ContentType: "image/jpeg",
			}
			db.receipts["r2"] = &Receipt{ID: "r2", UserID: "bob", StoreName: "Elsewhere", Amount: 100, ReceiptDate: "2024-01-01"}
			storage.files["r1_photo.jpg"] = []byte("jpeg-bytes")
		})

		It("should list only the authenticated user's receipts", func() {
			req = httptest.NewRequest("GET", "/api/receipts", nil)
			serve()
			Expect(rec.Code).To(Equal(http.StatusOK))

			var resp []receiptResponse
			Expect(json.NewDecoder(rec.Body).Decode(&resp)).To(Succeed())
			Expect(resp).To(HaveLen(1))
			Expect(resp[0].ID).To(Equal("r1"))
		})

		It("should get a single receipt", func() {
			req = httptest.NewRequest("GET", "/api/receipts/r1", nil)
			serve()
			Expect(rec.Code).To(Equal(http.StatusOK))

			var resp receiptResponse
			Expect(json.NewDecoder(rec.Body).Decode(&resp)).To(Succeed())
			Expect(resp.Amount).To(Equal("45.00"))
			Expect(resp.ReceiptDate).To(Equal("07/04/2024"))
			Expect(resp.HasFile).To(BeTrue())
		})

		It("should 404 another user's receipt", func() {
			req = httptest.NewRequest("GET", "/api/receipts/r2", nil)
			serve()
			Expect(rec.Code).To(Equal(http.StatusNotFound))
		})

		It("should serve the original file", func() {
			req = httptest.NewRequest("GET", "/api/receipts/r1/file", nil)
			serve()
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Header().Get("Content-Type")).To(Equal("image/jpeg"))
			Expect(rec.Body.Bytes()).To(Equal([]byte("jpeg-bytes")))
		})

		It("should delete a receipt", func() {
			req = httptest.NewRequest("DELETE", "/api/receipts/r1", nil)
			serve()
			Expect(rec.Code).To(Equal(http.StatusNoContent))
			Expect(db.receipts).NotTo(HaveKey("r1"))
		})

		It("should update a receipt", func() {
			payload := `{"store_name":"Hardware Depot","amount":"52.25","receipt_date":"07/05/2024"}`
			req = httptest.NewRequest("PUT", "/api/receipts/r1", strings.NewReader(payload))
			req.Header.Set("Content-Type", "application/json")
			serve()
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(db.receipts["r1"].Amount).To(Equal(5225))
		})
	})

	Describe("GET /api/warranties", func() {
		BeforeEach(func() {
			db.receipts["r1"] = &Receipt{ID: "r1", UserID: "alice", StoreName: "Soon Co", Amount: 100, ReceiptDate: "2024-07-01", WarrantyExpDate: "2024-07-20"}
			db.receipts["r2"] = &Receipt{ID: "r2", UserID: "alice", StoreName: "Later Co", Amount: 100, ReceiptDate: "2024-07-01", WarrantyExpDate: "2025-07-01"}
		})

		It("should list warranties expiring within the window", func() {
			req = httptest.NewRequest("GET", "/api/warranties?days=30", nil)
			serve()
			Expect(rec.Code).To(Equal(http.StatusOK))

			var resp []receiptResponse
			Expect(json.NewDecoder(rec.Body).Decode(&resp)).To(Succeed())
			Expect(resp).To(HaveLen(1))
			Expect(resp[0].StoreName).To(Equal("Soon Co"))
		})

		It("should reject a bad days value", func() {
			req = httptest.NewRequest("GET", "/api/warranties?days=soon", nil)
			serve()
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})
	})
})
