package receipt

import (
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("LocalStorage", func() {
	var (
		tmpDir  string
		storage Storage
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		var err error
		storage, err = NewLocalStorage(tmpDir)
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("Save", func() {
		It("should write the file and return its name", func() {
			name, err := storage.Save("r1_receipt.jpg", []byte("jpeg-bytes"))
			Expect(err).NotTo(HaveOccurred())
			Expect(name).To(Equal("r1_receipt.jpg"))
			Expect(filepath.Join(tmpDir, name)).To(BeAnExistingFile())
		})
	})

	Describe("Get", func() {
		It("should read back what was saved", func() {
			name, err := storage.Save("r1_receipt.jpg", []byte("jpeg-bytes"))
			Expect(err).NotTo(HaveOccurred())

			data, err := storage.Get(name)
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(Equal([]byte("jpeg-bytes")))
		})

		It("should return an error for a missing file", func() {
			_, err := storage.Get("missing.jpg")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Delete", func() {
		It("should remove a saved file", func() {
			name, err := storage.Save("r1_receipt.jpg", []byte("jpeg-bytes"))
			Expect(err).NotTo(HaveOccurred())

			Expect(storage.Delete(name)).To(Succeed())
			Expect(filepath.Join(tmpDir, name)).NotTo(BeAnExistingFile())
		})

		It("should return an error for a missing file", func() {
			Expect(storage.Delete("missing.jpg")).NotTo(Succeed())
		})
	})
})
