package httpserver_test

import (
	"context"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ruslanbaba/Azure-Healthcare-Platform/internal/httpserver"
)

var _ = Describe("Server", func() {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	Describe("New", func() {
		It("should accept a host:port address", func() {
			srv, err := httpserver.New("localhost:8080", handler)
			Expect(err).NotTo(HaveOccurred())
			Expect(srv).NotTo(BeNil())
		})

		It("should accept an address without a host", func() {
			srv, err := httpserver.New(":8080", handler)
			Expect(err).NotTo(HaveOccurred())
			Expect(srv).NotTo(BeNil())
		})

		It("should reject an address without a port", func() {
			_, err := httpserver.New("localhost", handler)
			Expect(err).To(HaveOccurred())
		})

		It("should reject an invalid host", func() {
			_, err := httpserver.New("not a host:8080", handler)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Start and Shutdown", func() {
		It("should serve until shut down and return nil", func() {
			srv, err := httpserver.New("127.0.0.1:0", handler)
			Expect(err).NotTo(HaveOccurred())

			done := make(chan error, 1)
			go func() {
				done <- srv.Start()
			}()

			Eventually(func() error {
				return srv.Shutdown(context.Background())
			}).Should(Succeed())

			Eventually(done).Should(Receive(BeNil()))
		})
	})
})
