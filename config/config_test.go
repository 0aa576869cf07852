package config_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/viper"

	"github.com/ruslanbaba/Azure-Healthcare-Platform/config"
)

const validConfig = `
server:
  address: ":8080"
  environment: "dev"

logging:
  level: "info"

health_check:
  interval: "15s"

services:
  - name: "data-processor"
    base_url: "http://data-processor:8000"
    timeout_seconds: 60
    max_retries: 2
    circuit_failure_threshold: 5
    circuit_reset_timeout_seconds: 60
  - name: "analytics-engine"
    base_url: "http://analytics-engine:8000"
    timeout_seconds: 30
    max_retries: 3
    circuit_failure_threshold: 5
    circuit_reset_timeout_seconds: 60

routes:
  - prefix: "/data/process"
    service: "data-processor"
    capacity: 10
    window_seconds: 60
  - prefix: "/data"
    service: "data-processor"
    capacity: 30
    window_seconds: 60
  - prefix: "/analytics"
    service: "analytics-engine"
    capacity: 100
    window_seconds: 60
`

var _ = Describe("Config", func() {
	var tempDir string

	BeforeEach(func() {
		viper.Reset()

		var err error
		tempDir, err = os.MkdirTemp("", "config-test-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tempDir)
	})

	writeConfig := func(content string) {
		configPath := filepath.Join(tempDir, "config.yaml")
		Expect(os.WriteFile(configPath, []byte(content), 0644)).To(Succeed())
		Expect(os.Chdir(tempDir)).To(Succeed())
	}

	Describe("Load", func() {
		Context("with a valid config file", func() {
			BeforeEach(func() {
				writeConfig(validConfig)
			})

			It("should load configuration successfully", func() {
				cfg, err := config.Load()
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg).NotTo(BeNil())
			})

			It("should parse services", func() {
				cfg, _ := config.Load()
				Expect(cfg.Services).To(HaveLen(2))
				Expect(cfg.Services[0].Name).To(Equal("data-processor"))
				Expect(cfg.Services[0].TimeoutSeconds).To(Equal(60))
				Expect(cfg.Services[1].MaxRetries).To(Equal(3))
			})

			It("should parse routes", func() {
				cfg, _ := config.Load()
				Expect(cfg.Routes).To(HaveLen(3))
				Expect(cfg.Routes[0].Prefix).To(Equal("/data/process"))
				Expect(cfg.Routes[0].Capacity).To(Equal(10))
			})

			It("should leave the global rate gate disabled by default", func() {
				cfg, _ := config.Load()
				Expect(cfg.GlobalRate.RPS).To(BeZero())
			})
		})

		Context("without a config file", func() {
			BeforeEach(func() {
				Expect(os.Chdir(tempDir)).To(Succeed())
			})

			It("should fail validation because no services are configured", func() {
				_, err := config.Load()
				Expect(err).To(HaveOccurred())
			})
		})
	})

	Describe("Validate", func() {
		var cfg *config.Config

		BeforeEach(func() {
			writeConfig(validConfig)
			var err error
			cfg, err = config.Load()
			Expect(err).NotTo(HaveOccurred())
		})

		It("should accept the loaded configuration", func() {
			Expect(cfg.Validate()).To(Succeed())
		})

		It("should reject an unknown environment", func() {
			cfg.Server.Environment = "qa"
			Expect(cfg.Validate()).To(HaveOccurred())
		})

		It("should reject an address without a port", func() {
			cfg.Server.Address = "localhost"
			Expect(cfg.Validate()).To(HaveOccurred())
		})

		It("should reject a non-http service URL", func() {
			cfg.Services[0].BaseURL = "ftp://data-processor:8000"
			Expect(cfg.Validate()).To(HaveOccurred())
		})

		It("should reject duplicate service names", func() {
			cfg.Services[1].Name = cfg.Services[0].Name
			Expect(cfg.Validate()).To(HaveOccurred())
		})

		It("should reject a zero failure threshold", func() {
			cfg.Services[0].CircuitFailureThreshold = 0
			Expect(cfg.Validate()).To(HaveOccurred())
		})

		It("should reject a zero reset timeout", func() {
			cfg.Services[0].CircuitResetTimeoutSeconds = 0
			Expect(cfg.Validate()).To(HaveOccurred())
		})

		It("should reject a route without a leading slash", func() {
			cfg.Routes[0].Prefix = "data/process"
			Expect(cfg.Validate()).To(HaveOccurred())
		})

		It("should reject a route naming an unknown service", func() {
			cfg.Routes[0].Service = "imaging-service"
			Expect(cfg.Validate()).To(HaveOccurred())
		})

		It("should reject a zero rate-limit window", func() {
			cfg.Routes[0].WindowSeconds = 0
			Expect(cfg.Validate()).To(HaveOccurred())
		})

		It("should reject a positive global rate without burst", func() {
			cfg.GlobalRate.RPS = 50
			cfg.GlobalRate.Burst = 0
			Expect(cfg.Validate()).To(HaveOccurred())
		})
	})
})
