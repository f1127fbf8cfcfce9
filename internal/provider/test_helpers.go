package provider

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/terraform-plugin-testing/helper/resource"
	"github.com/hashicorp/terraform-plugin-testing/terraform"

	"github.com/vaterlangen/evolution-ews/internal/ews"
)

// Test environment configuration constants.
const (
	// Environment variables for test configuration.
	EnvTestURL             = "EWS_TEST_URL"
	EnvTestUsername        = "EWS_TEST_USERNAME"
	EnvTestPassword        = "EWS_TEST_PASSWORD"
	EnvTestEmail           = "EWS_TEST_EMAIL"
	EnvTestAuthMethod      = "EWS_TEST_AUTH_METHOD"
	EnvTestKeytab          = "EWS_TEST_KEYTAB"
	EnvTestRealm           = "EWS_TEST_REALM"
	EnvTestDirectoryDomain = "EWS_TEST_DIRECTORY_DOMAIN"
	EnvTestPeerEmail       = "EWS_TEST_PEER_EMAIL"

	// Test object name prefix to avoid conflicts.
	TestFolderPrefix = "tf-test-folder-"
)

// TestConfig holds common test configuration.
type TestConfig struct {
	URL             string
	Username        string
	Password        string
	Email           string
	AuthMethod      string
	Keytab          string
	Realm           string
	DirectoryDomain string
	PeerEmail       string
	UseKerberos     bool
}

// GetTestConfig returns the test configuration from environment variables.
func GetTestConfig() *TestConfig {
	config := &TestConfig{
		URL:             os.Getenv(EnvTestURL),
		Username:        os.Getenv(EnvTestUsername),
		Password:        os.Getenv(EnvTestPassword),
		Email:           os.Getenv(EnvTestEmail),
		AuthMethod:      getEnvWithDefault(EnvTestAuthMethod, string(ews.AuthMethodNTLM)),
		Keytab:          os.Getenv(EnvTestKeytab),
		Realm:           os.Getenv(EnvTestRealm),
		DirectoryDomain: os.Getenv(EnvTestDirectoryDomain),
		PeerEmail:       os.Getenv(EnvTestPeerEmail),
	}

	config.UseKerberos = config.Keytab != "" && config.Realm != ""
	if config.UseKerberos {
		config.AuthMethod = string(ews.AuthMethodNegotiate)
	}

	return config
}

// IsAccTest returns true if acceptance tests should run.
func IsAccTest() bool {
	return os.Getenv("TF_ACC") != ""
}

// SkipIfNotAccTest skips the test if TF_ACC is not set.
func SkipIfNotAccTest(t *testing.T) {
	if !IsAccTest() {
		t.Skip("Skipping acceptance test - set TF_ACC=1 to run")
	}
}

// testAccPreCheckWithConfig validates the test environment and returns it.
func testAccPreCheckWithConfig(t *testing.T) *TestConfig {
	SkipIfNotAccTest(t)

	config := GetTestConfig()

	if config.URL == "" {
		t.Skipf("Skipping test: %s must point at an Exchange server", EnvTestURL)
	}
	if config.Username == "" {
		t.Skipf("Skipping test: %s must be set", EnvTestUsername)
	}
	if config.Password == "" && !config.UseKerberos {
		t.Skipf("Skipping test: %s must be set (or configure Kerberos)", EnvTestPassword)
	}
	if config.Email == "" && config.DirectoryDomain == "" {
		t.Skipf("Skipping test: %s or %s must be set", EnvTestEmail, EnvTestDirectoryDomain)
	}

	return config
}

// TestProviderConfig generates provider configuration for tests.
func TestProviderConfig() string {
	config := GetTestConfig()

	var b strings.Builder
	b.WriteString("provider \"ews\" {\n")
	fmt.Fprintf(&b, "  url         = %q\n", config.URL)
	fmt.Fprintf(&b, "  username    = %q\n", config.Username)
	fmt.Fprintf(&b, "  auth_method = %q\n", config.AuthMethod)

	if config.Email != "" {
		fmt.Fprintf(&b, "  email = %q\n", config.Email)
	}
	if config.DirectoryDomain != "" {
		fmt.Fprintf(&b, "  directory_domain = %q\n", config.DirectoryDomain)
	}
	if config.UseKerberos {
		fmt.Fprintf(&b, "  kerberos_realm  = %q\n", config.Realm)
		fmt.Fprintf(&b, "  kerberos_keytab = %q\n", config.Keytab)
	} else {
		fmt.Fprintf(&b, "  password = %q\n", config.Password)
	}

	b.WriteString("}\n")
	return b.String()
}

// GenerateTestName generates a unique test name with timestamp.
func GenerateTestName(prefix string) string {
	timestamp := time.Now().Format("20060102-150405")
	shortUUID := uuid.New().String()[:8]
	return fmt.Sprintf("%s%s-%s", prefix, timestamp, shortUUID)
}

// testConnection opens a connection for check functions on a private
// registry, so it never shares state with the provider under test.
func testConnection() (*ews.Connection, error) {
	config := GetTestConfig()

	cfg := ews.DefaultConfig()
	cfg.URI = config.URL
	cfg.Username = config.Username
	cfg.Password = config.Password
	cfg.Email = config.Email
	cfg.AuthMethod = ews.AuthMethod(config.AuthMethod)
	cfg.KerberosRealm = config.Realm
	cfg.KerberosKeytab = config.Keytab

	return ews.NewRegistry().New(context.Background(), cfg, nil)
}

// TestCheckFolderExists verifies that a folder exists in the mailbox.
func TestCheckFolderExists(resourceName string) resource.TestCheckFunc {
	return func(s *terraform.State) error {
		rs, ok := s.RootModule().Resources[resourceName]
		if !ok {
			return fmt.Errorf("resource not found: %s", resourceName)
		}
		if rs.Primary.ID == "" {
			return fmt.Errorf("resource ID not set")
		}

		conn, err := testConnection()
		if err != nil {
			return fmt.Errorf("failed to create EWS connection: %v", err)
		}
		defer conn.Release()

		folders, err := conn.GetFolder(context.Background(), ews.PriorityDefault, ews.ShapeIDOnly, nil,
			[]ews.FolderID{{ID: rs.Primary.ID}})
		if err != nil {
			return fmt.Errorf("folder %s does not exist: %v", rs.Primary.ID, err)
		}
		if len(folders) != 1 {
			return fmt.Errorf("folder %s: expected one result, got %d", rs.Primary.ID, len(folders))
		}
		return nil
	}
}

// TestCheckFolderDestroy verifies that all test folders are gone.
func TestCheckFolderDestroy(s *terraform.State) error {
	conn, err := testConnection()
	if err != nil {
		return fmt.Errorf("failed to create EWS connection: %v", err)
	}
	defer conn.Release()

	for _, rs := range s.RootModule().Resources {
		if rs.Type != "ews_folder" {
			continue
		}
		_, err := conn.GetFolder(context.Background(), ews.PriorityDefault, ews.ShapeIDOnly, nil,
			[]ews.FolderID{{ID: rs.Primary.ID}})
		if err == nil {
			return fmt.Errorf("folder %s still exists", rs.Primary.ID)
		}
		if !ews.IsNotFoundError(err) {
			return fmt.Errorf("unexpected error checking folder %s: %v", rs.Primary.ID, err)
		}
	}
	return nil
}

// TestCheckFolderDisappears deletes the folder behind Terraform's back.
func TestCheckFolderDisappears(resourceName string) resource.TestCheckFunc {
	return func(s *terraform.State) error {
		rs, ok := s.RootModule().Resources[resourceName]
		if !ok {
			return fmt.Errorf("resource not found: %s", resourceName)
		}

		conn, err := testConnection()
		if err != nil {
			return fmt.Errorf("failed to create EWS connection: %v", err)
		}
		defer conn.Release()

		return conn.DeleteFolder(context.Background(), ews.PriorityDefault, ews.FolderID{ID: rs.Primary.ID}, ews.HardDelete)
	}
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
