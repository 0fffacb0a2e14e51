package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"sjsage522/communitysync/pkg/errors"
)

const (
	defaultListingURLTemplate = "https://community.society.taichung.gov.tw/compoint/List.aspx?Parser=99,6,22,,,,,,,,{page},,,,,400-401-403-402-404-407-408-406-420-412-411-423-437-436-433-435-421-429-427-428-426-422-438-439-414-432-434-413-424,1"
	defaultSitePrefix         = "https://community.society.taichung.gov.tw/compoint/"
)

// Config represents the application configuration
type Config struct {
	// Source site
	ListingURLTemplate string
	SitePrefix         string
	MaxPages           int
	ForceUTF8          bool
	RequestTimeout     time.Duration

	// Retry policy for fetches and remote calls
	MaxRetries   int
	RetryBackoff time.Duration

	// Output
	OutputDir  string
	FailureLog string

	// Notion
	NotionToken             string
	NotionDatabaseID        string
	NotionParentPageID      string
	NotionVersion           string
	NotionBaseURL           string
	DistrictDatabases       map[string]string
	DistrictProperty        string
	UploadDelay             time.Duration
	DefaultContactProgress  string
	DefaultWillingnessLevel string

	// Memcache page cache, disabled when empty
	MemcacheAddr string
	PageCacheTTL time.Duration

	// Redis record feed, disabled when empty
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamMaxLength int

	// Environment
	Environment string
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() *Config {
	maxPages, _ := strconv.Atoi(getEnv("MAX_PAGES", "0"))
	timeout, _ := strconv.Atoi(getEnv("REQUEST_TIMEOUT_SECONDS", "10"))
	maxRetries, _ := strconv.Atoi(getEnv("MAX_RETRIES", "3"))
	backoff, _ := strconv.Atoi(getEnv("RETRY_BACKOFF_MS", "1000"))
	uploadDelay, _ := strconv.Atoi(getEnv("UPLOAD_DELAY_MS", "350"))
	cacheTTL, _ := strconv.Atoi(getEnv("PAGE_CACHE_TTL_SECONDS", "3600"))
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	streamMaxLength, _ := strconv.Atoi(getEnv("REDIS_STREAM_MAX_LENGTH", "10000"))
	forceUTF8, err := strconv.ParseBool(getEnv("FORCE_UTF8", "true"))
	if err != nil {
		forceUTF8 = true
	}

	return &Config{
		ListingURLTemplate:      getEnv("LISTING_URL_TEMPLATE", defaultListingURLTemplate),
		SitePrefix:              getEnv("SITE_PREFIX", defaultSitePrefix),
		MaxPages:                maxPages,
		ForceUTF8:               forceUTF8,
		RequestTimeout:          time.Duration(timeout) * time.Second,
		MaxRetries:              maxRetries,
		RetryBackoff:            time.Duration(backoff) * time.Millisecond,
		OutputDir:               getEnv("OUTPUT_DIR", "./out"),
		FailureLog:              getEnv("FAILURE_LOG", "./out/failures.log"),
		NotionToken:             os.Getenv("INTERNAL_INTEGRATION_SECRET"),
		NotionDatabaseID:        os.Getenv("DATABASE_ID"),
		NotionParentPageID:      os.Getenv("PARENT_PAGE_ID"),
		NotionVersion:           getEnv("NOTION_VERSION", "2022-06-28"),
		NotionBaseURL:           getEnv("NOTION_BASE_URL", "https://api.notion.com/v1"),
		DistrictDatabases:       ParseDistrictDatabases(os.Getenv("NOTION_DISTRICT_DATABASES")),
		DistrictProperty:        os.Getenv("NOTION_DISTRICT_PROPERTY"),
		UploadDelay:             time.Duration(uploadDelay) * time.Millisecond,
		DefaultContactProgress:  getEnv("DEFAULT_CONTACT_PROGRESS", "未聯絡"),
		DefaultWillingnessLevel: getEnv("DEFAULT_WILLINGNESS", "未知"),
		MemcacheAddr:            os.Getenv("MEMCACHE_ADDR"),
		PageCacheTTL:            time.Duration(cacheTTL) * time.Second,
		RedisAddr:               os.Getenv("REDIS_ADDR"),
		RedisDB:                 redisDB,
		RedisStream:             getEnv("REDIS_STREAM", "community:records"),
		RedisStreamMaxLength:    streamMaxLength,
		Environment:             getEnv("SYNC_ENVIRONMENT", "development"),
	}
}

// Validate checks the settings every command needs
func (c *Config) Validate() error {
	if !strings.Contains(c.ListingURLTemplate, "{page}") {
		return errors.NewConfiguration("LISTING_URL_TEMPLATE must contain a {page} token", nil)
	}
	if c.SitePrefix == "" {
		return errors.NewConfiguration("SITE_PREFIX is required", nil)
	}
	if c.MaxPages < 0 {
		return errors.NewConfiguration(fmt.Sprintf("MAX_PAGES must not be negative, got %d", c.MaxPages), nil)
	}
	if c.MaxRetries < 1 {
		return errors.NewConfiguration(fmt.Sprintf("MAX_RETRIES must be at least 1, got %d", c.MaxRetries), nil)
	}
	if c.RequestTimeout <= 0 {
		return errors.NewConfiguration("REQUEST_TIMEOUT_SECONDS must be positive", nil)
	}
	return nil
}

// ValidateNotion checks the credentials required by commands talking to Notion.
// A databaseOverride given on the command line stands in for the configured databases.
func (c *Config) ValidateNotion(databaseOverride string) error {
	if c.NotionToken == "" {
		return errors.NewConfiguration("INTERNAL_INTEGRATION_SECRET is required", nil)
	}
	if databaseOverride == "" && c.NotionDatabaseID == "" && len(c.DistrictDatabases) == 0 {
		return errors.NewConfiguration("DATABASE_ID or NOTION_DISTRICT_DATABASES is required", nil)
	}
	if c.UploadDelay < 0 {
		return errors.NewConfiguration("UPLOAD_DELAY_MS must not be negative", nil)
	}
	return nil
}

// DatabaseFor returns the Notion database a district uploads into,
// falling back to DATABASE_ID.
func (c *Config) DatabaseFor(district string) string {
	if id, ok := c.DistrictDatabases[district]; ok && id != "" {
		return id
	}
	return c.NotionDatabaseID
}

// ParseDistrictDatabases parses "中區=<id>,東區=<id>" into a lookup table.
// Malformed pairs are ignored.
func ParseDistrictDatabases(value string) map[string]string {
	targets := make(map[string]string)
	for _, pair := range strings.Split(value, ",") {
		district, id, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			continue
		}
		district = strings.TrimSpace(district)
		id = strings.TrimSpace(id)
		if district == "" || id == "" {
			continue
		}
		targets[district] = id
	}
	return targets
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
