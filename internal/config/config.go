package config

import (
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// PublicOCRKey is OCR.space's shared demo key. Only acceptable for non-production runs.
const PublicOCRKey = "K81626103188957"

// Config is the root configuration for PharmaScrape.
type Config struct {
	Catalog   CatalogConfig   `mapstructure:"catalog"   yaml:"catalog"`
	Browser   BrowserConfig   `mapstructure:"browser"   yaml:"browser"`
	Images    ImagesConfig    `mapstructure:"images"    yaml:"images"`
	OCR       OCRConfig       `mapstructure:"ocr"       yaml:"ocr"`
	LLM       LLMConfig       `mapstructure:"llm"       yaml:"llm"`
	Collector CollectorConfig `mapstructure:"collector" yaml:"collector"`
	Storage   StorageConfig   `mapstructure:"storage"   yaml:"storage"`
	Logging   LoggingConfig   `mapstructure:"logging"   yaml:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"   yaml:"metrics"`
}

// CatalogConfig controls the remote search API and the product site.
type CatalogConfig struct {
	APIBaseURL     string        `mapstructure:"api_base_url"    yaml:"api_base_url"`
	SiteURL        string        `mapstructure:"site_url"        yaml:"site_url"`
	Platform       int           `mapstructure:"platform"        yaml:"platform"`
	OrderBy        string        `mapstructure:"order_by"        yaml:"order_by"`
	Order          string        `mapstructure:"order"           yaml:"order"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"      yaml:"user_agent"`
	MaxBodySize    int64         `mapstructure:"max_body_size"   yaml:"max_body_size"`
}

// BrowserConfig controls the headless renderer used for product pages.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless"           yaml:"headless"`
	Stealth           bool          `mapstructure:"stealth"            yaml:"stealth"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	HeadingSelector   string        `mapstructure:"heading_selector"   yaml:"heading_selector"`
	HeadingTimeout    time.Duration `mapstructure:"heading_timeout"    yaml:"heading_timeout"`
	ControlURL        string        `mapstructure:"control_url"        yaml:"control_url"`
}

// ImagesConfig controls image download and compression.
type ImagesConfig struct {
	CompressionEnabled bool          `mapstructure:"compression_enabled" yaml:"compression_enabled"`
	Quality            int           `mapstructure:"quality"             yaml:"quality"`
	DownloadTimeout    time.Duration `mapstructure:"download_timeout"    yaml:"download_timeout"`
	Delay              time.Duration `mapstructure:"delay"               yaml:"delay"`
	MaxSizeMB          int64         `mapstructure:"max_size_mb"         yaml:"max_size_mb"`
}

// OCRConfig controls the text-recognition backend and the localization engine.
type OCRConfig struct {
	Endpoint           string        `mapstructure:"endpoint"             yaml:"endpoint"`
	APIKey             string        `mapstructure:"api_key"              yaml:"api_key"`
	Engine             int           `mapstructure:"engine"               yaml:"engine"`
	Language           string        `mapstructure:"language"             yaml:"language"`
	Delay              time.Duration `mapstructure:"delay"                yaml:"delay"`
	DownloadTimeout    time.Duration `mapstructure:"download_timeout"     yaml:"download_timeout"`
	TempDir            string        `mapstructure:"temp_dir"             yaml:"temp_dir"`
	UseImageDimensions bool          `mapstructure:"use_image_dimensions" yaml:"use_image_dimensions"`
	AnalyzeDrugName    bool          `mapstructure:"analyze_drug_name"    yaml:"analyze_drug_name"`
}

// LLMConfig controls the generative language model collaborator.
type LLMConfig struct {
	Provider       string        `mapstructure:"provider"        yaml:"provider"`
	Model          string        `mapstructure:"model"           yaml:"model"`
	Endpoint       string        `mapstructure:"endpoint"        yaml:"endpoint"`
	APIKey         string        `mapstructure:"api_key"         yaml:"api_key"`
	MaxTokens      int           `mapstructure:"max_tokens"      yaml:"max_tokens"`
	Temperature    float64       `mapstructure:"temperature"     yaml:"temperature"`
	CallDelay      time.Duration `mapstructure:"call_delay"      yaml:"call_delay"`
	MaxRetries     int           `mapstructure:"max_retries"     yaml:"max_retries"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff" yaml:"initial_backoff"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
}

// CollectorConfig controls the end-to-end run.
type CollectorConfig struct {
	SeedKeywords       []string      `mapstructure:"seed_keywords"         yaml:"seed_keywords"`
	GeneratedKeywords  int           `mapstructure:"generated_keywords"    yaml:"generated_keywords"`
	MaxProductsPerTerm int           `mapstructure:"max_products_per_term" yaml:"max_products_per_term"`
	ProductDelay       time.Duration `mapstructure:"product_delay"         yaml:"product_delay"`
	CategorySampleSize int           `mapstructure:"category_sample_size"  yaml:"category_sample_size"`
	GenerateQuestions  bool          `mapstructure:"generate_questions"    yaml:"generate_questions"`
	LocateProducts     bool          `mapstructure:"locate_products"       yaml:"locate_products"`
	ExpandKeywords     bool          `mapstructure:"expand_keywords"       yaml:"expand_keywords"`
	ShowProgress       bool          `mapstructure:"show_progress"         yaml:"show_progress"`
}

// StorageConfig controls output/storage.
type StorageConfig struct {
	OutputDir       string `mapstructure:"output_dir"       yaml:"output_dir"`
	MongoURI        string `mapstructure:"mongo_uri"        yaml:"mongo_uri"`
	MongoDatabase   string `mapstructure:"mongo_database"   yaml:"mongo_database"`
	MongoCollection string `mapstructure:"mongo_collection" yaml:"mongo_collection"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// MetricsConfig controls the Prometheus text endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Port    int    `mapstructure:"port"    yaml:"port"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Catalog: CatalogConfig{
			APIBaseURL:     "https://api-gateway.pharmacity.vn",
			SiteURL:        "https://www.pharmacity.vn",
			Platform:       1,
			OrderBy:        "de-xuat",
			Order:          "desc",
			RequestTimeout: 30 * time.Second,
			UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			MaxBodySize:    10 * 1024 * 1024, // 10MB
		},
		Browser: BrowserConfig{
			Headless:          true,
			Stealth:           true,
			NavigationTimeout: 30 * time.Second,
			HeadingSelector:   "h1.line-clamp-3",
			HeadingTimeout:    5 * time.Second,
		},
		Images: ImagesConfig{
			CompressionEnabled: true,
			Quality:            70,
			DownloadTimeout:    30 * time.Second,
			Delay:              300 * time.Millisecond,
			MaxSizeMB:          20,
		},
		OCR: OCRConfig{
			Endpoint:        "https://api.ocr.space/parse/image",
			Engine:          2,
			Language:        "auto",
			Delay:           5 * time.Second,
			DownloadTimeout: 15 * time.Second,
			TempDir:         "./temp",
			AnalyzeDrugName: true,
		},
		LLM: LLMConfig{
			Provider:       "gemini",
			Model:          "gemini-2.0-flash",
			MaxTokens:      1024,
			Temperature:    0.3,
			CallDelay:      3 * time.Second,
			MaxRetries:     3,
			InitialBackoff: 5 * time.Second,
			RequestTimeout: 120 * time.Second,
		},
		Collector: CollectorConfig{
			SeedKeywords:       DefaultSeedKeywords(),
			GeneratedKeywords:  20,
			MaxProductsPerTerm: 50,
			ProductDelay:       1 * time.Second,
			CategorySampleSize: 100,
			GenerateQuestions:  true,
			LocateProducts:     true,
			ExpandKeywords:     true,
			ShowProgress:       true,
		},
		Storage: StorageConfig{
			OutputDir:       "./data",
			MongoDatabase:   "pharmascrape",
			MongoCollection: "products",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
			Path:    "/metrics",
		},
	}
}

// DefaultSeedKeywords is the pharmacy search vocabulary used when no seed list is configured.
func DefaultSeedKeywords() []string {
	return []string{
		// common symptoms
		"đau đầu", "viêm họng", "ho", "sốt", "cảm cúm", "tiêu chảy", "đau bụng", "nhức mỏi",
		// antibiotics and anti-inflammatories
		"kháng sinh", "kháng viêm", "giảm đau", "hạ sốt", "thuốc mỡ", "viêm xoang", "viêm phổi",
		// cardiovascular
		"tim mạch", "huyết áp cao", "cholesterol", "đau thắt ngực", "nhịp tim", "loãng máu",
		// diabetes
		"tiểu đường", "insulin", "đường huyết", "tiểu đường type 2",
		// digestion
		"dạ dày", "trào ngược", "táo bón", "đại tràng", "viêm loét dạ dày", "khó tiêu", "men tiêu hóa",
		// allergy
		"dị ứng", "viêm mũi", "ngứa", "nổi mề đay", "viêm da", "chàm", "mẩn đỏ",
		// neurology
		"an thần", "mất ngủ", "đau nửa đầu", "động kinh", "parkinson", "alzheimer", "co giật",
		// respiratory
		"hen suyễn", "viêm phế quản", "khó thở", "tắc nghẽn phổi", "COPD",
		// vitamins and minerals
		"vitamin", "vitamin C", "vitamin D", "vitamin E", "khoáng chất", "canxi", "sắt", "kẽm", "magie",
		// supplements
		"tăng cường miễn dịch", "bổ gan", "thuốc bổ", "mệt mỏi", "suy nhược", "tăng cân", "giảm cân",
		// eyes
		"đau mắt", "khô mắt", "viêm kết mạc", "thuốc nhỏ mắt", "đục thủy tinh thể", "glaucoma",
		// dermatology
		"mụn trứng cá", "nấm da", "vẩy nến", "hắc lào", "lang ben", "thuốc trị sẹo",
		// specialty
		"ung thư", "thuốc ức chế miễn dịch", "viêm khớp", "loãng xương", "gout", "thấp khớp",
		"kinh nguyệt", "tiền mãn kinh", "rối loạn nội tiết", "tiết niệu", "tiền liệt tuyến", "rối loạn cương",
		"trĩ", "giãn tĩnh mạch", "suy tĩnh mạch", "tai mũi họng", "răng miệng", "nha khoa",
	}
}
