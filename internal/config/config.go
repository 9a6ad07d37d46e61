package config

import (
	"log"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	DcrawDir       string  `yaml:"dcraw_dir"`
	StartQuality   float64 `yaml:"start_quality"`
	QualityStep    float64 `yaml:"quality_step"`
	ConvertQuality float64 `yaml:"convert_quality"`
	ResampleFilter string  `yaml:"resample_filter"`
	MaxImagePixels int     `yaml:"max_image_pixels"`
	MetricsFile    string  `yaml:"metrics_textfile"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		StartQuality:   0.975,
		QualityStep:    0.025,
		ConvertQuality: 0.85,
		ResampleFilter: "bilinear",
		MaxImagePixels: 250_000_000,
	}
}

// Load loads configuration from the file named by IMGTOOL_CONFIG, if any,
// then applies environment variables on top
func Load() *Config {
	cfg := Default()
	if path := os.Getenv("IMGTOOL_CONFIG"); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			log.Printf("Ignoring config file %s: %v", path, err)
		}
	}

	cfg.DcrawDir = getEnvString("DCRAW_DIR", cfg.DcrawDir)
	cfg.StartQuality = getEnvFloat("COMPRESS_START_QUALITY", cfg.StartQuality)
	cfg.QualityStep = getEnvFloat("COMPRESS_QUALITY_STEP", cfg.QualityStep)
	cfg.ConvertQuality = getEnvFloat("CONVERT_QUALITY", cfg.ConvertQuality)
	cfg.ResampleFilter = getEnvString("RESAMPLE_FILTER", cfg.ResampleFilter)
	cfg.MaxImagePixels = getEnvInt("MAX_IMAGE_PIXELS", cfg.MaxImagePixels)
	cfg.MetricsFile = getEnvString("METRICS_TEXTFILE", cfg.MetricsFile)
	cfg.sanitize()
	return cfg
}

// LoadFile overlays values from a YAML file. Keys missing from the file keep
// their current values.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return err
	}
	c.sanitize()
	return nil
}

func (c *Config) sanitize() {
	d := Default()
	if c.StartQuality <= 0 || c.StartQuality > 1 {
		c.StartQuality = d.StartQuality
	}
	if c.QualityStep <= 0 || c.QualityStep > 1 {
		c.QualityStep = d.QualityStep
	}
	if c.ConvertQuality <= 0 || c.ConvertQuality > 1 {
		c.ConvertQuality = d.ConvertQuality
	}
	if c.MaxImagePixels <= 0 {
		c.MaxImagePixels = d.MaxImagePixels
	}
	if c.ResampleFilter == "" {
		c.ResampleFilter = d.ResampleFilter
	}
}

func getEnvString(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
