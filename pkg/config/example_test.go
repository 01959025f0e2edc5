package config_test

import (
	"fmt"
	"log"

	"github.com/ajitpratap0/recoconv/pkg/config"
)

// ExampleDefault demonstrates the built-in configuration.
func ExampleDefault() {
	cfg := config.Default()

	fmt.Printf("Batch Size: %d\n", cfg.Output.BatchSize)
	fmt.Printf("Log Level: %s\n", cfg.Log.Level)
	fmt.Printf("Skipped by default: %v\n", cfg.SkipList().Contains("timestamp"))

	// Output:
	// Batch Size: 10000
	// Log Level: info
	// Skipped by default: true
}

// ExampleConfig_Validate shows how to validate a configuration before a run.
func ExampleConfig_Validate() {
	cfg := config.Default()
	cfg.Output.Format = "parquet"
	cfg.Output.Compression = "zstd"
	cfg.Output.BatchSize = 5000

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	fmt.Println("Configuration is valid!")

	// Output:
	// Configuration is valid!
}

// ExampleLoad demonstrates layering environment overrides on the defaults.
func ExampleLoad() {
	v := config.NewViper()
	v.Set("output.format", "npy")

	cfg, err := config.Load(v, "")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(cfg.Output.Format)

	// Output:
	// npy
}
