// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"log"

	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	catalogPath     string
	weaviateURL     string
	seedConcurrency int
	seedRate        float64
	recreateSchema  bool

	rootCmd = &cobra.Command{
		Use:   "assistant",
		Short: "Operational tooling for the course assistant",
		Long: `Maintenance commands for the course assistant: seeding the
course catalog into the vector database and managing its schema.`,
	}

	seedCmd = &cobra.Command{
		Use:   "seed",
		Short: "Embed the course catalog and upsert it into the vector database",
		RunE:  runSeed, // Defined in seed.go
	}

	schemaCmd = &cobra.Command{
		Use:   "schema",
		Short: "Create the Course class in the vector database if missing",
		RunE:  runSchema, // Defined in seed.go
	}
)

func init() {
	seedCmd.Flags().StringVarP(&catalogPath, "file", "f", "courses.yaml",
		"Path to the course catalog YAML file")
	seedCmd.Flags().IntVar(&seedConcurrency, "concurrency", 4,
		"Concurrent embedding requests")
	seedCmd.Flags().Float64Var(&seedRate, "rate", 5,
		"Maximum embedding requests per second")

	rootCmd.PersistentFlags().StringVar(&weaviateURL, "weaviate-url", "",
		"Vector database URL (defaults to WEAVIATE_SERVICE_URL)")
	schemaCmd.Flags().BoolVar(&recreateSchema, "recreate", false,
		"Drop and recreate the Course class (destroys the catalog)")

	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(schemaCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}
