// Package main provides a performance benchmarking tool for the busfactor CLI.
// It measures analyze times across different repository sizes and history
// windows, running each variant multiple times and averaging the runs,
// generating CSV output for performance analysis and documentation.
//
// Prerequisites:
// - busfactor binary installed and available in PATH
// - Test repositories cloned to the specified base directory
// - Git repositories: csv-parser, fd, git, kubernetes
//
// Usage: go run benchmark/main.go [repo-base-dir]
//
//	repo-base-dir: Directory containing test repositories
package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// BenchmarkResult holds the timings of one variant on one repository.
type BenchmarkResult struct {
	Repository string
	Variant    string
	FirstTime  string
	AvgTime    string
}

// BenchmarkConfig holds configuration for the benchmark run.
type BenchmarkConfig struct {
	RepoBase  string
	Timeout   time.Duration
	Runs      int
	TestRepos []string
	Variants  map[string][]string // Variant name to extra analyze flags
}

func main() {
	if len(os.Args) != 2 {
		fmt.Printf("Usage: %s [repo-base-dir]\n", os.Args[0])
		os.Exit(1)
	}

	config := BenchmarkConfig{
		RepoBase:  os.Args[1],
		Timeout:   10 * time.Minute,
		Runs:      3,
		TestRepos: []string{"csv-parser", "fd", "git", "kubernetes"},
		Variants: map[string][]string{
			"full":        nil,
			"last-year":   {"--since", "1 year ago"},
			"5k-commits":  {"--max-commits", "5000"},
			"bots-hidden": {"--exclude-bots"},
		},
	}

	if err := checkPrerequisites(config); err != nil {
		fmt.Printf("Prerequisites check failed: %v\n", err)
		os.Exit(1)
	}

	results := runBenchmarks(config)

	if err := saveResults(results); err != nil {
		fmt.Printf("Failed to save results: %v\n", err)
		os.Exit(1)
	}

	printSummary(results)
}

// checkPrerequisites verifies that busfactor binary and test repositories exist
func checkPrerequisites(config BenchmarkConfig) error {
	if _, err := exec.LookPath("busfactor"); err != nil {
		return fmt.Errorf("busfactor binary not found in PATH")
	}
	for _, repo := range config.TestRepos {
		repoPath := filepath.Join(config.RepoBase, repo)
		if _, err := os.Stat(repoPath); os.IsNotExist(err) {
			return fmt.Errorf("repository %s not found at %s", repo, repoPath)
		}
	}
	return nil
}

// runBenchmarks executes every variant across configured repositories
func runBenchmarks(config BenchmarkConfig) []BenchmarkResult {
	var results []BenchmarkResult

	fmt.Printf("Starting benchmark: %d repos, %v timeout, %d runs per variant\n",
		len(config.TestRepos), config.Timeout, config.Runs)

	for _, repo := range config.TestRepos {
		fmt.Printf("Benchmarking %s\n", repo)
		repoPath := filepath.Join(config.RepoBase, repo)
		for _, variant := range []string{"full", "last-year", "5k-commits", "bots-hidden"} {
			results = append(results, runVariant(config, repo, repoPath, variant))
		}
	}
	return results
}

// runVariant runs one variant config.Runs times and summarizes the timings
func runVariant(config BenchmarkConfig, repo, repoPath, variant string) BenchmarkResult {
	fmt.Printf("  %s (%d runs)\n", variant, config.Runs)

	args := append([]string{"analyze", "--job-backend", "none"}, config.Variants[variant]...)
	times := runBenchmark(config, repoPath, args)

	result := BenchmarkResult{Repository: repo, Variant: variant, FirstTime: "TIMEOUT", AvgTime: "TIMEOUT"}
	if len(times) > 0 {
		var sum float64
		for _, t := range times {
			sum += t
		}
		result.FirstTime = fmt.Sprintf("%.3fs", times[0])
		result.AvgTime = fmt.Sprintf("%.3fs", sum/float64(len(times)))
	}
	fmt.Printf("    First: %s, Average: %s\n", result.FirstTime, result.AvgTime)
	return result
}

// runBenchmark executes busfactor numRuns times and returns the successful timings
func runBenchmark(config BenchmarkConfig, repoPath string, args []string) []float64 {
	var times []float64
	for range config.Runs {
		start := time.Now()

		cmd := exec.Command("busfactor", args...)
		cmd.Dir = repoPath

		done := make(chan bool, 1)
		var output []byte
		var cmdErr error

		go func() {
			output, cmdErr = cmd.CombinedOutput()
			done <- true
		}()

		select {
		case <-done:
			if cmdErr == nil && isSuccess(output) {
				times = append(times, time.Since(start).Seconds())
			}
		case <-time.After(config.Timeout):
			_ = cmd.Process.Kill()
		}
	}
	return times
}

// isSuccess checks if command output indicates successful completion
func isSuccess(output []byte) bool {
	outputStr := string(output)
	return strings.Contains(outputStr, "Analysis completed in") && strings.Contains(outputStr, "workers")
}

// saveResults writes benchmark results to a timestamped CSV file
func saveResults(results []BenchmarkResult) error {
	timestamp := time.Now().Format("20060102_150405")
	filename := fmt.Sprintf("/tmp/busfactor_benchmark_%s.csv", timestamp)

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			fmt.Printf("Warning: failed to close file %s: %v\n", filename, closeErr)
		}
	}()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"repo", "variant", "first_time", "avg_time"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, result := range results {
		if err := writer.Write([]string{result.Repository, result.Variant, result.FirstTime, result.AvgTime}); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	fmt.Printf("Results saved to %s\n", filename)
	return nil
}

// printSummary displays the final benchmark results summary
func printSummary(results []BenchmarkResult) {
	fmt.Printf("Benchmark complete\n")
	for _, result := range results {
		fmt.Printf("  %-12s %-12s: First: %s, Average: %s\n", result.Repository, result.Variant, result.FirstTime, result.AvgTime)
	}
}
