//go:build ignore

// build.go - IPEDS Enrollment Pulse build script
// Usage: go run build.go [-target=TARGET] [-v]
// Targets: all, web, ipedsctl, test, clean, package

package main

import (
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

const versionPackage = "ipedspulse/pkg/contracts"

var (
	distDir = "dist"

	// key = directory under cmd/, value = binary name
	executables = map[string]string{
		"web":      "ipedspulse",
		"ipedsctl": "ipedsctl",
	}

	colorReset = "\033[0m"
	colorRed   = "\033[31m"
	colorGreen = "\033[32m"
	colorBlue  = "\033[34m"
	colorCyan  = "\033[36m"
)

func main() {
	target := flag.String("target", "all", "Build target")
	verbose := flag.Bool("v", false, "Verbose output")
	flag.Parse()

	printHeader()
	startTime := time.Now()

	switch *target {
	case "all":
		runTests(*verbose)
		for name := range executables {
			buildExecutable(name, *verbose)
		}
	case "web", "ipedsctl":
		buildExecutable(*target, *verbose)
	case "test":
		runTests(*verbose)
	case "clean":
		clean(*verbose)
	case "package":
		for name := range executables {
			buildExecutable(name, *verbose)
		}
		createPackage(*verbose)
	default:
		showHelp()
		os.Exit(1)
	}

	printSuccess(fmt.Sprintf("Build completed in %s", time.Since(startTime).Round(time.Millisecond)))
}

func printHeader() {
	fmt.Println(colorCyan + "===========================================" + colorReset)
	fmt.Println(colorCyan + "    IPEDS Enrollment Pulse - Build         " + colorReset)
	fmt.Println(colorCyan + "===========================================" + colorReset)
	fmt.Println()
}

func printInfo(msg string) {
	fmt.Printf("%s[INFO]%s %s\n", colorBlue, colorReset, msg)
}

func printSuccess(msg string) {
	fmt.Printf("%s[SUCCESS]%s %s\n", colorGreen, colorReset, msg)
}

func printError(msg string) {
	fmt.Printf("%s[ERROR]%s %s\n", colorRed, colorReset, msg)
}

// gitOutput runs git and returns trimmed stdout, or "unknown".
func gitOutput(args ...string) string {
	out, err := exec.Command("git", args...).Output()
	if err != nil {
		return "unknown"
	}
	return strings.TrimSpace(string(out))
}

func ldflags() string {
	vars := map[string]string{
		"BuildTime": time.Now().UTC().Format(time.RFC3339),
		"GitCommit": gitOutput("rev-parse", "--short", "HEAD"),
		"GitBranch": gitOutput("rev-parse", "--abbrev-ref", "HEAD"),
	}
	flags := []string{"-s", "-w"}
	for k, v := range vars {
		flags = append(flags, fmt.Sprintf("-X %s.%s=%s", versionPackage, k, v))
	}
	return strings.Join(flags, " ")
}

func buildExecutable(name string, verbose bool) {
	binary, ok := executables[name]
	if !ok {
		printError(fmt.Sprintf("Unknown executable: %s", name))
		os.Exit(1)
	}
	if runtime.GOOS == "windows" {
		binary += ".exe"
	}
	printInfo(fmt.Sprintf("Building %s...", name))

	outputPath := filepath.Join(distDir, binary)
	args := []string{"build", "-trimpath", "-ldflags", ldflags(), "-o", outputPath, "./cmd/" + name}
	if verbose {
		args = append([]string{"build", "-v"}, args[1:]...)
		fmt.Printf("Running: go %s\n", strings.Join(args, " "))
	}

	cmd := exec.Command("go", args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		printError(fmt.Sprintf("Failed to build %s: %v", name, err))
		os.Exit(1)
	}

	if info, err := os.Stat(outputPath); err == nil {
		printSuccess(fmt.Sprintf("Built %s (%.2f MB)", outputPath, float64(info.Size())/1024/1024))
	}
}

func runTests(verbose bool) {
	printInfo("Running tests...")
	args := []string{"test", "-race", "./..."}
	if verbose {
		args = append(args, "-v")
	}
	cmd := exec.Command("go", args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		printError(fmt.Sprintf("Tests failed: %v", err))
		os.Exit(1)
	}
}

func clean(verbose bool) {
	printInfo("Cleaning build artifacts...")
	if verbose {
		fmt.Printf("Removing %s\n", distDir)
	}
	if err := os.RemoveAll(distDir); err != nil {
		printError(fmt.Sprintf("Failed to clean %s: %v", distDir, err))
		os.Exit(1)
	}
}

// createPackage copies the sample dataset next to the binaries.
func createPackage(verbose bool) {
	src := filepath.Join("data", "ipeds_enrollment_wide.csv")
	dest := filepath.Join(distDir, src)
	if verbose {
		fmt.Printf("Copying %s to %s\n", src, dest)
	}
	data, err := os.ReadFile(src)
	if err != nil {
		printError(fmt.Sprintf("Failed to read %s: %v", src, err))
		os.Exit(1)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		printError(fmt.Sprintf("Failed to create %s: %v", filepath.Dir(dest), err))
		os.Exit(1)
	}
	if err := os.WriteFile(dest, data, 0644); err != nil {
		printError(fmt.Sprintf("Failed to write %s: %v", dest, err))
		os.Exit(1)
	}
	printSuccess("Package created in " + distDir)
}

func showHelp() {
	fmt.Println("Usage: go run build.go -target=TARGET [-v]")
	fmt.Println()
	fmt.Println("Targets:")
	fmt.Println("  all       Run tests and build every executable")
	fmt.Println("  web       Build the dashboard server")
	fmt.Println("  ipedsctl  Build the command line tool")
	fmt.Println("  test      Run tests with the race detector")
	fmt.Println("  clean     Remove dist/")
	fmt.Println("  package   Build and copy the sample dataset into dist/")
}
