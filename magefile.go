//go:build mage
// +build mage

package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

var (
	binDir  = "bin"
	tmpDir  = "tmp"
	appName = "spice-shelf-web"
)

var Default = Dev

// Dev: Gerekli ön adımları çalıştırır (tidy, mock generate) sonra air/go run
func Dev() error {
	mg.Deps(PreDev)

	// air varsa onu kullan
	if _, err := exec.LookPath("air"); err == nil {
		fmt.Println("Starting hot-reload with air ...")
		return sh.RunV("air")
	}

	fmt.Println("air not found. Falling back to `go run ./cmd/web`.")
	fmt.Println("Install with: mage Tools")
	return Run()
}

// PreDev: Dev öncesi gerekli işler
func PreDev() error {
	mg.Deps(Tidy, Gen)
	return nil
}

// Gen: Codegen (mockgen via go:generate).
func Gen() error {
	if _, err := exec.LookPath("mockgen"); err != nil {
		return fmt.Errorf("mockgen not found. Install with: mage Tools")
	}
	fmt.Println("Generating mocks...")
	return sh.RunV("go", "generate", "./internal/...")
}

func Run() error {
	fmt.Println("Running (go run) on :8080 ...")
	return sh.RunV("go", "run", "./cmd/web")
}

func Build() error {
	mg.Deps(Tidy)

	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return err
	}

	out := filepath.Join(binDir, appName+exeSuffix())
	fmt.Println("Building:", out)

	env := map[string]string{"CGO_ENABLED": "0"}
	if err := sh.RunWithV(env, "go", "build", "-trimpath", "-o", out, "./cmd/web"); err != nil {
		return err
	}
	for _, tool := range []string{"migrate", "mockwebhook", "pixcheckout", "reconcile"} {
		dst := filepath.Join(binDir, tool+exeSuffix())
		if err := sh.RunWithV(env, "go", "build", "-trimpath", "-o", dst, "./cmd/tools/"+tool); err != nil {
			return err
		}
	}
	return nil
}

func Test() error {
	fmt.Println("Testing...")
	return sh.RunV("go", "test", "./...", "-count=1")
}

func TestRace() error {
	fmt.Println("Testing with -race...")
	if runtime.GOOS == "windows" {
		fmt.Println("Note: -race on Windows may be unsupported/unstable depending on your Go toolchain.")
	}
	return sh.RunV("go", "test", "./...", "-race", "-count=1")
}

func Fmt() error {
	fmt.Println("Formatting...")
	return sh.RunV("gofmt", "-w", "./cmd", "./internal", "./magefile.go")
}

func Lint() error {
	fmt.Println("Linting (golangci-lint)...")
	if _, err := exec.LookPath("golangci-lint"); err != nil {
		return fmt.Errorf("golangci-lint not found. Install with: mage Tools")
	}
	return sh.RunV("golangci-lint", "run", "--timeout=3m", "./...")
}

func Check() error {
	mg.Deps(Fmt, Lint, Test)
	fmt.Println("Check OK.")
	return nil
}

func Tidy() error {
	fmt.Println("Tidying go.mod/go.sum...")
	return sh.RunV("go", "mod", "tidy")
}

func Clean() error {
	fmt.Println("Cleaning...")
	_ = os.RemoveAll(binDir)
	_ = os.RemoveAll(tmpDir)
	return nil
}

// Tools: air + mockgen + golangci-lint (v2 önerilir) kur
func Tools() error {
	fmt.Println("Installing tools (air, mockgen, golangci-lint)...")

	if err := sh.RunV("go", "install", "github.com/air-verse/air@latest"); err != nil {
		return err
	}
	if err := sh.RunV("go", "install", "github.com/golang/mock/mockgen@v1.6.0"); err != nil {
		return err
	}
	if err := sh.RunV("go", "install", "github.com/golangci/golangci-lint/v2/cmd/golangci-lint@latest"); err != nil {
		return err
	}

	// PATH kontrolü
	for _, bin := range []string{"air", "mockgen", "golangci-lint"} {
		if _, err := exec.LookPath(bin); err != nil && !errors.Is(err, exec.ErrNotFound) {
			return err
		}
	}

	fmt.Println("Tools installed. Ensure GOBIN/GOPATH/bin is in PATH.")
	return nil
}

func exeSuffix() string {
	if runtime.GOOS == "windows" {
		return ".exe"
	}
	return ""
}

// Migrate: AutoMigrate every table against DB_DRIVER/DB_DSN
func Migrate() error {
	return sh.RunV("go", "run", "./cmd/tools/migrate")
}
