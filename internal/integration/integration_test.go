//go:build integration

package integration

import (
	"bytes"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/buckleypaul/flashwatch/internal/config"
	"github.com/buckleypaul/flashwatch/internal/programmer"
	"github.com/buckleypaul/flashwatch/internal/runner"
	"github.com/buckleypaul/flashwatch/internal/serial"
	"github.com/buckleypaul/flashwatch/internal/watcher"
)

// boardDevice returns the serial device of an attached board from the
// environment, or skips the test if it is not set.
func boardDevice(t *testing.T) string {
	t.Helper()
	dev := os.Getenv("FLASHWATCH_DEVICE")
	if dev == "" {
		t.Skip("FLASHWATCH_DEVICE not set; skipping integration tests")
	}
	return dev
}

// TestIntegrationResetTouch opens the board at 1200 baud and drops DTR.
func TestIntegrationResetTouch(t *testing.T) {
	dev := boardDevice(t)

	if err := serial.NewToucher(config.DefaultResetBaudRate).Touch(dev); err != nil {
		t.Fatalf("reset touch on %s: %v", dev, err)
	}
	time.Sleep(config.DefaultBootloaderDelay)
}

// TestIntegrationARMUpload flashes FLASHWATCH_ARM_BINARY with the real
// bossac and checks that some attempt succeeded.
func TestIntegrationARMUpload(t *testing.T) {
	dev := boardDevice(t)
	bin := os.Getenv("FLASHWATCH_ARM_BINARY")
	if bin == "" {
		t.Skip("FLASHWATCH_ARM_BINARY not set")
	}

	var out bytes.Buffer
	prog, err := programmer.New(programmer.ARM, programmer.Options{
		Runner:          &runner.Exec{LogPath: t.TempDir() + "/upload.log", Stdout: &out},
		Logger:          logrus.StandardLogger(),
		Port:            strings.TrimPrefix(dev, "/dev/"),
		Device:          dev,
		Resetter:        serial.NewToucher(config.DefaultResetBaudRate),
		BootloaderDelay: config.DefaultBootloaderDelay,
	})
	if err != nil {
		t.Fatal(err)
	}

	err = prog.Upload(programmer.Job{Family: programmer.ARM, Binary: bin})
	t.Logf("bossac output:\n%s", out.String())
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
}

// TestIntegrationWatchBoot waits for the running firmware to print
// FLASHWATCH_PATTERN and checks FLASHWATCH_SUCCESS against the output.
func TestIntegrationWatchBoot(t *testing.T) {
	dev := boardDevice(t)
	pattern := os.Getenv("FLASHWATCH_PATTERN")
	if pattern == "" {
		t.Skip("FLASHWATCH_PATTERN not set")
	}
	success := os.Getenv("FLASHWATCH_SUCCESS")
	if success == "" {
		success = "(?s).*"
	}

	spec, err := watcher.NewSpec(dev, config.DefaultBaudRate, pattern, success, 30*time.Second)
	if err != nil {
		t.Fatal(err)
	}

	var console bytes.Buffer
	res, err := watcher.New(logrus.StandardLogger()).Run(spec, &console)
	t.Logf("console:\n%s", console.String())
	if err != nil {
		t.Fatalf("watch failed: %v", err)
	}
	if !res.Succeeded {
		t.Fatalf("pattern matched but success check failed on %q", res.Output)
	}
}
