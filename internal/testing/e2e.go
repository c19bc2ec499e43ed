// Package testing holds the browser end-to-end harness. Tests that use
// it drive a headless Chrome in Docker against a real server process
// and skip when Docker is unavailable.
package testing

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os/exec"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/chromedp/chromedp"
)

const dockerImage = "chromedp/headless-shell:latest"

// GetFreePort asks the kernel for a free open port that is ready to use
func GetFreePort() (port int, err error) {
	var a *net.TCPAddr
	if a, err = net.ResolveTCPAddr("tcp", "localhost:0"); err == nil {
		var l *net.TCPListener
		if l, err = net.ListenTCP("tcp", a); err == nil {
			defer l.Close()
			return l.Addr().(*net.TCPAddr).Port, nil
		}
	}
	return
}

// GetChromeTestURL returns the URL for Chrome (in Docker) to access the
// test server. Linux runs the container with host networking, so
// localhost works; macOS and Windows need host.docker.internal.
func GetChromeTestURL(port int) string {
	if runtime.GOOS == "linux" {
		return fmt.Sprintf("http://localhost:%d", port)
	}
	return fmt.Sprintf("http://host.docker.internal:%d", port)
}

// StartDockerChrome starts the chromedp headless-shell Docker container.
// The test is skipped when Docker is not available.
func StartDockerChrome(t *testing.T, debugPort int) *exec.Cmd {
	t.Helper()

	if err := exec.Command("docker", "version").Run(); err != nil {
		t.Skip("Docker not available, skipping E2E test")
	}

	// Pull the image only when it is missing locally.
	if err := exec.Command("docker", "image", "inspect", dockerImage).Run(); err != nil {
		t.Log("Pulling chromedp/headless-shell Docker image...")
		pullCmd := exec.Command("docker", "pull", dockerImage)
		if err := pullCmd.Start(); err != nil {
			t.Fatalf("Failed to start docker pull: %v", err)
		}

		pullDone := make(chan error, 1)
		go func() {
			pullDone <- pullCmd.Wait()
		}()

		select {
		case err := <-pullDone:
			if err != nil {
				t.Fatalf("Failed to pull Docker image: %v", err)
			}
		case <-time.After(60 * time.Second):
			pullCmd.Process.Kill()
			t.Fatal("Docker pull timed out after 60 seconds")
		}
	}

	t.Log("Starting Chrome headless Docker container...")
	containerName := fmt.Sprintf("reactive-e2e-%d", debugPort)

	var cmd *exec.Cmd
	if runtime.GOOS == "linux" {
		// Host networking lets the container reach test servers on
		// localhost directly.
		cmd = exec.Command("docker", "run", "--rm",
			"--network", "host",
			"--name", containerName,
			dockerImage,
		)
	} else {
		cmd = exec.Command("docker", "run", "--rm",
			"-p", fmt.Sprintf("%d:9222", debugPort),
			"--name", containerName,
			"--add-host", "host.docker.internal:host-gateway",
			dockerImage,
		)
	}

	if err := cmd.Start(); err != nil {
		t.Fatalf("Failed to start Chrome Docker container: %v", err)
	}

	if !waitForHTTP(fmt.Sprintf("http://localhost:%d/json/version", debugPort), 30*time.Second) {
		cmd.Process.Kill()
		t.Fatal("Chrome failed to start within 30 seconds")
	}

	t.Log("Chrome headless Docker container ready")
	return cmd
}

// StopDockerChrome stops the Chrome Docker container.
func StopDockerChrome(t *testing.T, cmd *exec.Cmd, debugPort int) {
	t.Helper()

	containerName := fmt.Sprintf("reactive-e2e-%d", debugPort)
	check := exec.Command("docker", "ps", "-a", "-q", "-f", "name="+containerName)
	if output, _ := check.Output(); len(output) > 0 {
		stopDone := make(chan error, 1)
		go func() {
			stopDone <- exec.Command("docker", "stop", "-t", "2", containerName).Run()
		}()

		select {
		case err := <-stopDone:
			if err != nil {
				t.Logf("Warning: failed to stop Docker container: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Logf("Warning: docker stop timed out, forcing kill")
			exec.Command("docker", "kill", containerName).Run()
		}
	}

	if cmd != nil && cmd.Process != nil {
		cmd.Process.Kill()
	}
}

// StartTestServer starts one of the example servers with `go run` on
// the given port and waits for it to answer.
func StartTestServer(t *testing.T, mainPath string, port int) *exec.Cmd {
	t.Helper()

	serverURL := fmt.Sprintf("http://localhost:%d", port)
	t.Logf("Starting test server on port %d", port)

	cmd := exec.Command("go", "run", mainPath)
	cmd.Env = append([]string{fmt.Sprintf("PORT=%d", port)}, cmd.Environ()...)
	if err := cmd.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}

	if !waitForHTTP(serverURL, 5*time.Second) {
		cmd.Process.Kill()
		t.Fatal("Server failed to start within 5 seconds")
	}

	t.Logf("Test server ready at %s", serverURL)
	return cmd
}

func waitForHTTP(url string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			return true
		}
		time.Sleep(100 * time.Millisecond)
	}
	return false
}

// WaitForSocketReady waits until the page's client script holds an open
// WebSocket. The script publishes the socket as window.reactive, so an
// OPEN readyState means the live loop is up and the initial update has
// been applied.
func WaitForSocketReady(timeout time.Duration) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := chromedp.WaitVisible(`[data-reactive-id]`, chromedp.ByQuery).Do(ctx); err != nil {
			return fmt.Errorf("no rendered element found: %w", err)
		}

		start := time.Now()
		for {
			var open bool
			err := chromedp.Evaluate(
				`Boolean(window.reactive && window.reactive.readyState === 1)`, &open,
			).Do(ctx)
			if err != nil {
				return fmt.Errorf("failed to check socket state: %w", err)
			}
			if open {
				return nil
			}
			if time.Since(start) > timeout {
				return fmt.Errorf("timeout waiting for WebSocket ready after %v", timeout)
			}
			time.Sleep(10 * time.Millisecond)
		}
	})
}

// ValidateNoDirectiveMarkers checks that the visible text of the
// selected element carries no unprocessed ${...} markers. The archived
// pristine copies live in attributes and never show up in text, so any
// marker here means a render went wrong.
func ValidateNoDirectiveMarkers(selector string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		var text string
		if err := chromedp.Text(selector, &text, chromedp.ByQuery).Do(ctx); err != nil {
			return fmt.Errorf("failed to get text of %s: %w", selector, err)
		}

		if idx := strings.Index(text, "${"); idx >= 0 {
			end := idx + 80
			if end > len(text) {
				end = len(text)
			}
			return fmt.Errorf("unprocessed directive marker in rendered text: ...%s...", text[idx:end])
		}
		return nil
	})
}
