package main

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/spf13/cobra"
)

const mermaidASCIIVersion = "1.1.0"

// SHA-256 checksums for mermaid-ascii v1.1.0 release assets.
var mermaidASCIIChecksums = map[string]string{
	"mermaid-ascii_Darwin_arm64.tar.gz":  "068d2ff869d4921655cab471500fffd8c3ed28155b100518ed3cf3835d53d3d0",
	"mermaid-ascii_Darwin_x86_64.tar.gz": "0cd4c9c01a03284fe866f39a1ce1aaee1e6a2fbd91deedc4ec254cb87622eec8",
	"mermaid-ascii_Linux_arm64.tar.gz":   "3b7d0a95141bfbca838e445ea802ffb7fba8873b3c4af498482c84f83526f2db",
	"mermaid-ascii_Linux_x86_64.tar.gz":  "838ea93d561b3bc83aa15531c6ed7d2d261a8edc521d5484f7e91fe831cc4c65",
}

var toolsFlags struct {
	force     bool
	checksums string
}

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Manage optional external renderers",
}

var toolsInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Install mermaid-ascii for box-drawn ASCII exports",
	Long: "Downloads the mermaid-ascii release for this platform into ~/.chainedit/bin.\n" +
		"`export --format ascii` uses it when present and falls back to the built-in renderer.",
	Args: cobra.NoArgs,
	RunE: runToolsInstall,
}

func init() {
	f := toolsInstallCmd.Flags()
	f.BoolVar(&toolsFlags.force, "force", false, "Reinstall even if already present")
	f.StringVar(&toolsFlags.checksums, "checksums", "", "shasum -a 256 file overriding the built-in digests")
	toolsCmd.AddCommand(toolsInstallCmd)
}

func runToolsInstall(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	dir := binDir()
	destPath := filepath.Join(dir, "mermaid-ascii")

	if _, err := os.Stat(destPath); err == nil && !toolsFlags.force {
		fmt.Fprintf(out, "mermaid-ascii already installed at %s\n", destPath)
		return nil
	}

	assetName, err := mermaidASCIIAssetName(runtime.GOOS, runtime.GOARCH)
	if err != nil {
		return err
	}
	checksums := mermaidASCIIChecksums
	if toolsFlags.checksums != "" {
		f, err := os.Open(toolsFlags.checksums)
		if err != nil {
			return err
		}
		checksums, err = parseChecksumFile(f)
		f.Close()
		if err != nil {
			return err
		}
	}
	expected, ok := checksums[assetName]
	if !ok {
		return fmt.Errorf("no known checksum for %s", assetName)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	url := fmt.Sprintf("https://github.com/AlexanderGrooff/mermaid-ascii/releases/download/%s/%s",
		mermaidASCIIVersion, assetName)
	fmt.Fprintf(out, "Downloading mermaid-ascii %s...\n", mermaidASCIIVersion)

	client := &http.Client{Timeout: 60 * time.Second}
	tmpPath, err := downloadToTempFile(client, url, dir)
	if err != nil {
		return err
	}
	defer os.Remove(tmpPath)

	if err := verifyChecksum(tmpPath, expected); err != nil {
		return fmt.Errorf("%s: %w", assetName, err)
	}

	f, err := os.Open(tmpPath)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := extractTarGz(f, dir, "mermaid-ascii"); err != nil {
		_ = os.Remove(destPath)
		return err
	}

	goodColor.Fprintf(out, "mermaid-ascii installed to %s\n", destPath)
	return nil
}

// mermaidASCIIAssetName returns the release asset name for a platform.
func mermaidASCIIAssetName(goos, goarch string) (string, error) {
	var osName string
	switch goos {
	case "darwin":
		osName = "Darwin"
	case "linux":
		osName = "Linux"
	default:
		return "", fmt.Errorf("mermaid-ascii: unsupported OS %q", goos)
	}

	var archName string
	switch goarch {
	case "amd64":
		archName = "x86_64"
	case "arm64":
		archName = "arm64"
	default:
		return "", fmt.Errorf("mermaid-ascii: unsupported architecture %q", goarch)
	}

	return fmt.Sprintf("mermaid-ascii_%s_%s.tar.gz", osName, archName), nil
}

// extractTarGz extracts one regular file, matched by base name, into destDir.
func extractTarGz(r io.Reader, destDir, targetName string) error {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("gzip: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("file %q not found in archive", targetName)
		}
		if err != nil {
			return fmt.Errorf("tar: %w", err)
		}
		if filepath.Base(hdr.Name) != targetName || hdr.Typeflag != tar.TypeReg {
			continue
		}

		destPath := filepath.Join(destDir, targetName)
		f, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o755)
		if err != nil {
			return fmt.Errorf("create %s: %w", destPath, err)
		}
		if _, err := io.Copy(f, tr); err != nil { //nolint:gosec // bounded by tar header size
			f.Close()
			return fmt.Errorf("write %s: %w", destPath, err)
		}
		return f.Close()
	}
}
