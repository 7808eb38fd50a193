package providers

import (
	"context"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	dserrors "github.com/systmms/kapsel/internal/errors"
	"github.com/systmms/kapsel/internal/logging"
	"github.com/systmms/kapsel/pkg/requirement"
)

// DefaultDownloadTimeout bounds a whole download.
const DefaultDownloadTimeout = 10 * time.Minute

const sectionDownloads = "downloads"

// HashAlgorithms is the allow-list for download checksums.
var HashAlgorithms = []string{"md5", "sha1", "sha224", "sha256", "sha384", "sha512"}

func newHash(algorithm string) (hash.Hash, bool) {
	switch algorithm {
	case "md5":
		return md5.New(), true
	case "sha1":
		return sha1.New(), true
	case "sha224":
		return sha256.New224(), true
	case "sha256":
		return sha256.New(), true
	case "sha384":
		return sha512.New384(), true
	case "sha512":
		return sha512.New(), true
	}
	return nil, false
}

// DownloadHash returns the declared checksum of a download. Both the
// hash_algorithm/hash_value pair and the "<algorithm>: <hex>" shorthand are
// accepted.
func DownloadHash(req *requirement.Requirement) (algorithm, value string, err error) {
	opts := req.Options()
	algorithm, _ = opts.String("hash_algorithm")
	value, _ = opts.String("hash_value")
	if algorithm == "" {
		for _, a := range HashAlgorithms {
			if v, ok := opts.String(a); ok {
				algorithm, value = a, v
				break
			}
		}
	}
	if algorithm == "" && value == "" {
		return "", "", nil
	}
	if _, ok := newHash(algorithm); !ok {
		return "", "", fmt.Errorf("unknown hash algorithm %q for %s, use one of %s",
			algorithm, req.EnvVar(), strings.Join(HashAlgorithms, ", "))
	}
	if value == "" {
		return "", "", fmt.Errorf("hash_algorithm is set for %s but hash_value is missing", req.EnvVar())
	}
	return algorithm, strings.ToLower(value), nil
}

// DownloadFilename returns the file name a download is stored under.
func DownloadFilename(req *requirement.Requirement) string {
	if name, ok := req.Options().String("filename"); ok && name != "" {
		return name
	}
	u, err := url.Parse(req.URL())
	if err == nil {
		if base := path.Base(u.Path); base != "." && base != "/" && base != "" {
			return base
		}
	}
	return strings.ToLower(req.EnvVar())
}

// DownloadProvider fetches a file over HTTP into the project directory and
// points the requirement's variable at it.
type DownloadProvider struct {
	client *http.Client
	logger *logging.Logger
}

// NewDownloadProvider creates the provider.
func NewDownloadProvider(client *http.Client, logger *logging.Logger) *DownloadProvider {
	if client == nil {
		client = &http.Client{Timeout: DefaultDownloadTimeout}
	}
	return &DownloadProvider{client: client, logger: orDiscard(logger)}
}

// Name implements requirement.Provider.
func (p *DownloadProvider) Name() string {
	return string(requirement.KindDownload)
}

// Check implements requirement.Provider.
func (p *DownloadProvider) Check(_ context.Context, req *requirement.Requirement, in requirement.CheckInput) *requirement.Status {
	filename, ok := in.Environ.Lookup(req.EnvVar())
	if !ok {
		return requirement.NewStatus(req, false, notSetDescription(req.EnvVar()))
	}
	if !fileExists(filename) {
		return requirement.NewStatus(req, false, fmt.Sprintf("File not found: %s", filename))
	}
	return requirement.NewStatus(req, true, fmt.Sprintf("File downloaded to %s", filename))
}

// Fix implements requirement.Provider.
func (p *DownloadProvider) Fix(ctx context.Context, req *requirement.Requirement, fc *requirement.FixContext) (*requirement.FixResult, error) {
	result := &requirement.FixResult{}
	name := req.EnvVar()
	env := fc.Input.Environ

	if v, ok := fc.Input.State.GetValue(sectionDownloads, name); ok {
		if saved := fmt.Sprint(v); fileExists(saved) {
			env[name] = saved
			return result, nil
		}
	}

	target := filepath.Join(fc.Input.ProjectDir, DownloadFilename(req))
	if fileExists(target) {
		env[name] = target
		if fc.Mode != requirement.ProvideCheck {
			fc.Input.State.SetValue(target, sectionDownloads, name)
		}
		return result, nil
	}

	if fc.Mode == requirement.ProvideCheck {
		return result, nil
	}

	if err := p.download(ctx, req, target, result); err != nil {
		result.Errorf("%s", dserrors.DescribeProviderFailure(p.Name(), err))
		return result, nil
	}
	env[name] = target
	fc.Input.State.SetValue(target, sectionDownloads, name)
	return result, nil
}

func (p *DownloadProvider) download(ctx context.Context, req *requirement.Requirement, target string, result *requirement.FixResult) error {
	source := req.URL()
	algorithm, expected, err := DownloadHash(req)
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return fmt.Errorf("Error downloading %s: %w", source, err)
	}
	p.logger.Debug("Downloading %s to %s", source, target)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("Error downloading %s: %w", source, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("Error downloading %s: response code %d", source, resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("Error downloading %s: %w", source, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".part-*")
	if err != nil {
		return fmt.Errorf("Error downloading %s: %w", source, err)
	}
	tmpName := tmp.Name()
	keep := false
	defer func() {
		if !keep {
			_ = os.Remove(tmpName)
		}
	}()

	var w io.Writer = tmp
	var h hash.Hash
	if algorithm != "" {
		h, _ = newHash(algorithm)
		w = io.MultiWriter(tmp, h)
	}

	n, err := io.Copy(w, resp.Body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("Error downloading %s: %w", source, err)
	}

	if h != nil {
		actual := hex.EncodeToString(h.Sum(nil))
		if actual != expected {
			return fmt.Errorf("Error downloading %s: mismatched hashes. Expected: %s, calculated: %s", source, expected, actual)
		}
	}

	if err := os.Rename(tmpName, target); err != nil {
		return fmt.Errorf("Error downloading %s: %w", source, err)
	}
	keep = true
	result.Logf("Downloaded %d bytes from %s to %s", n, source, target)
	return nil
}

// Clean removes the downloaded file and forgets its location.
func (p *DownloadProvider) Clean(_ context.Context, req *requirement.Requirement, fc *requirement.FixContext) *requirement.FixResult {
	result := &requirement.FixResult{}
	name := req.EnvVar()
	target := filepath.Join(fc.Input.ProjectDir, DownloadFilename(req))
	if v, ok := fc.Input.State.GetValue(sectionDownloads, name); ok {
		target = fmt.Sprint(v)
	}
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		result.Errorf("Failed to remove %s: %v", target, err)
		return result
	}
	fc.Input.State.UnsetValue(sectionDownloads, name)
	result.Logf("Removed downloaded file %s.", target)
	return result
}

func fileExists(name string) bool {
	info, err := os.Stat(name)
	return err == nil && !info.IsDir()
}
