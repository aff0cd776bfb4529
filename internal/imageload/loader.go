package imageload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"time"

	"petscan/internal/assets"
	"petscan/internal/logging"
	"petscan/internal/metrics"
	"petscan/internal/workers"

	"github.com/disintegration/imaging"
	"github.com/doyensec/safeurl"
)

var (
	// ErrRemoteNotAllowed is delivered when an asset is only available
	// remotely and the request does not allow network access.
	ErrRemoteNotAllowed = errors.New("remote fetch not allowed")

	// ErrNoImageData is delivered for handles with neither a path nor a URL.
	ErrNoImageData = errors.New("asset has no image data")
)

// Quality selects the delivery tier.
type Quality int

const (
	// QualityFast favors latency and memory: the image is shrunk while
	// decoding to the requested target size.
	QualityFast Quality = iota
	// QualityHigh decodes at full resolution (subject to the package limits)
	// before any resizing.
	QualityHigh
)

// String returns the metric label of the tier.
func (q Quality) String() string {
	if q == QualityHigh {
		return "high"
	}
	return "fast"
}

// Request describes the image wanted for an asset.
type Request struct {
	// TargetWidth and TargetHeight bound the delivered image; the aspect ratio
	// is preserved. Zero means original size.
	TargetWidth  int
	TargetHeight int
	Quality      Quality
	// AllowRemote permits fetching assets that are not stored locally.
	AllowRemote bool
	// Opportunistic asks for a degraded preview before the final image.
	Opportunistic bool
}

// ScanRequest is the request the pipeline issues for classification input:
// a size x size bound at the fast tier.
func ScanRequest(size int, allowRemote bool) Request {
	return Request{
		TargetWidth:  size,
		TargetHeight: size,
		Quality:      QualityFast,
		AllowRemote:  allowRemote,
	}
}

// FullRequest asks for the best available rendition at original size.
func FullRequest() Request {
	return Request{Quality: QualityHigh, AllowRemote: true}
}

// Delivery describes one invocation of a Handler.
type Delivery struct {
	// Degraded marks a preview that will be followed by another delivery.
	Degraded bool
	// Err is set when no image could be produced; the image is nil.
	Err error
}

// Handler receives image deliveries. It may be called more than once per
// request and from a goroutine other than the requester's.
type Handler func(img image.Image, d Delivery)

// Manager requests images for assets.
type Manager interface {
	RequestImage(ctx context.Context, asset assets.Handle, req Request, handler Handler)
}

// degradedSize bounds the preview delivered ahead of opportunistic requests.
const degradedSize = 64

// Loader is the Manager backed by local files and remote URLs.
type Loader struct {
	httpClient     *http.Client
	maxRemoteBytes int64
	// decodeSlots bounds concurrent decodes; requests beyond it queue.
	decodeSlots chan struct{}
}

// Option configures a Loader.
type Option func(*Loader)

// WithHTTPClient replaces the SSRF-safe client used for remote assets.
func WithHTTPClient(c *http.Client) Option {
	return func(l *Loader) {
		l.httpClient = c
	}
}

// WithMaxRemoteBytes caps the size of a remote download.
func WithMaxRemoteBytes(n int64) Option {
	return func(l *Loader) {
		if n > 0 {
			l.maxRemoteBytes = n
		}
	}
}

// WithDecodeWorkers sets how many images may be decoded at once.
func WithDecodeWorkers(n int) Option {
	return func(l *Loader) {
		if n > 0 {
			l.decodeSlots = make(chan struct{}, n)
		}
	}
}

// NewLoader creates a Loader. Remote fetches go through a client that
// refuses private, loopback and link-local destinations.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		maxRemoteBytes: 50 << 20,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.decodeSlots == nil {
		l.decodeSlots = make(chan struct{}, workers.ForCPU("DECODE_WORKERS", 8))
	}
	if l.httpClient == nil {
		config := safeurl.GetConfigBuilder().
			SetTimeout(30*time.Second).
			SetAllowedSchemes("http", "https").
			SetAllowedPorts(80, 443).
			Build()
		l.httpClient = safeurl.Client(config).Client
	}
	return l
}

// RequestImage implements Manager. The handler is invoked asynchronously:
// once with an error, once with the final image, or, for opportunistic
// requests, first with a degraded preview and then with the final image.
func (l *Loader) RequestImage(ctx context.Context, asset assets.Handle, req Request, handler Handler) {
	go func() {
		start := time.Now()
		img, source, err := l.load(ctx, asset, req)
		metrics.ImageLoadDuration.WithLabelValues(req.Quality.String(), source).Observe(time.Since(start).Seconds())

		if err != nil {
			status := "error"
			if errors.Is(err, ErrRemoteNotAllowed) {
				status = "remote_denied"
			}
			metrics.ImageLoadsTotal.WithLabelValues(req.Quality.String(), status).Inc()
			logging.Debug("Image load failed for %s: %v", asset.ID, err)
			handler(nil, Delivery{Err: err})
			return
		}
		metrics.ImageLoadsTotal.WithLabelValues(req.Quality.String(), "success").Inc()

		if req.Opportunistic {
			handler(imaging.Fit(img, degradedSize, degradedSize, imaging.NearestNeighbor), Delivery{Degraded: true})
		}
		handler(img, Delivery{})
	}()
}

// load returns the decoded image and the decoder that produced it.
func (l *Loader) load(ctx context.Context, asset assets.Handle, req Request) (image.Image, string, error) {
	select {
	case l.decodeSlots <- struct{}{}:
		defer func() { <-l.decodeSlots }()
	case <-ctx.Done():
		return nil, "none", ctx.Err()
	}
	if err := ctx.Err(); err != nil {
		return nil, "none", err
	}

	switch {
	case asset.Path != "":
		return l.loadLocal(asset.Path, req)
	case asset.URL != "":
		if !req.AllowRemote {
			return nil, "remote", ErrRemoteNotAllowed
		}
		img, err := l.loadRemote(ctx, asset.URL, req)
		return img, "remote", err
	default:
		return nil, "none", ErrNoImageData
	}
}

func (l *Loader) loadLocal(path string, req Request) (image.Image, string, error) {
	bounded := req.TargetWidth > 0 && req.TargetHeight > 0

	if req.Quality == QualityFast && bounded && IsVipsAvailable() {
		img, err := loadWithVips(path, req.TargetWidth, req.TargetHeight)
		if err == nil {
			return img, "vips", nil
		}
		logging.Debug("vips load failed for %s: %v, falling back to imaging", path, err)
	}

	img, err := decodeFile(path)
	if err != nil {
		return nil, "imaging", err
	}
	return fit(img, req), "imaging", nil
}

func (l *Loader) loadRemote(ctx context.Context, rawURL string, req Request) (image.Image, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := l.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", rawURL, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, l.maxRemoteBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rawURL, err)
	}
	if int64(len(data)) > l.maxRemoteBytes {
		return nil, fmt.Errorf("fetch %s: body exceeds %d bytes", rawURL, l.maxRemoteBytes)
	}

	img, err := decodeReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return fit(img, req), nil
}

// fit shrinks img to the request bounds; it never enlarges.
func fit(img image.Image, req Request) image.Image {
	if req.TargetWidth <= 0 || req.TargetHeight <= 0 {
		return img
	}
	filter := imaging.Lanczos
	if req.Quality == QualityFast {
		filter = imaging.Box
	}
	return imaging.Fit(img, req.TargetWidth, req.TargetHeight, filter)
}
