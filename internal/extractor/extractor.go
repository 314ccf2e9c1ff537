// Package extractor talks to the face extraction service: an HTTP
// sidecar that detects faces in an image and returns one normalized
// embedding per face.
package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"
)

const defaultBaseURL = "http://localhost:8000"

// ErrNoFaceDetected reports that the extractor found no face in the image.
var ErrNoFaceDetected = errors.New("no face detected")

// ErrDecode reports that the extractor could not decode the image bytes.
var ErrDecode = errors.New("image could not be decoded")

// Mode selects which detected faces are returned.
type Mode int

const (
	// LargestOnly keeps only the biggest face by bounding-box area.
	// Used for enrollment and login selfies.
	LargestOnly Mode = iota

	// AllFaces keeps every detection. Used for galleries and group shots.
	AllFaces
)

// Detection is one face found in an image.
type Detection struct {
	Vector   []float32 `json:"embedding"`
	BBox     []float64 `json:"bbox"` // [x1, y1, x2, y2]
	DetScore float64   `json:"det_score"`
}

// Client calls the face extraction service.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a client for the extraction service at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type faceResponse struct {
	FacesCount int         `json:"faces_count"`
	Faces      []Detection `json:"faces"`
	Model      string      `json:"model"`
	Error      string      `json:"error,omitempty"`
}

// Detect extracts face embeddings from the image. A decodable image with
// no faces returns ErrNoFaceDetected; undecodable bytes return ErrDecode.
func (c *Client) Detect(ctx context.Context, imageData []byte, mode Mode) ([]Detection, error) {
	body, err := c.postImage(ctx, "/embed/face", imageData)
	if err != nil {
		return nil, err
	}

	var resp faceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if len(resp.Faces) == 0 {
		return nil, ErrNoFaceDetected
	}

	faces := resp.Faces
	if mode == LargestOnly && len(faces) > 1 {
		faces = []Detection{largestFace(faces)}
	}

	for i := range faces {
		faces[i].Vector = renormalize(faces[i].Vector)
	}
	return faces, nil
}

// postImage posts the image as multipart form data with an explicit
// Content-Type from magic byte detection.
func (c *Client) postImage(ctx context.Context, endpoint string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	mimeType := detectMIMEType(imageData)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="image.jpg"`)
	h.Set("Content-Type", mimeType)
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("extractor request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return body, nil
	case http.StatusUnprocessableEntity, http.StatusBadRequest:
		return nil, fmt.Errorf("%w: %s", ErrDecode, strings.TrimSpace(string(body)))
	default:
		return nil, fmt.Errorf("extractor error (status %d): %s", resp.StatusCode, string(body))
	}
}

// largestFace picks the detection with the biggest bounding-box area.
func largestFace(faces []Detection) Detection {
	best := faces[0]
	bestArea := bboxArea(best.BBox)
	for _, f := range faces[1:] {
		if a := bboxArea(f.BBox); a > bestArea {
			best, bestArea = f, a
		}
	}
	return best
}

func bboxArea(bbox []float64) float64 {
	if len(bbox) != 4 {
		return 0
	}
	return math.Abs(bbox[2]-bbox[0]) * math.Abs(bbox[3]-bbox[1])
}

// renormalize scales the vector to unit length when its norm drifts past
// tolerance. Already-normalized vectors come back unchanged.
func renormalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	if norm == 0 || math.Abs(norm-1) <= 1e-3 {
		return v
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// detectMIMEType detects the MIME type from image data
func detectMIMEType(data []byte) string {
	if len(data) < 8 {
		return "application/octet-stream"
	}
	// JPEG: FF D8 FF
	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return "image/jpeg"
	}
	// PNG: 89 50 4E 47 0D 0A 1A 0A
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return "image/png"
	}
	// GIF: 47 49 46 38
	if data[0] == 0x47 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x38 {
		return "image/gif"
	}
	// WebP: 52 49 46 46 ... 57 45 42 50
	if len(data) >= 12 && data[0] == 0x52 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x46 &&
		data[8] == 0x57 && data[9] == 0x45 && data[10] == 0x42 && data[11] == 0x50 {
		return "image/webp"
	}
	return "application/octet-stream"
}
