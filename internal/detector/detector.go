// Package detector talks to the external service that finds sub-images.
package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	apperrors "go-crop-extractor/internal/errors"
	"go-crop-extractor/internal/logger"
	"go-crop-extractor/internal/repository"
	"go-crop-extractor/pkg/validation"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
)

// EndpointEnv names the variable the endpoint is configured from
const EndpointEnv = "DETECT_ENDPOINT"

// maxResponseSize bounds the JSON body read from the service
const maxResponseSize = 256 << 20

// Detector finds sub-images in an image
type Detector interface {
	Detect(ctx context.Context, img *repository.ImageObject) (*Result, error)
}

// Result holds the service's answer. Images is nil when the service
// replied with a non-200 status.
type Result struct {
	StatusCode int
	Images     []string
}

// HTTPDetector posts images to the detection service
type HTTPDetector struct {
	endpoint  string
	client    *http.Client
	validator *validation.URLValidator
}

type detectResponse struct {
	Response *struct {
		ExtractedImages *[]string `json:"extractedImages"`
	} `json:"response"`
}

// NewHTTPDetector creates a detector. An empty endpoint is reported when
// Detect is called, so the service still starts without one.
func NewHTTPDetector(endpoint string, timeout time.Duration) Detector {
	transport := &http.Transport{
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   2,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &HTTPDetector{
		endpoint: endpoint,
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("too many redirects (limit: 3)")
				}
				return nil
			},
		},
		validator: validation.NewURLValidator(),
	}
}

// Detect uploads the image as multipart field "file" and returns the
// base64 strings the service extracted
func (d *HTTPDetector) Detect(ctx context.Context, img *repository.ImageObject) (*Result, error) {
	if d.endpoint == "" {
		return nil, apperrors.NewConfigurationError(EndpointEnv+" is not set", nil)
	}
	if err := d.validator.ValidateEndpointURL(d.endpoint); err != nil {
		return nil, apperrors.NewConfigurationError(EndpointEnv+" is not a valid URL", err)
	}

	payload, err := encodeImage(img)
	if err != nil {
		return nil, apperrors.NewProcessingError("failed to encode image for detection", err)
	}

	body, contentType, err := multipartBody(payload)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build detection request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, body)
	if err != nil {
		return nil, apperrors.NewConfigurationError(EndpointEnv+" is not a valid URL", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, apperrors.NewExternalServiceError("detection request failed", err)
	}
	defer resp.Body.Close()

	log := logger.WithFields(logrus.Fields{
		"status_code": resp.StatusCode,
		"duration_ms": time.Since(start).Milliseconds(),
		"bytes_sent":  len(payload),
	})

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		log.Warn("Detection service returned a non-200 status")
		return &Result{StatusCode: resp.StatusCode}, nil
	}

	var parsed detectResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&parsed); err != nil {
		return nil, apperrors.NewExternalServiceError("invalid detection response", err)
	}
	if parsed.Response == nil || parsed.Response.ExtractedImages == nil {
		return nil, apperrors.NewExternalServiceError("invalid detection response: missing response.extractedImages", nil)
	}

	images := *parsed.Response.ExtractedImages
	log.WithField("detections", len(images)).Info("Detection completed")

	return &Result{StatusCode: resp.StatusCode, Images: images}, nil
}

// encodeImage re-serializes the bitmap in its source format. Formats
// imaging cannot write are sent as downloaded.
func encodeImage(img *repository.ImageObject) ([]byte, error) {
	format, err := imaging.FormatFromExtension(img.Format)
	if err != nil {
		return img.Raw, nil
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img.Image, format); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func multipartBody(payload []byte) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "file")
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(payload); err != nil {
		return nil, "", err
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return &buf, writer.FormDataContentType(), nil
}
