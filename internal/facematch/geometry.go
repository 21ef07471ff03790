package facematch

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"strconv"
	"strings"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

// ErrInvalidRegion is returned for regions that do not describe a box inside the frame.
var ErrInvalidRegion = errors.New("invalid face region")

// Region is a face bounding box in relative (0-1) frame coordinates, as
// reported by a face detector: top-left corner plus width and height.
type Region struct {
	XMin   float64 `json:"xmin"`
	YMin   float64 `json:"ymin"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ParseRegion parses "x,y,w,h" in relative coordinates.
func ParseRegion(s string) (Region, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return Region{}, fmt.Errorf("%w: expected x,y,w,h, got %q", ErrInvalidRegion, s)
	}

	var vals [4]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return Region{}, fmt.Errorf("%w: %q: %w", ErrInvalidRegion, p, err)
		}
		vals[i] = v
	}

	r := Region{XMin: vals[0], YMin: vals[1], Width: vals[2], Height: vals[3]}
	if err := r.Validate(); err != nil {
		return Region{}, err
	}
	return r, nil
}

// Validate checks that the region has a positive size and overlaps the frame.
func (r Region) Validate() error {
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("%w: non-positive size %gx%g", ErrInvalidRegion, r.Width, r.Height)
	}
	if r.XMin >= 1 || r.YMin >= 1 || r.XMin+r.Width <= 0 || r.YMin+r.Height <= 0 {
		return fmt.Errorf("%w: outside of frame", ErrInvalidRegion)
	}
	return nil
}

// Corners returns the region as [x1, y1, x2, y2].
func (r Region) Corners() []float64 {
	return []float64{r.XMin, r.YMin, r.XMin + r.Width, r.YMin + r.Height}
}

// PixelRect converts the region to pixels for a width x height frame, grows it
// by padding pixels on each side and clamps it to the frame.
func (r Region) PixelRect(width, height, padding int) image.Rectangle {
	x0 := int(r.XMin*float64(width)) - padding
	y0 := int(r.YMin*float64(height)) - padding
	x1 := int((r.XMin+r.Width)*float64(width)) + padding
	y1 := int((r.YMin+r.Height)*float64(height)) + padding

	return image.Rect(x0, y0, x1, y1).Intersect(image.Rect(0, 0, width, height))
}

// CropJPEG decodes a frame (JPEG, PNG or BMP), crops the region with padding
// and returns the crop encoded as JPEG.
func CropJPEG(frame []byte, r Region, padding int) ([]byte, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(frame))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	rect := r.PixelRect(bounds.Dx(), bounds.Dy(), padding).Add(bounds.Min)
	if rect.Empty() {
		return nil, fmt.Errorf("%w: crop is empty", ErrInvalidRegion)
	}

	cropped := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(cropped, cropped.Bounds(), img, rect.Min, draw.Src)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, cropped, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("failed to encode cropped image: %w", err)
	}
	return buf.Bytes(), nil
}

// ComputeIoU calculates Intersection over Union between two bounding boxes.
// bbox1 and bbox2 are [x1, y1, x2, y2] in the same coordinate system.
func ComputeIoU(bbox1, bbox2 []float64) float64 {
	if len(bbox1) != 4 || len(bbox2) != 4 {
		return 0
	}

	x1 := max(bbox1[0], bbox2[0])
	y1 := max(bbox1[1], bbox2[1])
	x2 := min(bbox1[2], bbox2[2])
	y2 := min(bbox1[3], bbox2[3])

	if x2 <= x1 || y2 <= y1 {
		return 0 // No intersection
	}

	intersection := (x2 - x1) * (y2 - y1)

	area1 := (bbox1[2] - bbox1[0]) * (bbox1[3] - bbox1[1])
	area2 := (bbox2[2] - bbox2[0]) * (bbox2[3] - bbox2[1])
	union := area1 + area2 - intersection

	if union <= 0 {
		return 0
	}

	return intersection / union
}

// ConvertPixelBBoxToRelative converts pixel bbox to relative (0-1) coordinates.
// Input bbox is [x1, y1, x2, y2] in pixels, output is [x1, y1, x2, y2] in relative coords.
func ConvertPixelBBoxToRelative(bbox []float64, width, height int) []float64 {
	if len(bbox) != 4 || width <= 0 || height <= 0 {
		return bbox
	}
	return []float64{
		bbox[0] / float64(width),
		bbox[1] / float64(height),
		bbox[2] / float64(width),
		bbox[3] / float64(height),
	}
}

// BestOverlap returns the index of the box with the highest IoU against target,
// or -1 when no box reaches minIoU.
func BestOverlap(target []float64, boxes [][]float64, minIoU float64) int {
	best, bestIoU := -1, 0.0
	for i, b := range boxes {
		iou := ComputeIoU(target, b)
		if iou > 0 && iou >= minIoU && iou > bestIoU {
			best, bestIoU = i, iou
		}
	}
	return best
}

// FrameSize returns the pixel dimensions of an encoded image without decoding it fully.
func FrameSize(frame []byte) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(frame))
	if err != nil {
		return 0, 0, fmt.Errorf("failed to decode image config: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}
