package server

import (
	"context"
	"fmt"
	"image"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mj1618/uibridge/internal/errs"
	"github.com/mj1618/uibridge/internal/imaging"
)

// loadPair reads image_a/image_b (base64) or path_a/path_b.
func loadPair(a args) (image.Image, image.Image, error) {
	imgA, err := imaging.Load(a.String("image_a", ""), a.String("path_a", ""))
	if err != nil {
		return nil, nil, errs.InvalidArgument(a.op, "image a: %v", err)
	}
	imgB, err := imaging.Load(a.String("image_b", ""), a.String("path_b", ""))
	if err != nil {
		return nil, nil, errs.InvalidArgument(a.op, "image b: %v", err)
	}
	return imgA, imgB, nil
}

func (s *Server) compareScreenshots(_ context.Context, a args) (any, error) {
	imgA, imgB, err := loadPair(a)
	if err != nil {
		return nil, err
	}
	res, err := imaging.Compare(imgA, imgB, a.String("algorithm", ""))
	if err != nil {
		return nil, errs.InvalidArgument(a.op, "%v", err)
	}
	return res, nil
}

// DiffBody summarizes a visual diff.
type DiffBody struct {
	Changed        int     `yaml:"changed_pixels" json:"changed_pixels"`
	Total          int     `yaml:"total_pixels" json:"total_pixels"`
	ChangedPercent float64 `yaml:"changed_percent" json:"changed_percent"`
	Path           string  `yaml:"path,omitempty" json:"path,omitempty"`
}

func (s *Server) diffScreenshots(_ context.Context, a args) (any, error) {
	imgA, imgB, err := loadPair(a)
	if err != nil {
		return nil, err
	}
	diff := imaging.Diff(imgA, imgB)
	body := DiffBody{Changed: diff.Changed, Total: diff.Total}
	if diff.Total > 0 {
		body.ChangedPercent = float64(diff.Changed) * 100 / float64(diff.Total)
	}
	data, err := imaging.EncodePNG(diff.Image)
	if err != nil {
		return nil, errs.Wrap(errs.KindTransport, a.op, err)
	}
	if a.Bool("save", false) {
		if body.Path, err = imaging.SaveTemp(data); err != nil {
			return nil, errs.Wrap(errs.KindTransport, a.op, err)
		}
		return body, nil
	}
	summary := fmt.Sprintf("%d of %d pixels changed (%.2f%%)", body.Changed, body.Total, body.ChangedPercent)
	b64, err := imaging.EncodeBase64(diff.Image)
	if err != nil {
		return nil, errs.Wrap(errs.KindTransport, a.op, err)
	}
	return mcp.NewToolResultImage(summary, b64, "image/png"), nil
}
