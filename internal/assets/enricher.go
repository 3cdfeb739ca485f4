package assets

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dharsanguruparan/ReportDrop/internal/model"
)

// PictureGroupSize is the number of pictures shown side by side in a report.
const PictureGroupSize = 2

// FailureFunc is told about lookups that failed and were degraded to empty
// values.
type FailureFunc func(lookup string)

// Enricher merges stored assets into reports.
type Enricher struct {
	store     Store
	logger    *zap.Logger
	onFailure FailureFunc
}

// NewEnricher creates an Enricher. onFailure may be nil.
func NewEnricher(store Store, logger *zap.Logger, onFailure FailureFunc) *Enricher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if onFailure == nil {
		onFailure = func(string) {}
	}
	return &Enricher{store: store, logger: logger, onFailure: onFailure}
}

// Enrich fills the asset fields of req. Logos and images are fetched
// concurrently. Lookup failures are logged and leave the fields empty; Enrich
// itself never fails.
func (e *Enricher) Enrich(ctx context.Context, req *model.ReportRequest) {
	var (
		logos  *Logos
		images *Images
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logos = e.lookupLogos(gctx, req.ClientID)
		return nil
	})
	g.Go(func() error {
		images = e.lookupImages(gctx, req.ID)
		return nil
	})
	_ = g.Wait()

	req.LogoDir, req.ImgAddDir = "", ""
	if logos != nil {
		req.LogoDir, req.ImgAddDir = logos.LogoDir, logos.ImgAddDir
	}
	req.OwnerSignature, req.InspectorSignature = "", ""
	if images != nil && images.Signatures != nil {
		req.OwnerSignature = images.Signatures.OwnerSignature
		req.InspectorSignature = images.Signatures.InspectorSignature
	}
	if images != nil && images.Pictures != nil {
		req.Pictures = images.Pictures
	}
	req.PictureGroups = Chunk(req.Pictures, PictureGroupSize)
}

func (e *Enricher) lookupLogos(ctx context.Context, clientID string) *Logos {
	if clientID == "" {
		return nil
	}
	logos, err := e.store.Logos(ctx, clientID)
	if err != nil {
		e.logger.Warn("logo lookup failed", zap.String("client_id", clientID), zap.Error(err))
		e.onFailure("logos")
		return nil
	}
	return logos
}

func (e *Enricher) lookupImages(ctx context.Context, recordID string) *Images {
	if recordID == "" {
		return nil
	}
	images, err := e.store.Images(ctx, recordID)
	if err != nil {
		e.logger.Warn("image lookup failed", zap.String("record_id", recordID), zap.Error(err))
		e.onFailure("images")
		return nil
	}
	return images
}

// Chunk splits items into consecutive groups of size, keeping order. The last
// group is shorter when len(items) is not a multiple of size. The result is
// never nil.
func Chunk(items []json.RawMessage, size int) [][]json.RawMessage {
	if size <= 0 {
		size = 1
	}
	groups := make([][]json.RawMessage, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		groups = append(groups, items[start:end:end])
	}
	return groups
}
