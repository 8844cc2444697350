package batch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/nominahq/payslip-service/internal/matcher"
	"github.com/nominahq/payslip-service/internal/models"
	"github.com/nominahq/payslip-service/internal/ocr"
	"github.com/nominahq/payslip-service/internal/queue"
	"github.com/nominahq/payslip-service/internal/storage"
)

// ErrBatchCancelled rejects ingestion into a soft-cancelled batch.
var ErrBatchCancelled = errors.New("batch cancelled")

// IngestQueue is the slice of the task queue the service needs.
type IngestQueue interface {
	EnqueuePayslipIngest(payload queue.PayslipIngestPayload) error
}

type Service struct {
	store    *Store
	storage  storage.Store
	splitter ocr.Splitter
	queue    IngestQueue
	bucket   string
	callback string
}

func NewService(store *Store, st storage.Store, splitter ocr.Splitter, q IngestQueue, bucket, callbackURL string) *Service {
	return &Service{
		store:    store,
		storage:  st,
		splitter: splitter,
		queue:    q,
		bucket:   bucket,
		callback: callbackURL,
	}
}

type UploadRequest struct {
	FileName   string
	Data       io.Reader
	UploadedBy uuid.UUID
}

// CreateBatch stores the uploaded source file, creates the batch row and
// kicks the external splitter. Items arrive later, one ingest callback per
// split page. A splitter kickoff failure leaves the batch in PROCESSING
// with zero items; the operator re-uploads or the splitter is retried out
// of band.
func (s *Service) CreateBatch(ctx context.Context, req UploadRequest) (*models.Batch, error) {
	fileType, err := batchFileType(req.FileName)
	if err != nil {
		return nil, err
	}

	data, err := io.ReadAll(req.Data)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return nil, &models.ValidationError{Field: "file", Reason: "empty upload"}
	}

	batchID := uuid.New()
	sourcePath := fmt.Sprintf("batches/%s/%s", batchID, path.Base(req.FileName))

	pageCount := 0
	if fileType == models.BatchFileTypePDF {
		n, err := ocr.PDFPageCount(bytes.NewReader(data), int64(len(data)))
		if err != nil {
			slog.Warn("pdf page count probe failed", "batch_id", batchID, "error", err)
		} else {
			pageCount = n
		}
	}

	if err := s.storage.Upload(ctx, s.bucket, sourcePath, bytes.NewReader(data), contentType(fileType)); err != nil {
		return nil, &models.CollaboratorError{System: "storage", Err: err}
	}

	b := &models.Batch{
		ID:               batchID,
		OriginalFileName: req.FileName,
		OriginalFileType: fileType,
		UploadedBy:       req.UploadedBy,
		SourcePath:       sourcePath,
		PageCount:        pageCount,
	}
	if err := s.store.CreateBatch(ctx, b); err != nil {
		return nil, err
	}

	if err := s.splitter.Split(ctx, ocr.SplitRequest{
		BatchID:     batchID.String(),
		Bucket:      s.bucket,
		SourcePath:  sourcePath,
		FileType:    fileType,
		CallbackURL: s.callback,
	}); err != nil {
		slog.Error("splitter kickoff failed", "batch_id", batchID, "error", err)
	}

	return b, nil
}

// IngestItem records one OCR result as a new PENDING_OCR item and queues it
// for matching. Invoked once per detection the splitter calls back with.
func (s *Service) IngestItem(ctx context.Context, batchID uuid.UUID, det matcher.Detection) (*models.BatchItem, error) {
	if det.SourceRef == "" {
		return nil, &models.ValidationError{Field: "source_ref", Reason: "required"}
	}

	b, err := s.store.GetBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if b.Cancelled() {
		return nil, ErrBatchCancelled
	}

	item := &models.BatchItem{
		ID:           uuid.New(),
		BatchID:      batchID,
		SourceRef:    det.SourceRef,
		PageNumber:   det.PageNumber,
		DetectedDNI:  strings.TrimSpace(det.DetectedDNI),
		DetectedName: strings.TrimSpace(det.DetectedName),
	}
	if err := s.store.InsertItem(ctx, item); err != nil {
		return nil, err
	}

	if err := s.queue.EnqueuePayslipIngest(queue.PayslipIngestPayload{
		ItemID:  item.ID.String(),
		BatchID: batchID.String(),
	}); err != nil {
		// The item stays in PENDING_OCR and is picked up by a later
		// resubmit; ingestion must never lose an item silently.
		slog.Error("enqueue ingest failed", "item_id", item.ID, "error", err)
		return item, &models.CollaboratorError{System: "queue", Err: err}
	}
	return item, nil
}

// Resubmit sends an ERROR item back through OCR matching.
func (s *Service) Resubmit(ctx context.Context, itemID uuid.UUID, actor string) (*models.BatchItem, error) {
	item, err := s.store.Resubmit(ctx, itemID, actor)
	if err != nil {
		return nil, err
	}
	if err := s.queue.EnqueuePayslipIngest(queue.PayslipIngestPayload{
		ItemID:  item.ID.String(),
		BatchID: item.BatchID.String(),
	}); err != nil {
		slog.Error("enqueue resubmit failed", "item_id", item.ID, "error", err)
		return item, &models.CollaboratorError{System: "queue", Err: err}
	}
	return item, nil
}

func (s *Service) GetBatch(ctx context.Context, id uuid.UUID) (*models.Batch, error) {
	return s.store.GetBatch(ctx, id)
}

func (s *Service) ListBatches(ctx context.Context, uploadedBy uuid.UUID, limit, offset int) ([]models.Batch, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.store.ListBatches(ctx, uploadedBy, limit, offset)
}

func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason string) (*models.Batch, error) {
	return s.store.CancelBatch(ctx, id, reason)
}

func (s *Service) GetItem(ctx context.Context, id uuid.UUID) (*models.BatchItem, error) {
	return s.store.GetItem(ctx, id)
}

func batchFileType(fileName string) (string, error) {
	switch strings.ToLower(path.Ext(fileName)) {
	case ".pdf":
		return models.BatchFileTypePDF, nil
	case ".zip":
		return models.BatchFileTypeArchive, nil
	default:
		return "", &models.ValidationError{Field: "file", Reason: "must be a .pdf or .zip"}
	}
}

func contentType(fileType string) string {
	if fileType == models.BatchFileTypePDF {
		return "application/pdf"
	}
	return "application/zip"
}
