package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/mintbook/mintbook/internal/domain"
)

// archivePageSize is the batch size used when paging fills and ledger
// entries out of the store.
const archivePageSize = 1000

// FillArchiveStore is the slice of the fill store the archiver needs.
type FillArchiveStore interface {
	ListByMarket(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.Fill, error)
}

// LedgerArchiveStore is the slice of the ledger store the archiver needs.
type LedgerArchiveStore interface {
	ListByMarket(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.LedgerEntry, error)
}

// Archiver implements domain.Archiver by exporting a settled market's fills
// and ledger entries as JSONL objects. Records are not deleted from the
// primary store; the archive is a cold copy for audit and reporting.
type Archiver struct {
	writer domain.BlobWriter
	fills  FillArchiveStore
	ledger LedgerArchiveStore
}

// NewArchiver creates an Archiver that uploads through writer.
func NewArchiver(writer domain.BlobWriter, fills FillArchiveStore, ledger LedgerArchiveStore) *Archiver {
	return &Archiver{writer: writer, fills: fills, ledger: ledger}
}

// ArchiveMarket exports every fill and ledger entry of the market to
//
//	archive/markets/{marketID}/fills.jsonl
//	archive/markets/{marketID}/ledger.jsonl
//
// and returns the total number of records written.
func (a *Archiver) ArchiveMarket(ctx context.Context, marketID string) (int64, error) {
	var total int64

	fills, err := pageAll(ctx, marketID, a.fills.ListByMarket)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive market %s fills: %w", marketID, err)
	}
	n, err := uploadJSONL(ctx, a.writer, marketPath(marketID, "fills"), fills)
	if err != nil {
		return 0, err
	}
	total += n

	entries, err := pageAll(ctx, marketID, a.ledger.ListByMarket)
	if err != nil {
		return total, fmt.Errorf("s3blob: archive market %s ledger: %w", marketID, err)
	}
	n, err = uploadJSONL(ctx, a.writer, marketPath(marketID, "ledger"), entries)
	if err != nil {
		return total, err
	}
	total += n

	return total, nil
}

func marketPath(marketID, kind string) string {
	return fmt.Sprintf("archive/markets/%s/%s.jsonl", marketID, kind)
}

// pageAll drains a paged list query into one slice.
func pageAll[T any](ctx context.Context, marketID string, list func(context.Context, string, domain.ListOpts) ([]T, error)) ([]T, error) {
	var all []T
	for offset := 0; ; offset += archivePageSize {
		page, err := list(ctx, marketID, domain.ListOpts{Limit: archivePageSize, Offset: offset})
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < archivePageSize {
			return all, nil
		}
	}
}

// uploadJSONL marshals records as newline-delimited JSON and uploads one
// object. Empty record sets produce no object.
func uploadJSONL[T any](ctx context.Context, writer domain.BlobWriter, path string, records []T) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return 0, fmt.Errorf("s3blob: jsonl encode %s record %d: %w", path, i, err)
		}
	}

	if err := writer.Put(ctx, path, bytes.NewReader(buf.Bytes()), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: upload %s: %w", path, err)
	}
	return int64(len(records)), nil
}

// Compile-time interface check.
var _ domain.Archiver = (*Archiver)(nil)
