package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	appctx "kardex/internal/core/context"
	"kardex/internal/core/id"
	"kardex/internal/domain/ledger"
	"kardex/pkg/logger"
)

// CompressionAlgo specifies the compression algorithm used for a payload.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// AuditSink persists ledger audit events. Large payloads (a sweep summary
// over a long scope, a posted entry with full balances) are zstd-compressed.
//
// Emission is best-effort by contract: a failed write is logged and never
// fails the ledger operation that produced the event.
type AuditSink struct {
	txm               *TxManager
	encoder           *zstd.Encoder
	compressThreshold int // bytes
}

var _ ledger.Sink = (*AuditSink)(nil)

// NewAuditSink creates the sink.
func NewAuditSink(txm *TxManager) (*AuditSink, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}

	return &AuditSink{
		txm:               txm,
		encoder:           encoder,
		compressThreshold: 10 * 1024,
	}, nil
}

func (s *AuditSink) EntryPosted(ctx context.Context, ev ledger.EntryPosted) {
	s.write(ctx, "entry_posted", ev.Entry.Scope, &ev.Entry.ID, ev)
}

func (s *AuditSink) BalanceCorrected(ctx context.Context, ev ledger.BalanceCorrected) {
	s.write(ctx, "balance_corrected", ev.Scope, &ev.EntryID, ev)
}

func (s *AuditSink) RecalculationSummary(ctx context.Context, ev ledger.RecalculationSummary) {
	s.write(ctx, "recalculation_summary", ev.Scope, nil, ev)
}

func (s *AuditSink) ZeroBasisCostWarning(ctx context.Context, ev ledger.ZeroBasisCostWarning) {
	s.write(ctx, "zero_basis_cost_warning", ev.Scope, &ev.EntryID, ev)
}

func (s *AuditSink) write(ctx context.Context, eventType string, scope ledger.Scope, entryID *id.ID, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		logger.Error(ctx, "marshal audit event", "event_type", eventType, "error", err)
		return
	}

	body, compressed, algo := s.encode(raw)

	sql := `
		INSERT INTO kardex_audit (
			id, event_type,
			company_id, product_id, warehouse_id, entry_id,
			actor, payload, payload_compressed, compression_algo,
			created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	querier := s.txm.GetQuerier(ctx)
	_, err = querier.Exec(ctx, sql,
		id.New(), eventType,
		scope.CompanyID, scope.ProductID, scope.WarehouseID, entryID,
		appctx.GetUserID(ctx), body, compressed, algo,
		time.Now().UTC(),
	)
	if err != nil {
		logger.Error(ctx, "write audit event",
			"event_type", eventType,
			"scope", scope.String(),
			"error", err,
		)
	}
}

// encode picks the stored representation for a payload. The stored body is
// never nil: small payloads go in as-is, large ones as a zstd frame.
func (s *AuditSink) encode(raw []byte) (body []byte, compressed bool, algo CompressionAlgo) {
	if len(raw) <= s.compressThreshold {
		return raw, false, CompressionNone
	}
	return s.encoder.EncodeAll(raw, nil), true, CompressionZstd
}
