package core

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// HistoryTimeout bounds how long recording a finished conversion may take.
var HistoryTimeout = 5 * time.Second

// ServiceOptions configures a Service.
type ServiceOptions struct {
	MaxConcurrent   int
	MaxWait         time.Duration
	StrictFourField bool
	History         HistoryStore // nil keeps an in-memory history
}

// Service runs conversions: validation, extraction and export, bounded by a
// ConversionLimiter and recorded in a HistoryStore.
type Service struct {
	limiter   *ConversionLimiter
	extractor *Extractor
	history   HistoryStore
}

// NewService creates a Service.
func NewService(opts ServiceOptions) *Service {
	history := opts.History
	if history == nil {
		history = NewMemoryHistory(DefaultHistorySize)
	}
	return &Service{
		limiter:   NewConversionLimiter(opts.MaxConcurrent, opts.MaxWait),
		extractor: NewExtractor(opts.StrictFourField),
		history:   history,
	}
}

// Conversion is a validated and extracted request waiting to be exported.
// It holds a limiter slot until Export or Release.
type Conversion struct {
	ID         uuid.UUID
	FileName   string
	OutputName string
	Format     Format
	Delimiter  string
	Table      Table

	output     Output
	clientID   string
	userAgent  string
	inputBytes int64
	started    time.Time

	releaseOnce sync.Once
	release     func()
}

// ContentType returns the MIME type of the converted output.
func (c *Conversion) ContentType() string {
	return c.Format.ContentType()
}

// Release drops the built output and frees the limiter slot. Safe to call
// more than once.
func (c *Conversion) Release() {
	c.releaseOnce.Do(func() {
		if c.output != nil {
			if err := c.output.Close(); err != nil {
				slog.Debug("close conversion output", "conversion_id", c.ID, "error", err)
			}
		}
		if c.release != nil {
			c.release()
		}
	})
}

// Prepare validates req, waits for a conversion slot, extracts the table and
// builds the output. Nothing is written anywhere yet, so every failure here
// can still be reported with a proper status code.
func (s *Service) Prepare(ctx context.Context, req ConvertRequest) (*Conversion, error) {
	format, err := req.Validate()
	if err != nil {
		return nil, err
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}

	conv := &Conversion{
		ID:         uuid.New(),
		FileName:   req.FileName,
		OutputName: req.OutputName(format),
		Format:     format,
		Delimiter:  NormalizeDelimiter(req.Separator),
		clientID:   req.ClientID,
		userAgent:  UserAgentFromContext(ctx),
		inputBytes: int64(len(req.Content)),
		started:    time.Now(),
		release:    s.limiter.Release,
	}
	if conv.clientID == "" {
		conv.clientID = ClientIDFromContext(ctx)
	}

	conv.Table, err = s.extractor.Extract(req.Content, conv.Delimiter)
	if err != nil {
		conv.Release()
		return nil, err
	}

	conv.output, err = Build(conv.Table, format)
	if err != nil {
		conv.Release()
		return nil, err
	}

	slog.Debug("conversion prepared",
		"conversion_id", conv.ID,
		"file", conv.FileName,
		"format", string(conv.Format),
		"rows", conv.Table.Len(),
		"has_header", conv.Table.HasHeader,
	)
	return conv, nil
}

// Export writes the built output to w, releases the slot and records the
// conversion. Only sink failures (KindIO) can occur here. History failures
// are logged, not returned.
func (s *Service) Export(ctx context.Context, conv *Conversion, w io.Writer) error {
	defer conv.Release()

	if _, err := conv.output.WriteTo(w); err != nil {
		return err
	}

	rec := ConversionRecord{
		ID:         conv.ID,
		ClientID:   conv.clientID,
		UserAgent:  conv.userAgent,
		FileName:   conv.FileName,
		OutputName: conv.OutputName,
		Format:     conv.Format,
		Separator:  conv.Delimiter,
		Rows:       conv.Table.Len(),
		HasHeader:  conv.Table.HasHeader,
		InputBytes: conv.inputBytes,
		Duration:   time.Since(conv.started),
		CreatedAt:  time.Now().UTC(),
	}

	hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), HistoryTimeout)
	defer cancel()
	if err := s.history.Record(hctx, rec); err != nil {
		slog.Warn("failed to record conversion", "conversion_id", conv.ID, "error", err)
	}
	return nil
}

// History returns up to limit recent conversions, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]ConversionRecord, error) {
	return s.history.Recent(ctx, limit)
}

// LimiterStatus returns the conversion limiter state.
func (s *Service) LimiterStatus() LimiterStatus {
	return s.limiter.Status()
}

// WaitForConversions blocks until in-flight conversions finish or ctx ends.
func (s *Service) WaitForConversions(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}
