package pipeline

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// StatusRejected marks reports that triage threw out. Rejected reports never
// leave the record-management system.
const StatusRejected = "REJECTED"

// TransformationError aborts a run before any delivery is attempted.
type TransformationError struct {
	Reason         string
	MissingColumns []string
}

func (e *TransformationError) Error() string {
	if len(e.MissingColumns) > 0 {
		return fmt.Sprintf("%s: %s", e.Reason, strings.Join(e.MissingColumns, ", "))
	}
	return e.Reason
}

// Filters toggles the three record filters independently. Disabling all of
// them passes every record through.
type Filters struct {
	Rejected  bool
	Untriaged bool
	Cursor    bool
}

// DefaultFilters enables every filter.
func DefaultFilters() Filters {
	return Filters{
		Rejected:  true,
		Untriaged: true,
		Cursor:    true,
	}
}

type Option func(*Pipeline)

func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

func WithMapping(mapping CategoryMapping) Option {
	return func(p *Pipeline) {
		p.mapping = mapping
	}
}

func WithFilters(filters Filters) Option {
	return func(p *Pipeline) {
		p.filters = filters
	}
}

func WithDefaults(defaults Defaults) Option {
	return func(p *Pipeline) {
		p.defaults = defaults
	}
}

// Pipeline turns raw incident reports into portal items. Transform is pure:
// the same records, cursor and mapping always produce the same output in the
// same order.
type Pipeline struct {
	mapping  CategoryMapping
	filters  Filters
	defaults Defaults
	logger   *zap.Logger
}

func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		filters:  DefaultFilters(),
		defaults: DestinationDefaults(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// requiredColumns are the source fields every record must carry. A zero
// value counts as missing, the record shape is validated here and nowhere
// downstream.
var requiredColumns = []string{
	"incidentId",
	"statusId",
	"status",
	"Type_of_SIR",
	"Category_Type",
	"Sub_Category_Type",
	"dateReported",
}

func (p *Pipeline) checkSchema(records []RawRecord) error {
	missing := make(map[string]struct{})
	for _, r := range records {
		if r.IncidentID == 0 {
			missing["incidentId"] = struct{}{}
		}
		if r.StatusID == "" {
			missing["statusId"] = struct{}{}
		}
		if r.Status == "" {
			missing["status"] = struct{}{}
		}
		if len(r.TypeOfSIR) == 0 {
			missing["Type_of_SIR"] = struct{}{}
		}
		if len(r.CategoryType) == 0 {
			missing["Category_Type"] = struct{}{}
		}
		if len(r.SubCategoryType) == 0 {
			missing["Sub_Category_Type"] = struct{}{}
		}
		if r.DateReported == "" {
			missing["dateReported"] = struct{}{}
		}
	}

	if len(missing) == 0 {
		return nil
	}

	var cols []string
	for _, name := range requiredColumns {
		if _, ok := missing[name]; ok {
			cols = append(cols, name)
		}
	}
	return &TransformationError{
		Reason:         "source records missing required columns",
		MissingColumns: cols,
	}
}

func (p *Pipeline) filter(records []RawRecord, sinceID int64) []RawRecord {
	kept := make([]RawRecord, 0, len(records))
	for _, r := range records {
		if p.filters.Rejected && r.Status == StatusRejected {
			continue
		}
		if p.filters.Untriaged && r.DateProcessed == "" {
			continue
		}
		if p.filters.Cursor && r.IncidentID <= sinceID {
			continue
		}
		kept = append(kept, r)
	}
	return kept
}

type explodedRow struct {
	rec RawRecord
	key MappingKey
}

// explode expands the three multi-select category fields into their cross
// product, one row per (type, category, subtype) combination.
func explode(records []RawRecord) []explodedRow {
	var rows []explodedRow
	for _, rec := range records {
		for _, t := range rec.TypeOfSIR {
			for _, c := range rec.CategoryType {
				for _, s := range rec.SubCategoryType {
					rows = append(rows, explodedRow{
						rec: rec,
						key: MappingKey{Type: t, Category: c, Subtype: s},
					})
				}
			}
		}
	}
	return rows
}

// Transform runs the full pipeline over one fetched batch. sinceID is the
// incident id cursor from the previous run; records at or below it are
// filtered out when the cursor filter is enabled. Rows whose category
// combination has no mapping entry are dropped, that is the mechanism that
// keeps uncurated categories out of the portal.
func (p *Pipeline) Transform(records []RawRecord, sinceID int64) ([]TransformedRecord, error) {
	if err := p.checkSchema(records); err != nil {
		return nil, err
	}

	kept := p.filter(records, sinceID)
	rows := explode(kept)

	p.logger.Debug("pipeline expanded records",
		zap.Int("fetched", len(records)),
		zap.Int("kept", len(kept)),
		zap.Int("exploded", len(rows)),
	)

	out := make([]TransformedRecord, 0, len(rows))
	for _, row := range rows {
		mapped, ok := p.mapping[row.key]
		if !ok {
			p.logger.Debug("dropping unmapped category combination",
				zap.Int64("incident_id", row.rec.IncidentID),
				zap.String("type", row.key.Type),
				zap.String("category", row.key.Category),
				zap.String("subtype", row.key.Subtype),
			)
			continue
		}

		openDate, err := NormalizeTimestamp(row.rec.DateReported)
		if err != nil {
			return nil, &TransformationError{
				Reason: fmt.Sprintf("incident %d: dateReported: %v", row.rec.IncidentID, err),
			}
		}
		processedDate, err := NormalizeTimestamp(row.rec.DateProcessed)
		if err != nil {
			return nil, &TransformationError{
				Reason: fmt.Sprintf("incident %d: dateProcessed: %v", row.rec.IncidentID, err),
			}
		}

		detail := StripMarkup(row.rec.Detail)
		action := StripMarkup(row.rec.ActionTaken)

		out = append(out, TransformedRecord{
			TenantItemID:  row.rec.StatusID,
			OpenDate:      openDate,
			ProcessedDate: processedDate,
			Title:         "[" + row.rec.StatusID + "]: " + mapped.Type,
			Narrative:     detail + "\n" + action,
			Type:          mapped.Type,
			Subtype:       mapped.Subtype,
			Sharing:       mapped.Sharing,
			SeverityID:    p.defaults.SeverityID,
			PriorityID:    p.defaults.PriorityID,
			Actionable:    p.defaults.Actionable,
			PIIPresent:    p.defaults.PIIPresent,
			IncidentID:    row.rec.IncidentID,
		})
	}

	return out, nil
}

// MaxIncidentID returns the largest incident id among transformed records,
// or 0 for an empty batch.
func MaxIncidentID(records []TransformedRecord) int64 {
	var max int64
	for _, r := range records {
		if r.IncidentID > max {
			max = r.IncidentID
		}
	}
	return max
}
