// Package source reads transaction records and rule definitions from files.
package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/Veraticus/spice-categorizer/internal/common"
	"github.com/Veraticus/spice-categorizer/internal/model"
	"github.com/Veraticus/spice-categorizer/internal/ofx"
)

// LoadRecords reads records from a JSON, YAML or OFX/QFX file chosen by extension.
func LoadRecords(ctx context.Context, path string) ([]model.Record, error) {
	f, err := os.Open(path) //nolint:gosec // user-supplied input file
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return DecodeJSON(f)
	case ".yaml", ".yml":
		return DecodeYAML(f)
	case ".ofx", ".qfx":
		return ofx.NewParser().ParseFile(ctx, f)
	}
	return nil, fmt.Errorf("%w: %s", common.ErrUnsupportedFileType, filepath.Ext(path))
}

// DecodeJSON reads either a single JSON object or an array of objects.
// Numbers are kept as json.Number so amounts never pass through float64.
func DecodeJSON(r io.Reader) ([]model.Record, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read JSON: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, common.ErrNoRecords
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw []map[string]any
	if data[0] == '{' {
		var single map[string]any
		if err := dec.Decode(&single); err != nil {
			return nil, fmt.Errorf("failed to decode JSON record: %w", err)
		}
		raw = append(raw, single)
	} else if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode JSON records: %w", err)
	}

	return toRecords(raw), nil
}

// DecodeYAML reads a YAML sequence of mappings.
func DecodeYAML(r io.Reader) ([]model.Record, error) {
	var raw []map[string]any
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, common.ErrNoRecords
		}
		return nil, fmt.Errorf("failed to decode YAML records: %w", err)
	}
	return toRecords(raw), nil
}

func toRecords(raw []map[string]any) []model.Record {
	records := make([]model.Record, 0, len(raw))
	for _, m := range raw {
		record := model.Record(m)
		normalizeAmount(record)
		records = append(records, record)
	}
	return records
}

// normalizeAmount converts a parseable amount into decimal.Decimal. Values
// that do not parse are left untouched for the rule engine to reject.
func normalizeAmount(record model.Record) {
	key := string(model.FieldAmount)
	var d decimal.Decimal
	var err error

	switch v := record[key].(type) {
	case json.Number:
		d, err = decimal.NewFromString(v.String())
	case string:
		d, err = decimal.NewFromString(strings.TrimSpace(v))
	case float64:
		d = decimal.NewFromFloat(v)
	case int:
		d = decimal.NewFromInt(int64(v))
	default:
		return
	}
	if err == nil {
		record[key] = d
	}
}
