package storage

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"price-tracker/models"
	"price-tracker/utils"
)

// ErrNoBatch means no fetcher file for the requested date was found.
var ErrNoBatch = errors.New("no batch files for date")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// columnAliases maps accepted input headers to RawProduct fields.
var columnAliases = map[string]string{
	"plu":            "plu",
	"name":           "name",
	"nombre":         "name",
	"brand":          "brand",
	"marca":          "brand",
	"category":       "category",
	"categoria":      "category",
	"raw_category":   "category",
	"price_current":  "price_current",
	"precio_actual":  "price_current",
	"price_regular":  "price_regular",
	"precio_regular": "price_regular",
}

// BatchReader loads the fetcher's output files for one day.
type BatchReader struct {
	dir    string
	logger *utils.Logger
}

// NewBatchReader creates a BatchReader over dir (searched recursively).
func NewBatchReader(dir string, logger *utils.Logger) *BatchReader {
	return &BatchReader{dir: dir, logger: logger}
}

// Read returns the concatenated rows of every .csv/.json file under the
// reader's dir whose name contains date. Files that fail to parse are logged
// and skipped; only the absence of any readable file is an error.
func (b *BatchReader) Read(date string) ([]*models.RawProduct, error) {
	files, err := b.files(date)
	if err != nil {
		return nil, err
	}

	var all []*models.RawProduct
	loaded := 0
	for _, path := range files {
		rows, err := readBatchFile(path)
		if err != nil {
			b.logger.Error("[batch] Skipping %s: %v", path, err)
			continue
		}
		loaded++
		b.logger.Info("[batch] Loaded %s (%d rows)", path, len(rows))
		all = append(all, rows...)
	}

	if loaded == 0 {
		return nil, fmt.Errorf("%w %s in %s", ErrNoBatch, date, b.dir)
	}
	b.logger.Info("[batch] Total rows for %s: %d", date, len(all))
	return all, nil
}

func (b *BatchReader) files(date string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(b.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if (ext == ".csv" || ext == ".json") && strings.Contains(name, date) {
			out = append(out, path)
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w %s: %s does not exist", ErrNoBatch, date, b.dir)
	}
	if err != nil {
		return nil, fmt.Errorf("batch: walk %s: %w", b.dir, err)
	}
	sort.Strings(out)
	return out, nil
}

func readBatchFile(path string) ([]*models.RawProduct, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	if strings.EqualFold(filepath.Ext(path), ".json") {
		return decodeBatchJSON(data)
	}
	return decodeBatchCSV(bytes.NewReader(data))
}

func decodeBatchCSV(r io.Reader) ([]*models.RawProduct, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	index := make(map[string]int)
	for i, col := range header {
		if field, ok := columnAliases[strings.ToLower(strings.TrimSpace(col))]; ok {
			if _, taken := index[field]; !taken {
				index[field] = i
			}
		}
	}
	if _, ok := index["plu"]; !ok {
		return nil, errors.New("no plu column")
	}

	get := func(row []string, field string) string {
		i, ok := index[field]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	var out []*models.RawProduct
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, &models.RawProduct{
			PLU:          get(row, "plu"),
			Name:         get(row, "name"),
			Brand:        get(row, "brand"),
			Category:     get(row, "category"),
			PriceCurrent: get(row, "price_current"),
			PriceRegular: get(row, "price_regular"),
		})
	}
	return out, nil
}

func decodeBatchJSON(data []byte) ([]*models.RawProduct, error) {
	var items []map[string]json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}

	out := make([]*models.RawProduct, 0, len(items))
	for _, item := range items {
		keys := make([]string, 0, len(item))
		for k := range item {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		fields := make(map[string]string)
		for _, k := range keys {
			field, ok := columnAliases[strings.ToLower(k)]
			if !ok {
				continue
			}
			if _, taken := fields[field]; !taken {
				fields[field] = jsonScalar(item[k])
			}
		}
		out = append(out, &models.RawProduct{
			PLU:          fields["plu"],
			Name:         fields["name"],
			Brand:        fields["brand"],
			Category:     fields["category"],
			PriceCurrent: fields["price_current"],
			PriceRegular: fields["price_regular"],
		})
	}
	return out, nil
}

// jsonScalar renders a JSON string or number as text; null and containers become "".
func jsonScalar(v json.RawMessage) string {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(v))
	dec.UseNumber()
	if err := dec.Decode(&n); err == nil {
		return n.String()
	}
	var b bool
	if err := json.Unmarshal(v, &b); err == nil {
		return strconv.FormatBool(b)
	}
	return ""
}
