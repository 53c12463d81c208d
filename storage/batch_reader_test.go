package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"price-tracker/models"
	"price-tracker/utils"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
}

func TestBatchReaderCSVWithBOMAndSpanishHeaders(t *testing.T) {
	dir := t.TempDir()
	body := "\xEF\xBB\xBFPLU,Nombre,Marca,Categoria,Precio_Actual,Precio_Regular,extra\n" +
		"00123,Alfajor,Havanna,Golosinas,\"$1.000,50\",1200,x\n" +
		"456,Yerba,Playadito,Infusiones,,\"2.350,00\",y\n"
	writeFile(t, filepath.Join(dir, "almacen", "productos_20260315.csv"), body)
	writeFile(t, filepath.Join(dir, "productos_20260314.csv"), body)

	rows, err := NewBatchReader(dir, utils.NewNopLogger()).Read("20260315")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, &models.RawProduct{
		PLU: "00123", Name: "Alfajor", Brand: "Havanna", Category: "Golosinas",
		PriceCurrent: "$1.000,50", PriceRegular: "1200",
	}, rows[0])
	assert.Equal(t, "", rows[1].PriceCurrent)
	assert.Equal(t, "2.350,00", rows[1].PriceRegular)
}

func TestBatchReaderJSON(t *testing.T) {
	dir := t.TempDir()
	items := []map[string]interface{}{
		{"plu": "1", "name": "Leche", "category": "Lácteos", "price_regular": 950.5, "price_current": nil},
		{"plu": "2", "nombre": "Queso", "precio_regular": "4.100,00", "marca": "La Serenísima"},
	}
	data, err := json.Marshal(items)
	require.NoError(t, err)
	writeFile(t, filepath.Join(dir, "frescos_20260315.json"), string(data))

	rows, err := NewBatchReader(dir, utils.NewNopLogger()).Read("20260315")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "950.5", rows[0].PriceRegular)
	assert.Equal(t, "", rows[0].PriceCurrent)
	assert.Equal(t, "Lácteos", rows[0].Category)
	assert.Equal(t, "Queso", rows[1].Name)
	assert.Equal(t, "La Serenísima", rows[1].Brand)
	assert.Equal(t, "4.100,00", rows[1].PriceRegular)
}

func TestBatchReaderSkipsBrokenFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a_20260315.csv"), "name,price_regular\nX,10\n")
	writeFile(t, filepath.Join(dir, "b_20260315.json"), "{not json")
	writeFile(t, filepath.Join(dir, "c_20260315.csv"), "plu,price_regular\n9,10\n")

	rows, err := NewBatchReader(dir, utils.NewNopLogger()).Read("20260315")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "9", rows[0].PLU)
}

func TestBatchReaderNoBatch(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a_20260315.csv"), "sku\n1\n")
	writeFile(t, filepath.Join(dir, "notes_20260315.txt"), "plu\n1\n")

	reader := NewBatchReader(dir, utils.NewNopLogger())

	_, err := reader.Read("20260315")
	assert.ErrorIs(t, err, ErrNoBatch, "only unreadable files")

	_, err = reader.Read("20260316")
	assert.ErrorIs(t, err, ErrNoBatch, "no files for the date")

	_, err = NewBatchReader(filepath.Join(dir, "missing"), utils.NewNopLogger()).Read("20260315")
	assert.ErrorIs(t, err, ErrNoBatch, "missing input dir")
}

func TestJSONReportWriter(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	w, err := NewJSONReportWriter(dir)
	require.NoError(t, err)

	report := &models.Report{
		RunID:         "run-1",
		Date:          "20260315",
		TotalProducts: 2,
		Day:           &models.HorizonResult{Horizon: "1d", ComparedDate: "20260314", MeanDiffPct: 1.5},
		TopUpDay: []models.VariationRecord{
			{PLU: "1", Name: "Café & Leche", DiffPct: 3},
		},
		Charts: []models.PeriodSeries{{Period: "7d", Total: []models.IndexPoint{{Date: "20260315"}}}},
	}
	require.NoError(t, w.WriteReport(report))

	for _, name := range []string{"resumen.json", "graficos.json", "ranking_dia.json", "ranking_mes.json", "ranking_anio.json"} {
		assert.FileExists(t, filepath.Join(dir, name))
	}

	var back models.Report
	data, err := os.ReadFile(filepath.Join(dir, "resumen.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, "run-1", back.RunID)
	assert.Equal(t, 1.5, back.Day.MeanDiffPct)
	assert.Nil(t, back.Week)

	ranking, err := os.ReadFile(filepath.Join(dir, "ranking_dia.json"))
	require.NoError(t, err)
	assert.Contains(t, string(ranking), "Café & Leche", "HTML characters are not escaped")

	empty, err := os.ReadFile(filepath.Join(dir, "ranking_mes.json"))
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(empty))
}
