package infrastructure

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildDSN(t *testing.T) {
	dsn := BuildDSN("contoso_benchmark", Settings{
		Token:       "abc123",
		Threads:     2,
		MaxMemoryMB: 512,
	})

	assert.Contains(t, dsn, "md:contoso_benchmark?")
	assert.Contains(t, dsn, "motherduck_token=abc123")
	assert.Contains(t, dsn, "threads=2")
	assert.Contains(t, dsn, "max_memory=512MB")
}

func TestBuildDSNAccountRoot(t *testing.T) {
	dsn := BuildDSN("", Settings{Token: "abc"})
	assert.Equal(t, "md:?motherduck_token=abc", dsn)
}

func TestBuildDSNNoSettings(t *testing.T) {
	assert.Equal(t, "md:db", BuildDSN("db", Settings{}))
}

func TestMaskDSN(t *testing.T) {
	tests := []struct {
		name string
		dsn  string
		want string
	}{
		{
			name: "token masked",
			dsn:  "md:db?motherduck_token=secret",
			want: "md:db?motherduck_token=%2A%2A%2A%2A%2A",
		},
		{
			name: "non-sensitive params kept",
			dsn:  "md:db?threads=4",
			want: "md:db?threads=4",
		},
		{
			name: "no query string unchanged",
			dsn:  "md:db",
			want: "md:db",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MaskDSN(tt.dsn))
		})
	}
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, `"contoso_sales_240k"`, QuoteIdent("contoso_sales_240k"))
	assert.Equal(t, `"we""ird"`, QuoteIdent(`we"ird`))
}

func TestQualifyTable(t *testing.T) {
	assert.Equal(t, `"main"."temp_1b"`, QualifyTable("main", "temp_1b"))
}

func TestValidatePositive(t *testing.T) {
	assert.NoError(t, ValidatePositive("multiplier", 10))
	assert.Error(t, ValidatePositive("multiplier", 0))
	assert.Error(t, ValidatePositive("multiplier", -5))
}

func TestSQLStringLiteral(t *testing.T) {
	assert.Equal(t, "'plain'", SQLStringLiteral("plain"))
	assert.Equal(t, "'it''s'", SQLStringLiteral("it's"))
}
