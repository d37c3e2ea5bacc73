package postgres

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/impression/internal/domain"
)

func readSchema(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "..", "..", "migrations", "001_impression.sql"))
	require.NoError(t, err)
	return string(data)
}

// columnDefault returns the DEFAULT clause of column, up to the line end.
func columnDefault(t *testing.T, schema, column string) string {
	t.Helper()
	m := regexp.MustCompile(`(?m)^\s+` + column + `\s+[A-Z]+[^\n]*?DEFAULT ([^,\n]+)`).FindStringSubmatch(schema)
	require.NotNil(t, m, "no default for %s", column)
	return strings.TrimSpace(m[1])
}

func TestSchema_RateLimitDefaults(t *testing.T) {
	schema := readSchema(t)
	assert.Equal(t, "1", columnDefault(t, schema, "quantity"))
	assert.Equal(t, fmt.Sprint(int(domain.GroupingTotal)), columnDefault(t, schema, "grouping"))
	assert.Equal(t, fmt.Sprint(int(domain.BlockPeriodType)), columnDefault(t, schema, "limit_type"))
	assert.Equal(t, fmt.Sprint(int(domain.PeriodHour)), columnDefault(t, schema, "block_period"))
	assert.Equal(t, fmt.Sprint(int64(time.Hour/time.Second)), columnDefault(t, schema, "rolling_window_seconds"))
}

func TestSchema_ServicesUnsubscribableByDefault(t *testing.T) {
	assert.Equal(t, "TRUE", columnDefault(t, readSchema(t), "is_unsubscribable"))
}

func TestSchema_TemplateDefaults(t *testing.T) {
	schema := readSchema(t)
	assert.Equal(t, "'"+domain.DefaultTemplateSubject+"'", columnDefault(t, schema, "subject"))
	assert.Equal(t, "'"+domain.DefaultTemplatePlaintext+"'", columnDefault(t, schema, "body_plaintext"))

	m := regexp.MustCompile(`(?s)body_html\s+TEXT NOT NULL DEFAULT \$html\$(.*?)\$html\$`).FindStringSubmatch(schema)
	require.NotNil(t, m)
	assert.Equal(t, domain.DefaultTemplateHTML, m[1])
}

func TestSchema_TemplateNameCheck(t *testing.T) {
	m := regexp.MustCompile(`impression_templates \([^;]*?name\s+TEXT NOT NULL UNIQUE CHECK \(name ~ '([^']+)'\)`).FindStringSubmatch(readSchema(t))
	require.NotNil(t, m, "template names are not constrained")

	re := regexp.MustCompile(m[1])
	assert.True(t, re.MatchString("Weekly Digest_v-two"))
	assert.False(t, re.MatchString("digest2"))
	assert.False(t, re.MatchString(""))
}
