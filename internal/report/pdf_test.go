package report

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/guardian-ai/internal/evidence"
	"github.com/wolfman30/guardian-ai/internal/locale"
	"github.com/wolfman30/guardian-ai/internal/settings"
	"github.com/wolfman30/guardian-ai/internal/triggers"
)

func jpegDataURL(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 24))
	for x := 0; x < 32; x++ {
		img.Set(x, x%24, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}))
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestGenerateWritesPDF(t *testing.T) {
	lat, lng := 36.75, 3.05
	items := make([]evidence.Item, 0, 6)
	for i := 0; i < 6; i++ {
		items = append(items, evidence.Item{
			ID:           fmt.Sprintf("%d", 1700000000000+i),
			ImageURL:     jpegDataURL(t),
			Timestamp:    1700000000000 + int64(i),
			Latitude:     &lat,
			Longitude:    &lng,
			BackupStatus: evidence.StatusSecured,
			TriggerType:  triggers.SIMEject,
			Analysis: &evidence.Analysis{
				ThreatLevel:     evidence.ThreatHigh,
				Persons:         []string{"Man in grey hoodie"},
				LocationContext: "شارع ديدوش مراد",
			},
		})
	}
	items = append(items, evidence.Item{ID: "broken", ImageURL: "data:image/jpeg;base64,AAAA", BackupStatus: evidence.StatusPending, TriggerType: triggers.Manual})

	var buf bytes.Buffer
	err := Generate(&buf, Options{
		Owner:       "owner@example.com",
		Language:    locale.AR,
		Contacts:    []settings.Contact{{Name: "Amina", Email: "amina@example.com", Relationship: settings.Family}},
		GeneratedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}, items)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
	assert.Greater(t, buf.Len(), 1000)
}

func TestGenerateEmptyVault(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Generate(&buf, Options{}, nil))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "guardian-evidence-2026-03-01.pdf", Filename(time.Date(2026, 3, 1, 23, 0, 0, 0, time.UTC)))
}

func TestSafeText(t *testing.T) {
	assert.Equal(t, "a b ?", safeText(" a\nb é "))
	assert.False(t, strings.ContainsAny(safeText("tab\there"), "\t"))
}
