package console

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCabinetOption(t *testing.T) {
	loc := CabinetOption("53607")

	require.Len(t, loc.Selectors, 3)
	assert.Equal(t, "cabinet option 53607", loc.Name)
	for _, sel := range loc.Selectors {
		assert.True(t, strings.Contains(sel.Query, "'53607'"), sel.Query)
	}
}

func TestLandmarksOrder(t *testing.T) {
	require.Len(t, Landmarks, 3)
	assert.Equal(t, "cabinet search", Landmarks[0].Name)
	assert.Equal(t, "date range control", Landmarks[1].Name)
	assert.Equal(t, "reports heading", Landmarks[2].Name)
}

func TestLocatorsHaveStrategies(t *testing.T) {
	for _, loc := range append(Landmarks,
		CabinetToggle, StartDate, EndDate, SaveDates, ExportButton,
		StaleReportDelete, ConfirmDelete, PhoneInput, SubmitPhone,
		FirstCodeInput, SubmitFirstCode, SecondCodeInput, SubmitSecondCode) {
		assert.NotEmpty(t, loc.Name)
		assert.NotEmpty(t, loc.Selectors, loc.Name)
	}
}
