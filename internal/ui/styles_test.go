package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetStyles_NoColorRendersPlainText(t *testing.T) {
	styles := GetStyles(true)

	assert.Equal(t, "saved", styles.Success.Render("saved"))
	assert.Equal(t, "failed", styles.Error.Render("failed"))
}

func TestDefaultStyles_KeepText(t *testing.T) {
	styles := GetStyles(false)

	assert.Contains(t, styles.Header.Render("Reindex"), "Reindex")
	assert.Contains(t, styles.Warning.Render("skipped"), "skipped")
}
